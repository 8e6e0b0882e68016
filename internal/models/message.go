package models

import "time"

// IncomingMessage is one message event delivered by the transport bridge.
type IncomingMessage struct {
	ConversationID    string    `json:"conversation_id"`
	ConversationTitle string    `json:"conversation_title"`
	SenderID          string    `json:"sender_id"`
	SenderName        string    `json:"sender_name"`
	Text              string    `json:"text"`
	Timestamp         time.Time `json:"ts"`
}

// BufferedMessage is a message held in a conversation's queue between
// arrival and the next aggregation firing.
type BufferedMessage struct {
	ID             string // ULID
	ConversationID string
	SenderID       string
	SenderName     string
	Text           string
	ReceivedAt     time.Time
}

// Decision is the structured verdict returned by the completion service
// for one aggregation firing.
type Decision struct {
	ShouldRespond bool    `json:"should_respond"`
	Reason        string  `json:"reason"`
	Confidence    int     `json:"confidence"` // 0-100
	Urgency       Urgency `json:"urgency"`
	Response      string  `json:"response"`
}
