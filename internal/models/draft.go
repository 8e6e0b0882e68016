package models

import "time"

// DraftState is the review lifecycle phase of a draft. Approved and
// rejected drafts are deleted rather than kept in a terminal state, so
// only the live phases are represented.
type DraftState string

const (
	DraftPending DraftState = "pending"
	DraftEditing DraftState = "editing"
)

// Urgency is the completion service's priority rating for a draft.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// ValidUrgency reports whether u is one of the known urgency levels.
func ValidUrgency(u Urgency) bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// ContextEntry is one message of the conversation context a draft was
// generated from, in chronological order.
type ContextEntry struct {
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Timestamp  time.Time `json:"ts"`
	Text       string    `json:"text"`
}

// Draft is a generated reply awaiting review. It survives restarts via
// the approval store; the context is kept so the reviewer can see the
// full transcript the reply answers.
type Draft struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Response       string         `json:"response"`
	Context        []ContextEntry `json:"context"`
	Confidence     int            `json:"confidence"` // 0-100
	Urgency        Urgency        `json:"urgency"`
	State          DraftState     `json:"state"`
	CreatedAt      time.Time      `json:"created_at"`
}

// DigestSummary counts outstanding drafts by urgency for the scheduled
// digest notification.
type DigestSummary struct {
	High   int
	Medium int
	Low    int
}

// Total returns the number of outstanding drafts across all urgencies.
func (s DigestSummary) Total() int {
	return s.High + s.Medium + s.Low
}
