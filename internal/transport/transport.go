// Package transport defines the boundary to the chat platform. The
// platform itself lives behind a bridge sidecar; this service only sees
// message events, a history endpoint, and an outbound send endpoint.
package transport

import (
	"context"
	"time"
)

// Identity is the account the bridge is logged in as.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// HistoryMessage is one message from a conversation's recent history.
type HistoryMessage struct {
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"ts"`
}

// Transport is the consumed chat-platform surface.
type Transport interface {
	// SendMessage delivers text into a conversation.
	SendMessage(ctx context.Context, conversationID, text string) error

	// IterateHistory returns up to limit messages from a conversation,
	// most recent first.
	IterateHistory(ctx context.Context, conversationID string, limit int) ([]HistoryMessage, error)

	// SelfIdentity resolves the account this service acts as.
	SelfIdentity(ctx context.Context) (Identity, error)
}
