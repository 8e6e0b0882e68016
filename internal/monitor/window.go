package monitor

import (
	"context"

	"github.com/magidandrew/tg-persona/internal/models"
	"github.com/magidandrew/tg-persona/internal/transport"
)

// WindowBuilder produces bounded chronological transcripts from a
// conversation's recent history.
type WindowBuilder struct {
	transport        transport.Transport
	maxUniqueSenders int
	maxHistory       int
}

// NewWindowBuilder creates a builder reading history through t.
func NewWindowBuilder(t transport.Transport, maxUniqueSenders, maxHistory int) *WindowBuilder {
	return &WindowBuilder{
		transport:        t,
		maxUniqueSenders: maxUniqueSenders,
		maxHistory:       maxHistory,
	}
}

// Build walks the conversation's history backward from most recent and
// keeps messages while the number of distinct senders stays within the
// bound. Consecutive messages by the same sender count once; the walk
// stops outright when admitting the next sender would exceed the bound,
// which yields a topically coherent slice rather than a fixed-length
// tail. Entries with no text or no resolvable sender are skipped without
// counting. The result is returned in chronological order.
func (b *WindowBuilder) Build(ctx context.Context, conversationID string) ([]models.ContextEntry, error) {
	history, err := b.transport.IterateHistory(ctx, conversationID, b.maxHistory)
	if err != nil {
		return nil, err
	}

	var entries []models.ContextEntry
	senders := 0
	lastSender := ""

	for _, msg := range history {
		if msg.Text == "" || msg.SenderID == "" {
			continue
		}
		if msg.SenderID != lastSender {
			if senders+1 > b.maxUniqueSenders {
				break
			}
			senders++
			lastSender = msg.SenderID
		}
		entries = append(entries, models.ContextEntry{
			SenderID:   msg.SenderID,
			SenderName: msg.SenderName,
			Timestamp:  msg.Timestamp,
			Text:       msg.Text,
		})
	}

	// History arrives most-recent-first; flip back to chronological.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	return entries, nil
}
