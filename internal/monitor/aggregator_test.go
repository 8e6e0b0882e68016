package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/magidandrew/tg-persona/internal/models"
)

// captureDispatch records every firing it receives.
type captureDispatch struct {
	mu       sync.Mutex
	firings  [][]models.ContextEntry
	convIDs  []string
	received chan struct{}
}

func newCaptureDispatch() *captureDispatch {
	return &captureDispatch{received: make(chan struct{}, 16)}
}

func (c *captureDispatch) Dispatch(_ context.Context, conversationID string, window []models.ContextEntry) {
	c.mu.Lock()
	c.firings = append(c.firings, window)
	c.convIDs = append(c.convIDs, conversationID)
	c.mu.Unlock()
	c.received <- struct{}{}
}

func (c *captureDispatch) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.firings)
}

func (c *captureDispatch) wait(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-c.received:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for dispatch")
	}
}

func event(conversationID, senderID, senderName, text string) models.IncomingMessage {
	return models.IncomingMessage{
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     senderName,
		Text:           text,
		Timestamp:      time.Now(),
	}
}

func newTestAggregator(t *testing.T, quiet time.Duration, ft *fakeTransport, cd *captureDispatch) *Aggregator {
	t.Helper()
	windows := NewWindowBuilder(ft, 5, 20)
	agg := NewAggregator(context.Background(), quiet, ft, windows, cd, ft.self.ID, zerolog.Nop())
	t.Cleanup(agg.Stop)
	return agg
}

func TestBurstFiresOnceWithAllMessages(t *testing.T) {
	ft := newFakeTransport()
	cd := newCaptureDispatch()
	agg := newTestAggregator(t, 80*time.Millisecond, ft, cd)

	msgs := []models.IncomingMessage{
		event("c1", "a", "Alice", "hey, quick question"),
		event("c1", "b", "Bob", "same here actually"),
		event("c1", "a", "Alice", "any update?"),
	}
	for _, m := range msgs {
		ft.push(m.ConversationID, m.SenderID, m.SenderName, m.Text)
		agg.OnMessage(context.Background(), m)
		time.Sleep(20 * time.Millisecond)
	}

	cd.wait(t, time.Second)
	time.Sleep(150 * time.Millisecond) // ensure no second firing

	require.Equal(t, 1, cd.count())
	window := cd.firings[0]
	require.Len(t, window, 3)
	require.Equal(t, "hey, quick question", window[0].Text)
	require.Equal(t, "same here actually", window[1].Text)
	require.Equal(t, "any update?", window[2].Text)
}

func TestEachMessageReplacesCountdown(t *testing.T) {
	ft := newFakeTransport()
	cd := newCaptureDispatch()
	agg := newTestAggregator(t, 100*time.Millisecond, ft, cd)

	// Keep the conversation active: the countdown must never complete.
	for i := 0; i < 4; i++ {
		ft.push("c1", "a", "Alice", "still typing")
		agg.OnMessage(context.Background(), event("c1", "a", "Alice", "still typing"))
		time.Sleep(40 * time.Millisecond)
	}
	require.Equal(t, 0, cd.count())

	// Silence long enough: exactly one firing.
	cd.wait(t, time.Second)
	require.Equal(t, 1, cd.count())
}

func TestOwnLatestMessageSuppressesArming(t *testing.T) {
	ft := newFakeTransport()
	cd := newCaptureDispatch()
	agg := newTestAggregator(t, 50*time.Millisecond, ft, cd)

	ft.push("c1", "a", "Alice", "thanks!")
	ft.push("c1", ft.self.ID, "owner", "np, fixed")

	agg.OnMessage(context.Background(), event("c1", "a", "Alice", "thanks!"))

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, 0, cd.count())
}

func TestConversationsAreIndependent(t *testing.T) {
	ft := newFakeTransport()
	cd := newCaptureDispatch()
	agg := newTestAggregator(t, 60*time.Millisecond, ft, cd)

	ft.push("c1", "a", "Alice", "in one")
	agg.OnMessage(context.Background(), event("c1", "a", "Alice", "in one"))
	ft.push("c2", "b", "Bob", "in two")
	agg.OnMessage(context.Background(), event("c2", "b", "Bob", "in two"))

	cd.wait(t, time.Second)
	cd.wait(t, time.Second)

	require.Equal(t, 2, cd.count())
	require.ElementsMatch(t, []string{"c1", "c2"}, cd.convIDs)
}

func TestStopCancelsPendingCountdowns(t *testing.T) {
	ft := newFakeTransport()
	cd := newCaptureDispatch()
	agg := newTestAggregator(t, 50*time.Millisecond, ft, cd)

	ft.push("c1", "a", "Alice", "hello")
	agg.OnMessage(context.Background(), event("c1", "a", "Alice", "hello"))
	agg.Stop()

	time.Sleep(120 * time.Millisecond)
	require.Equal(t, 0, cd.count())
}
