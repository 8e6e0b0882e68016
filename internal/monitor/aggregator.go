// Package monitor implements the quiet-period aggregation pipeline: it
// buffers bursts of conversation activity, waits for silence, and turns
// each settled burst into a drafting request.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/magidandrew/tg-persona/internal/metrics"
	"github.com/magidandrew/tg-persona/internal/models"
	"github.com/magidandrew/tg-persona/internal/transport"
)

// WindowSource builds the transcript handed to the dispatcher when a
// burst settles.
type WindowSource interface {
	Build(ctx context.Context, conversationID string) ([]models.ContextEntry, error)
}

// DispatchFunc is invoked once per aggregation firing.
type DispatchFunc interface {
	Dispatch(ctx context.Context, conversationID string, window []models.ContextEntry)
}

// session is the per-conversation aggregation record. Created on first
// matching message and reused across bursts; the queue drains and the
// timer clears each time aggregation fires.
type session struct {
	conversationID string
	lastActivity   time.Time
	queue          []models.BufferedMessage
	timer          *time.Timer // at most one live timer per session
}

// Aggregator buffers incoming messages per conversation and fires after
// quietPeriod of silence. Each message cancels and replaces the pending
// countdown, so a firing means the conversation stayed silent for at
// least the full quiet period. A busy conversation can defer aggregation
// indefinitely; there is no maximum latency guarantee.
type Aggregator struct {
	mu       sync.Mutex
	sessions map[string]*session

	quietPeriod time.Duration
	transport   transport.Transport
	windows     WindowSource
	dispatch    DispatchFunc
	selfID      string
	logger      zerolog.Logger

	// baseCtx scopes firings, which happen off the caller's stack.
	baseCtx context.Context
}

// NewAggregator creates an aggregator. ctx bounds the lifetime of timer
// firings: once it is cancelled, in-flight firings wind down with it.
func NewAggregator(ctx context.Context, quietPeriod time.Duration, t transport.Transport, windows WindowSource, dispatch DispatchFunc, selfID string, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		sessions:    make(map[string]*session),
		quietPeriod: quietPeriod,
		transport:   t,
		windows:     windows,
		dispatch:    dispatch,
		selfID:      selfID,
		logger:      logger.With().Str("component", "aggregator").Logger(),
		baseCtx:     ctx,
	}
}

// OnMessage records a message into its conversation's queue and re-arms
// the quiet-period countdown. Arming is suppressed when the most recent
// message in the live conversation was authored by our own identity, so
// the system never replies to its own prior reply.
func (a *Aggregator) OnMessage(ctx context.Context, msg models.IncomingMessage) {
	suppressed := a.lastMessageIsOwn(ctx, msg.ConversationID)

	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.sessions[msg.ConversationID]
	if s == nil {
		s = &session{conversationID: msg.ConversationID}
		a.sessions[msg.ConversationID] = s
	}

	s.queue = append(s.queue, models.BufferedMessage{
		ID:             ulid.Make().String(),
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderName:     msg.SenderName,
		Text:           msg.Text,
		ReceivedAt:     time.Now(),
	})
	s.lastActivity = time.Now()

	// Cancel outright before re-arming: no partial credit.
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if suppressed {
		metrics.SelfSuppressed.Inc()
		a.logger.Debug().Str("conversation", msg.ConversationID).Msg("own message is latest, not arming")
		return
	}

	conversationID := msg.ConversationID
	s.timer = time.AfterFunc(a.quietPeriod, func() {
		a.fire(conversationID)
	})
}

// lastMessageIsOwn checks the live transport, not the buffer: a reply we
// sent through the approval flow never enters the queue but must still
// suppress the next arming.
func (a *Aggregator) lastMessageIsOwn(ctx context.Context, conversationID string) bool {
	history, err := a.transport.IterateHistory(ctx, conversationID, 1)
	if err != nil {
		a.logger.Warn().Err(err).Str("conversation", conversationID).Msg("history probe failed, arming anyway")
		return false
	}
	return len(history) > 0 && history[0].SenderID == a.selfID
}

// fire runs once per elapsed countdown: drain the queue, build the
// context window, hand it to the dispatcher.
func (a *Aggregator) fire(conversationID string) {
	a.mu.Lock()
	s := a.sessions[conversationID]
	if s == nil {
		a.mu.Unlock()
		return
	}
	queue := s.queue
	s.queue = nil
	s.timer = nil
	a.mu.Unlock()

	// Queue can be empty if it was drained concurrently; firing is a no-op.
	if len(queue) == 0 {
		return
	}

	metrics.AggregationFirings.Inc()
	a.logger.Info().
		Str("conversation", conversationID).
		Int("buffered", len(queue)).
		Msg("quiet period elapsed, aggregating")

	window, err := a.windows.Build(a.baseCtx, conversationID)
	if err != nil {
		a.logger.Warn().Err(err).Str("conversation", conversationID).Msg("context window build failed")
		return
	}
	if len(window) == 0 {
		return
	}

	a.dispatch.Dispatch(a.baseCtx, conversationID, window)
}

// Stop cancels all pending countdowns. Stopped timers simply never fire;
// cancellation is a normal termination, not an error.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.sessions {
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
	}
}
