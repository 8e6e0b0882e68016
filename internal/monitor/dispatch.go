package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/magidandrew/tg-persona/internal/completion"
	"github.com/magidandrew/tg-persona/internal/metrics"
	"github.com/magidandrew/tg-persona/internal/models"
	"github.com/magidandrew/tg-persona/internal/store"
)

// Decider is the completion-service surface the dispatcher consumes.
type Decider interface {
	Decide(ctx context.Context, turns []completion.Turn) (models.Decision, error)
}

// DraftSink receives drafts that warrant review. Implemented by the
// review controller, which persists the draft and surfaces it to the
// reviewer as one step.
type DraftSink interface {
	Submit(ctx context.Context, draft *models.Draft) error
}

// Dispatcher turns a context window into a completion request and acts
// on the structured decision. Every failure mode is recovered locally:
// Dispatch never panics and has no error to propagate.
type Dispatcher struct {
	client  Decider
	drafts  DraftSink
	limiter *store.DispatchLimiter // nil when Redis is not configured
	selfID  string

	dispatchLimit  int
	dispatchWindow time.Duration

	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher. limiter may be nil.
func NewDispatcher(client Decider, drafts DraftSink, limiter *store.DispatchLimiter, selfID string, limit int, window time.Duration, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		client:         client,
		drafts:         drafts,
		limiter:        limiter,
		selfID:         selfID,
		dispatchLimit:  limit,
		dispatchWindow: window,
		logger:         logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch reconstructs the exchange as role-tagged turns, requests a
// decision, and submits a draft when the decision is affirmative.
func (d *Dispatcher) Dispatch(ctx context.Context, conversationID string, window []models.ContextEntry) {
	if len(window) == 0 {
		return
	}

	if d.limiter != nil {
		allowed, err := d.limiter.Allow(ctx, conversationID, d.dispatchLimit, d.dispatchWindow)
		if err != nil {
			// Limiter trouble should not stall drafting; proceed.
			d.logger.Warn().Err(err).Str("conversation", conversationID).Msg("dispatch limiter unavailable")
		} else if !allowed {
			metrics.DispatchRateLimited.Inc()
			d.logger.Info().Str("conversation", conversationID).Msg("dispatch rate limited")
			return
		}
	}

	turns := make([]completion.Turn, 0, len(window))
	for _, entry := range window {
		if entry.SenderID == d.selfID {
			turns = append(turns, completion.Turn{Role: completion.RolePriorReply, Content: entry.Text})
		} else {
			turns = append(turns, completion.Turn{Role: completion.RoleIncoming, Content: fmt.Sprintf("%s: %s", entry.SenderName, entry.Text)})
		}
	}

	start := time.Now()
	decision, err := d.client.Decide(ctx, turns)
	metrics.CompletionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DispatchFailures.Inc()
		d.logger.Warn().Err(err).Str("conversation", conversationID).Msg("completion call failed, no draft produced")
		return
	}

	if !decision.ShouldRespond {
		metrics.DispatchDeclined.Inc()
		d.logger.Info().
			Str("conversation", conversationID).
			Str("reason", decision.Reason).
			Msg("completion declined to respond")
		return
	}

	draft := &models.Draft{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Response:       decision.Response,
		Context:        window,
		Confidence:     decision.Confidence,
		Urgency:        decision.Urgency,
		State:          models.DraftPending,
		CreatedAt:      time.Now().UTC(),
	}

	if err := d.drafts.Submit(ctx, draft); err != nil {
		d.logger.Error().Err(err).Str("draft", draft.ID).Msg("draft submission failed")
		return
	}

	metrics.DraftsCreated.WithLabelValues(string(draft.Urgency)).Inc()
	d.logger.Info().
		Str("draft", draft.ID).
		Str("conversation", conversationID).
		Int("confidence", draft.Confidence).
		Str("urgency", string(draft.Urgency)).
		Msg("draft created")
}
