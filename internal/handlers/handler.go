package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/magidandrew/tg-persona/internal/models"
	"github.com/magidandrew/tg-persona/internal/store"
	"github.com/magidandrew/tg-persona/internal/transport"
)

// Aggregator is the message-ingest surface of the quiet-period pipeline.
type Aggregator interface {
	OnMessage(ctx context.Context, msg models.IncomingMessage)
}

// Reviewer is the surface of the approval controller the HTTP layer uses.
type Reviewer interface {
	HandleInput(ctx context.Context, actorID, text string)
	Snapshot() []models.Draft
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store           store.ApprovalStore
	limiter         *store.DispatchLimiter // may be nil
	agg             Aggregator
	review          Reviewer
	filter          *transport.ChatFilter
	reviewChannelID string
	logger          zerolog.Logger
}

// NewHandler creates a new Handler with the given collaborators.
func NewHandler(s store.ApprovalStore, limiter *store.DispatchLimiter, agg Aggregator, review Reviewer, filter *transport.ChatFilter, reviewChannelID string, logger zerolog.Logger) *Handler {
	return &Handler{
		store:           s,
		limiter:         limiter,
		agg:             agg,
		review:          review,
		filter:          filter,
		reviewChannelID: reviewChannelID,
		logger:          logger.With().Str("component", "http").Logger(),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
