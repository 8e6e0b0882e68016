package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/magidandrew/tg-persona/internal/metrics"
	"github.com/magidandrew/tg-persona/internal/models"
)

// eventResponse acknowledges an ingested message event.
type eventResponse struct {
	Status string `json:"status"`
	Target string `json:"target"` // "review", "monitor", or "ignored"
}

// Events ingests one message event from the transport bridge and routes
// it: review-channel traffic goes to the approval controller, monitored
// conversations go to the aggregator, everything else is dropped.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	var msg models.IncomingMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid event payload")
		return
	}
	if msg.ConversationID == "" || msg.SenderID == "" {
		h.Error(w, http.StatusBadRequest, "conversation_id and sender_id are required")
		return
	}

	metrics.MessagesIngested.Inc()

	if msg.ConversationID == h.reviewChannelID {
		h.review.HandleInput(r.Context(), msg.SenderID, msg.Text)
		h.JSON(w, http.StatusAccepted, eventResponse{Status: "accepted", Target: "review"})
		return
	}

	if h.filter.Match(msg.ConversationTitle) {
		h.agg.OnMessage(r.Context(), msg)
		h.JSON(w, http.StatusAccepted, eventResponse{Status: "accepted", Target: "monitor"})
		return
	}

	h.JSON(w, http.StatusAccepted, eventResponse{Status: "accepted", Target: "ignored"})
}
