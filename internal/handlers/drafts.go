package handlers

import (
	"net/http"
	"sort"

	"github.com/magidandrew/tg-persona/internal/models"
)

// draftsResponse is the read-only listing of outstanding drafts.
type draftsResponse struct {
	Count  int            `json:"count"`
	Drafts []models.Draft `json:"drafts"`
}

// Drafts lists all outstanding drafts, newest first.
func (h *Handler) Drafts(w http.ResponseWriter, r *http.Request) {
	drafts := h.review.Snapshot()
	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].CreatedAt.After(drafts[j].CreatedAt)
	})

	h.JSON(w, http.StatusOK, draftsResponse{Count: len(drafts), Drafts: drafts})
}
