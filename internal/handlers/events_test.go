package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/magidandrew/tg-persona/internal/models"
	"github.com/magidandrew/tg-persona/internal/transport"
)

type fakeAggregator struct {
	received []models.IncomingMessage
}

func (f *fakeAggregator) OnMessage(_ context.Context, msg models.IncomingMessage) {
	f.received = append(f.received, msg)
}

type fakeReviewer struct {
	inputs []string
	drafts []models.Draft
}

func (f *fakeReviewer) HandleInput(_ context.Context, actorID, text string) {
	f.inputs = append(f.inputs, actorID+": "+text)
}

func (f *fakeReviewer) Snapshot() []models.Draft {
	return append([]models.Draft(nil), f.drafts...)
}

func newTestHandler(t *testing.T) (*Handler, *fakeAggregator, *fakeReviewer) {
	t.Helper()
	filter, err := transport.NewChatFilter("family", nil)
	require.NoError(t, err)

	agg := &fakeAggregator{}
	review := &fakeReviewer{}
	h := NewHandler(nil, nil, agg, review, filter, "review-channel", zerolog.Nop())
	return h, agg, review
}

func postEvent(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Events(rec, req)
	return rec
}

func TestEventsRoutesToMonitor(t *testing.T) {
	h, agg, review := newTestHandler(t)

	rec := postEvent(t, h, `{"conversation_id":"c1","conversation_title":"Family Chat","sender_id":"u1","sender_name":"Alice","text":"hi"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), `"target":"monitor"`)
	require.Len(t, agg.received, 1)
	require.Equal(t, "c1", agg.received[0].ConversationID)
	require.Empty(t, review.inputs)
}

func TestEventsRoutesReviewChannel(t *testing.T) {
	h, agg, review := newTestHandler(t)

	rec := postEvent(t, h, `{"conversation_id":"review-channel","sender_id":"rev-1","text":"approve abc123"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), `"target":"review"`)
	require.Equal(t, []string{"rev-1: approve abc123"}, review.inputs)
	require.Empty(t, agg.received)
}

func TestEventsIgnoresUnmatchedConversation(t *testing.T) {
	h, agg, review := newTestHandler(t)

	rec := postEvent(t, h, `{"conversation_id":"c9","conversation_title":"Random Group","sender_id":"u1","text":"hi"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), `"target":"ignored"`)
	require.Empty(t, agg.received)
	require.Empty(t, review.inputs)
}

func TestEventsRejectsMalformedPayload(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := postEvent(t, h, `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsRequiresIdentifiers(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := postEvent(t, h, `{"conversation_id":"","sender_id":"u1","text":"hi"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDraftsListsNewestFirst(t *testing.T) {
	h, _, review := newTestHandler(t)
	now := time.Now().UTC()
	review.drafts = []models.Draft{
		{ID: "older", CreatedAt: now.Add(-time.Hour)},
		{ID: "newer", CreatedAt: now},
	}

	req := httptest.NewRequest(http.MethodGet, "/drafts", nil)
	rec := httptest.NewRecorder()
	h.Drafts(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `"count":2`)
	require.Less(t, strings.Index(body, "newer"), strings.Index(body, "older"))
}
