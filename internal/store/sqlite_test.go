package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/magidandrew/tg-persona/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func sampleDraft() *models.Draft {
	return &models.Draft{
		ID:             uuid.NewString(),
		ConversationID: "c1",
		Response:       "thanks for flagging, fix going out today",
		Context: []models.ContextEntry{
			{SenderID: "a", SenderName: "Alice", Timestamp: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), Text: "points are negative again"},
			{SenderID: "b", SenderName: "Bob", Timestamp: time.Date(2025, 6, 1, 10, 1, 0, 0, time.UTC), Text: "seeing the same"},
		},
		Confidence: 92,
		Urgency:    models.UrgencyHigh,
		State:      models.DraftPending,
		CreatedAt:  time.Date(2025, 6, 1, 10, 2, 0, 0, time.UTC),
	}
}

func TestDraftRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := sampleDraft()

	require.NoError(t, s.PutDraft(ctx, d))

	drafts, err := s.GetDrafts(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	got := drafts[d.ID]
	require.NotNil(t, got)
	require.Equal(t, d.ID, got.ID)
	require.Equal(t, d.ConversationID, got.ConversationID)
	require.Equal(t, d.Response, got.Response)
	require.Equal(t, d.Confidence, got.Confidence)
	require.Equal(t, d.Urgency, got.Urgency)
	require.Equal(t, d.State, got.State)
	require.True(t, d.CreatedAt.Equal(got.CreatedAt))

	// The context window round-trips structurally: same entries, same order.
	require.Len(t, got.Context, len(d.Context))
	for i := range d.Context {
		require.Equal(t, d.Context[i].SenderID, got.Context[i].SenderID)
		require.Equal(t, d.Context[i].SenderName, got.Context[i].SenderName)
		require.Equal(t, d.Context[i].Text, got.Context[i].Text)
		require.True(t, d.Context[i].Timestamp.Equal(got.Context[i].Timestamp))
	}
}

func TestPutDraftIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := sampleDraft()

	require.NoError(t, s.PutDraft(ctx, d))

	d.Response = "edited text"
	d.State = models.DraftEditing
	require.NoError(t, s.PutDraft(ctx, d))

	drafts, err := s.GetDrafts(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, "edited text", drafts[d.ID].Response)
	require.Equal(t, models.DraftEditing, drafts[d.ID].State)
}

func TestDeleteDraft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := sampleDraft()

	require.NoError(t, s.PutDraft(ctx, d))
	require.NoError(t, s.DeleteDraft(ctx, d.ID))

	drafts, err := s.GetDrafts(ctx)
	require.NoError(t, err)
	require.Empty(t, drafts)

	// Deleting an absent id is not an error.
	require.NoError(t, s.DeleteDraft(ctx, d.ID))
}

func TestGetDraftsEmpty(t *testing.T) {
	s := newTestStore(t)

	drafts, err := s.GetDrafts(context.Background())
	require.NoError(t, err)
	require.Empty(t, drafts)
}

func TestContextCodecRejectsUnknownVersion(t *testing.T) {
	_, err := decodeContext(`{"v":99,"entries":[]}`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported context version")
}
