package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/magidandrew/tg-persona/internal/completion"
	"github.com/magidandrew/tg-persona/internal/models"
)

type fakeDecider struct {
	decision models.Decision
	err      error
	captured []completion.Turn
	calls    int
}

func (f *fakeDecider) Decide(_ context.Context, turns []completion.Turn) (models.Decision, error) {
	f.calls++
	f.captured = turns
	return f.decision, f.err
}

type fakeSink struct {
	submitted []*models.Draft
	err       error
}

func (f *fakeSink) Submit(_ context.Context, draft *models.Draft) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, draft)
	return nil
}

func testWindow() []models.ContextEntry {
	return []models.ContextEntry{
		{SenderID: "a", SenderName: "Alice", Timestamp: time.Now(), Text: "is the export fixed?"},
		{SenderID: "self-1", SenderName: "owner", Timestamp: time.Now(), Text: "looking into it"},
		{SenderID: "a", SenderName: "Alice", Timestamp: time.Now(), Text: "any news?"},
	}
}

func TestDispatchCreatesDraftOnAffirmativeDecision(t *testing.T) {
	dec := &fakeDecider{decision: models.Decision{
		ShouldRespond: true,
		Reason:        "direct question awaiting answer",
		Confidence:    85,
		Urgency:       models.UrgencyMedium,
		Response:      "yep, shipping the fix today",
	}}
	sink := &fakeSink{}
	d := NewDispatcher(dec, sink, nil, "self-1", 10, time.Hour, zerolog.Nop())

	window := testWindow()
	d.Dispatch(context.Background(), "c1", window)

	require.Len(t, sink.submitted, 1)
	draft := sink.submitted[0]
	require.NotEmpty(t, draft.ID)
	require.Equal(t, "c1", draft.ConversationID)
	require.Equal(t, "yep, shipping the fix today", draft.Response)
	require.Equal(t, models.DraftPending, draft.State)
	require.Equal(t, 85, draft.Confidence)
	require.Equal(t, models.UrgencyMedium, draft.Urgency)
	require.Equal(t, window, draft.Context)
}

func TestDispatchRoleMapping(t *testing.T) {
	dec := &fakeDecider{decision: models.Decision{Urgency: models.UrgencyLow}}
	d := NewDispatcher(dec, &fakeSink{}, nil, "self-1", 10, time.Hour, zerolog.Nop())

	d.Dispatch(context.Background(), "c1", testWindow())

	require.Len(t, dec.captured, 3)
	require.Equal(t, completion.RoleIncoming, dec.captured[0].Role)
	require.Equal(t, "Alice: is the export fixed?", dec.captured[0].Content)
	require.Equal(t, completion.RolePriorReply, dec.captured[1].Role)
	require.Equal(t, "looking into it", dec.captured[1].Content)
	require.Equal(t, completion.RoleIncoming, dec.captured[2].Role)
}

func TestDispatchDeclinedProducesNoDraft(t *testing.T) {
	dec := &fakeDecider{decision: models.Decision{
		ShouldRespond: false,
		Reason:        "owner already replied",
		Urgency:       models.UrgencyLow,
	}}
	sink := &fakeSink{}
	d := NewDispatcher(dec, sink, nil, "self-1", 10, time.Hour, zerolog.Nop())

	d.Dispatch(context.Background(), "c1", testWindow())

	require.Equal(t, 1, dec.calls)
	require.Empty(t, sink.submitted)
}

func TestDispatchRecoversFromCompletionFailure(t *testing.T) {
	dec := &fakeDecider{err: errors.New("upstream 500")}
	sink := &fakeSink{}
	d := NewDispatcher(dec, sink, nil, "self-1", 10, time.Hour, zerolog.Nop())

	require.NotPanics(t, func() {
		d.Dispatch(context.Background(), "c1", testWindow())
	})
	require.Empty(t, sink.submitted)
}

func TestDispatchRecoversFromSinkFailure(t *testing.T) {
	dec := &fakeDecider{decision: models.Decision{
		ShouldRespond: true,
		Confidence:    50,
		Urgency:       models.UrgencyLow,
		Response:      "ok",
	}}
	sink := &fakeSink{err: errors.New("store unreachable")}
	d := NewDispatcher(dec, sink, nil, "self-1", 10, time.Hour, zerolog.Nop())

	require.NotPanics(t, func() {
		d.Dispatch(context.Background(), "c1", testWindow())
	})
}

func TestDispatchEmptyWindowIsNoop(t *testing.T) {
	dec := &fakeDecider{}
	d := NewDispatcher(dec, &fakeSink{}, nil, "self-1", 10, time.Hour, zerolog.Nop())

	d.Dispatch(context.Background(), "c1", nil)
	require.Equal(t, 0, dec.calls)
}
