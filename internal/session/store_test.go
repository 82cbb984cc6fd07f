package session

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(client)
}

func TestSaveAndLoadCallState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state := &CallState{
		SessionID:      "sess_abc",
		Status:         CallStatusActive,
		Phase:          "discovery",
		TurnCount:      2,
		StartedAt:      time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC),
		LastActivityAt: time.Date(2026, 8, 29, 15, 1, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveCallState(ctx, state))

	loaded, err := store.LoadCallState(ctx, "sess_abc")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "discovery", loaded.Phase)
	assert.Equal(t, 2, loaded.TurnCount)
}

func TestLoadCallState_Missing(t *testing.T) {
	store := newTestStore(t)

	state, err := store.LoadCallState(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestSaveCallState_RequiresID(t *testing.T) {
	store := newTestStore(t)

	assert.Error(t, store.SaveCallState(context.Background(), &CallState{}))
	assert.Error(t, store.SaveCallState(context.Background(), nil))
}

func TestTranscriptRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entries := []TranscriptEntry{
		{Role: "agent", Text: "Hi! Is it okay if this call is transcribed?", Timestamp: time.Now().UTC()},
		{Role: "user", Text: "sure, go ahead", Timestamp: time.Now().UTC()},
		{Role: "user", Text: "we have 8 people on the team", Timestamp: time.Now().UTC()},
	}
	for _, entry := range entries {
		require.NoError(t, store.AppendTranscript(ctx, "sess_abc", entry))
	}

	got, err := store.Transcript(ctx, "sess_abc")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "agent", got[0].Role)
	assert.Equal(t, "we have 8 people on the team", got[2].Text)
}

func TestMarkEnded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state := &CallState{SessionID: "sess_end", Status: CallStatusActive, StartedAt: time.Now().UTC()}
	require.NoError(t, store.SaveCallState(ctx, state))

	require.NoError(t, store.MarkEnded(ctx, "sess_end", ReasonCostLimit))

	loaded, err := store.LoadCallState(ctx, "sess_end")
	require.NoError(t, err)
	assert.Equal(t, CallStatusEnded, loaded.Status)
	assert.Equal(t, string(ReasonCostLimit), loaded.TerminationReason)

	// Ending a call with no mirrored state is a no-op, not an error.
	require.NoError(t, store.MarkEnded(ctx, "missing", ReasonTimeLimit))
}
