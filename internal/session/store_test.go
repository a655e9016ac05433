package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	store, err := Open(db)
	require.NoError(t, err)
	return store
}

func TestProjectNotFoundBeforeCreate(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Project(context.Background(), "deploy-does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAppendIsLastWriterWinsAndMonotonicLastUpdated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := NewSessionID(KindDeploy)
	t0 := time.Now()

	require.NoError(t, store.Create(ctx, CreateParams{
		ID: id, Kind: KindDeploy, RepoURL: "https://example.com/r.git", Branch: "main",
	}, t0))

	require.NoError(t, store.Append(ctx, id, Event{
		Timestamp: t0.Add(1 * time.Second),
		Phase:     "cloning",
		Message:   "cloning repository",
		LogLine:   "clone started",
	}))
	afterAppend := t0.Add(1 * time.Second)

	state, err := store.Project(ctx, id)
	require.NoError(t, err)
	require.Equal(t, Phase("cloning"), state.Phase)
	require.Equal(t, "cloning repository", state.Message)
	require.True(t, !state.LastUpdated.Before(afterAppend))
	require.Len(t, state.Log, 1)

	require.NoError(t, store.Append(ctx, id, Event{
		Timestamp: t0.Add(2 * time.Second),
		Phase:     "terminal",
		Message:   "deployment failed",
		Outcome:   OutcomeFailed,
		ErrorText: "stack rollback",
		LogLine:   "stack entered ROLLBACK_COMPLETE",
	}))

	state, err = store.Project(ctx, id)
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, state.Outcome)
	require.True(t, state.Terminal())
	require.Equal(t, "stack rollback", state.ErrorText)
	require.Len(t, state.Log, 2)
}

func TestAppendDuplicateTimestampIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := NewSessionID(KindVerify)
	t0 := time.Now()
	require.NoError(t, store.Create(ctx, CreateParams{ID: id, Kind: KindVerify}, t0))

	dup := Event{Timestamp: t0.Add(time.Second), Phase: "scanning", Message: "scanning source", LogLine: "scanning source"}
	require.NoError(t, store.Append(ctx, id, dup))
	require.NoError(t, store.Append(ctx, id, dup)) // tolerated retry, last wins already applied

	state, err := store.Project(ctx, id)
	require.NoError(t, err)
	require.Equal(t, Phase("scanning"), state.Phase)
	require.Len(t, state.Log, 1)
}

func TestListByPhase(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	id1 := NewSessionID(KindDeploy)
	require.NoError(t, store.Create(ctx, CreateParams{ID: id1, Kind: KindDeploy}, now))
	require.NoError(t, store.Append(ctx, id1, Event{Timestamp: now.Add(time.Second), Phase: "provisioning"}))

	id2 := NewSessionID(KindDeploy)
	require.NoError(t, store.Create(ctx, CreateParams{ID: id2, Kind: KindDeploy}, now))

	provisioning, err := store.ListByPhase(ctx, "provisioning", 10)
	require.NoError(t, err)
	require.Len(t, provisioning, 1)
	require.Equal(t, id1, provisioning[0].ID)

	pending, err := store.ListByPhase(ctx, "pending", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, id2, pending[0].ID)
}
