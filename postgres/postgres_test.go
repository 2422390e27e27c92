package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/deepnoodle-ai/assay"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("assay"),
		tcpostgres.WithUsername("assay"),
		tcpostgres.WithPassword("assay"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := Open(ctx, dsn, Options{TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, time.Hour)
	state := assay.NewPipelineState("thread_pg", assay.ProblemInput{Problem: "p"})

	cp, meta, err := store.Latest(ctx, state.ThreadID)
	require.NoError(t, err)
	require.Nil(t, cp)
	require.Nil(t, meta)

	first := assay.NewCheckpoint(state, assay.TriggerStageStart, "")
	_, err = store.Put(ctx, state.ThreadID, first, nil)
	require.NoError(t, err)

	state = state.WithScreening(assay.ScreeningResult{Refined: "r", Viable: true}).
		WithCompletedStage(assay.StageScreening)
	second := assay.NewCheckpoint(state, assay.TriggerStageComplete, first.ID)
	_, err = store.Put(ctx, state.ThreadID, second, nil)
	require.NoError(t, err)

	cp, meta, err = store.Latest(ctx, state.ThreadID)
	require.NoError(t, err)
	require.Equal(t, second.ID, cp.ID)
	require.NotNil(t, cp.State.Screening)
	require.Equal(t, []assay.Stage{assay.StageScreening}, meta.CompletedStages)

	older, err := store.GetAt(ctx, state.ThreadID, first.ID)
	require.NoError(t, err)
	require.NotNil(t, older)
	require.Nil(t, older.State.Screening)

	metas, err := store.List(ctx, state.ThreadID, assay.ListOptions{})
	require.NoError(t, err)
	require.Len(t, metas, 2)
	require.Equal(t, second.ID, metas[0].CheckpointID)

	metas, err = store.List(ctx, state.ThreadID, assay.ListOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, metas, 1)

	require.NoError(t, store.DeleteThread(ctx, state.ThreadID))
	cp, _, err = store.Latest(ctx, state.ThreadID)
	require.NoError(t, err)
	require.Nil(t, cp)
}

func TestExpiredCheckpointsAreInvisible(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, time.Millisecond)
	state := assay.NewPipelineState("thread_ttl", assay.ProblemInput{Problem: "p"})

	cp := assay.NewCheckpoint(state, assay.TriggerStageStart, "")
	_, err := store.Put(ctx, state.ThreadID, cp, nil)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	latest, _, err := store.Latest(ctx, state.ThreadID)
	require.NoError(t, err)
	require.Nil(t, latest)

	swept, err := store.Sweep(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, swept, int64(1))
}
