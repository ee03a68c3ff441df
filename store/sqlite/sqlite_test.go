package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-variance/pipeline"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveAndGetRun(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	started := time.Date(2025, 3, 31, 18, 0, 0, 0, time.UTC)

	// GIVEN: A finished run with rule counts
	run := pipeline.RunRecord{
		ID:          "run-1",
		Status:      pipeline.StatusSucceeded,
		ShiftRows:   120,
		FlaggedRows: 7,
		OutputPath:  "data/variance_report.csv",
		RuleCounts:  map[string]int{"shift_mismatch": 5, "allowance_on_time_off": 2},
		StartedAt:   started,
		CompletedAt: started.Add(1500 * time.Millisecond),
	}

	// WHEN: Saved and read back
	require.NoError(t, store.SaveRun(ctx, run))
	got, err := store.GetRun(ctx, "run-1")

	// THEN: Every field survives
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.Status, got.Status)
	assert.Equal(t, 120, got.ShiftRows)
	assert.Equal(t, 7, got.FlaggedRows)
	assert.Equal(t, run.RuleCounts, got.RuleCounts)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))
	assert.True(t, run.CompletedAt.Equal(got.CompletedAt))
	assert.Empty(t, got.ErrorKind)
}

func TestStore_SaveRunReplaces(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	run := pipeline.RunRecord{
		ID:         "run-1",
		Status:     pipeline.StatusSucceeded,
		RuleCounts: map[string]int{"shift_mismatch": 5},
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.SaveRun(ctx, run))

	run.Status = pipeline.StatusFailed
	run.ErrorKind = "missing_file"
	run.Error = "open data/shifts.csv: no such file or directory"
	run.RuleCounts = nil
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusFailed, got.Status)
	assert.Equal(t, "missing_file", got.ErrorKind)
	assert.Empty(t, got.RuleCounts)
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SaveRun(ctx, pipeline.RunRecord{
			ID:        id,
			Status:    pipeline.StatusSucceeded,
			StartedAt: base.Add(time.Duration(i) * 500 * time.Millisecond),
		}))
	}

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "a", runs[2].ID)

	runs, err = store.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "c", runs[0].ID)
}

func TestStore_GetRunNotFound(t *testing.T) {
	_, err := newTestStore(t).GetRun(context.Background(), "nope")

	assert.True(t, IsNotFound(err))
}

func TestStore_FileDatabasePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(ctx, pipeline.RunRecord{ID: "x", Status: pipeline.StatusSucceeded, StartedAt: time.Now()}))
	require.NoError(t, store.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "x", got.ID)
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveRun(ctx, pipeline.RunRecord{ID: "x", RuleCounts: map[string]int{"r": 1}, StartedAt: time.Now()}))

	require.NoError(t, store.Reset(ctx))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
