package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-variance/pipeline"
	"github.com/warp/shift-variance/store/memory"
)

func TestMemory_SaveGetList(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	// GIVEN: Three runs saved out of start order
	require.NoError(t, m.SaveRun(ctx, pipeline.RunRecord{ID: "b", StartedAt: base.Add(time.Hour), RuleCounts: map[string]int{"shift_mismatch": 2}}))
	require.NoError(t, m.SaveRun(ctx, pipeline.RunRecord{ID: "a", StartedAt: base}))
	require.NoError(t, m.SaveRun(ctx, pipeline.RunRecord{ID: "c", StartedAt: base.Add(2 * time.Hour)}))

	// WHEN: Listed
	runs, err := m.ListRuns(ctx, 0)

	// THEN: Newest first
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})

	limited, err := m.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	got, err := m.GetRun(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, got.RuleCounts["shift_mismatch"])
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	require.NoError(t, m.SaveRun(ctx, pipeline.RunRecord{ID: "a", RuleCounts: map[string]int{"x": 1}}))

	got, err := m.GetRun(ctx, "a")
	require.NoError(t, err)
	got.RuleCounts["x"] = 99

	again, err := m.GetRun(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, again.RuleCounts["x"])
}

func TestMemory_UnknownRun(t *testing.T) {
	_, err := memory.New().GetRun(context.Background(), "missing")

	assert.True(t, errors.Is(err, pipeline.ErrRunNotFound))
}
