package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-variance/logger"
)

func TestRunScheduler_RunsImmediatelyAndStops(t *testing.T) {
	// GIVEN: A scheduler with a long interval
	_, runner := newTestServer(t)
	h := NewHandler(runner, runner.Store)
	rs := NewRunScheduler(h, time.Hour, logger.NewNop())

	// WHEN: Started
	rs.Start()

	// THEN: The first run lands in the history without waiting for a tick
	require.Eventually(t, func() bool {
		runs, err := runner.Store.ListRuns(context.Background(), 0)
		return err == nil && len(runs) == 1
	}, 5*time.Second, 10*time.Millisecond)

	rs.Stop()
	rs.Stop()
}

func TestRunScheduler_DisabledWithoutInterval(t *testing.T) {
	_, runner := newTestServer(t)
	rs := NewRunScheduler(NewHandler(runner, runner.Store), 0, nil)

	rs.Start()
	rs.Stop()

	assert.False(t, rs.Enabled())
	runs, err := runner.Store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
