/*
scheduler.go - Periodic variance runs

PURPOSE:
  Runs the variance pipeline on a fixed interval while the server is up,
  so the report and the run history stay current without an external
  cron. Scheduled runs share the handler's mutex with POST /api/runs and
  are recorded in the same history.

DESIGN:
  - One background goroutine driven by a ticker
  - Runs once immediately on Start
  - Stop waits for an in-flight run to finish

CONFIGURATION:
  - Interval: server.schedule in the config ("" or 0 disables)

USAGE:
  scheduler := NewRunScheduler(handler, time.Hour, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerRun endpoint (manual runs)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/shift-variance/logger"
)

// RunScheduler triggers pipeline runs on an interval.
type RunScheduler struct {
	Handler  *Handler
	Interval time.Duration
	Logger   logger.Logger

	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRunScheduler creates a scheduler. A zero interval disables it.
func NewRunScheduler(h *Handler, interval time.Duration, log logger.Logger) *RunScheduler {
	if log == nil {
		log = logger.NewNop()
	}
	return &RunScheduler{
		Handler:  h,
		Interval: interval,
		Logger:   log.With("component", "scheduler"),
	}
}

// Enabled reports whether Start will do anything.
func (rs *RunScheduler) Enabled() bool { return rs.Interval > 0 }

// Start begins the scheduler.
func (rs *RunScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled() {
		rs.Logger.Info("disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rs.cancel = cancel
	rs.stop = make(chan struct{})
	rs.ticker = time.NewTicker(rs.Interval)
	rs.wg.Add(1)

	go rs.run(ctx)

	rs.Logger.Info("started", "interval", rs.Interval)
}

// Stop stops the scheduler.
func (rs *RunScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker == nil {
		return
	}
	rs.ticker.Stop()
	close(rs.stop)
	rs.wg.Wait()
	rs.cancel()
	rs.ticker = nil
	rs.Logger.Info("stopped")
}

func (rs *RunScheduler) run(ctx context.Context) {
	defer rs.wg.Done()

	rs.runOnce(ctx)

	for {
		select {
		case <-rs.ticker.C:
			rs.runOnce(ctx)
		case <-rs.stop:
			return
		}
	}
}

func (rs *RunScheduler) runOnce(ctx context.Context) {
	res := rs.Handler.run(ctx, nil)
	rs.Logger.Info("scheduled run finished",
		"run_id", res.RunID,
		"status", res.Status,
		"flagged", res.Flagged,
	)
}
