/*
Package pipeline runs one end-to-end variance check.

PURPOSE:
  Load -> Decode -> Reconcile -> Apply rules -> Write report, with the
  failure handling around it: missing inputs and unexpected failures turn
  into a one-row ERROR report, everything else degrades per field and the
  run still succeeds.

ERROR KINDS:
  missing_file       fatal, fallback report
  unparseable_value  per field, value becomes unknown/default
  schema_mismatch    per rule, rule skipped
  unhandled          fatal, fallback report (panics included)

  Run never returns an error. The Result says what happened and
  Result.ExitCode applies the configured FailurePolicy.

SEE ALSO:
  - variance/engine.go: Rule evaluation
  - report/report.go: Artifact writer
  - store/sqlite/sqlite.go: Run history
*/
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/warp/shift-variance/logger"
	"github.com/warp/shift-variance/report"
	"github.com/warp/shift-variance/tabular"
	"github.com/warp/shift-variance/variance"
)

// Options is everything one run needs. Build it from config.Config.Options
// or by hand in tests.
type Options struct {
	Shifts tabular.Source
	Leave  tabular.Source
	Roster tabular.Source
	Output report.Writer

	Decoder       *variance.Decoder
	Policy        variance.Policy
	FailurePolicy FailurePolicy
}

// Runner executes pipeline runs. Store is optional.
type Runner struct {
	Options Options
	Logger  logger.Logger
	Store   RunStore

	// Now is overridable for tests.
	Now func() time.Time
}

func NewRunner(opts Options, log logger.Logger, store RunStore) *Runner {
	return &Runner{Options: opts, Logger: log, Store: store, Now: time.Now}
}

// Result describes one finished run.
type Result struct {
	RunID      string
	Status     Status
	OutputPath string

	Rows    int
	Flagged int
	Rules   variance.EngineReport
	Join    variance.JoinStats
	Missing map[string][]variance.Field // per source, canonical columns not found

	ErrKind variance.ErrorKind
	Err     error

	StartedAt   time.Time
	CompletedAt time.Time
}

func (r Result) Failed() bool { return r.Status == StatusFailed }

// ExitCode maps the result to a process exit code.
func (r Result) ExitCode(p FailurePolicy) int {
	if r.Failed() && p == NonzeroOnFailure {
		return 1
	}
	return 0
}

// Record converts the result into its history entry.
func (r Result) Record() RunRecord {
	rec := RunRecord{
		ID:          r.RunID,
		Status:      r.Status,
		ErrorKind:   string(r.ErrKind),
		ShiftRows:   r.Rows,
		FlaggedRows: r.Flagged,
		OutputPath:  r.OutputPath,
		RuleCounts:  make(map[string]int, len(r.Rules.Counts)),
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	for id, n := range r.Rules.Counts {
		rec.RuleCounts[string(id)] = n
	}
	return rec
}

// =============================================================================
// RUN
// =============================================================================

// Run executes one pipeline pass. It never panics and never returns an
// error; failures are logged, written as the fallback report and reported
// on the Result.
func (r *Runner) Run(ctx context.Context) Result {
	res := Result{
		RunID:      uuid.NewString(),
		OutputPath: r.Options.Output.Path,
		StartedAt:  r.now(),
		Missing:    make(map[string][]variance.Field),
	}
	log := r.log().With("run_id", res.RunID)
	log.Info("variance run started",
		"shifts", r.Options.Shifts.Path,
		"leave", r.Options.Leave.Path,
		"roster", r.Options.Roster.Path,
		"output", r.Options.Output.Path,
	)

	err := r.execute(ctx, log, &res)
	if err != nil {
		r.fail(ctx, log, &res, err)
	} else {
		res.Status = StatusSucceeded
		log.Info("variance run finished",
			"rows", res.Rows,
			"flagged", res.Flagged,
			"rules_applied", len(res.Rules.Applied),
			"rules_skipped", len(res.Rules.Skipped),
		)
	}
	res.CompletedAt = r.now()

	r.record(ctx, log, res)
	return res
}

func (r *Runner) execute(ctx context.Context, log logger.Logger, res *Result) (err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Debug("recovered panic", "stack", string(debug.Stack()))
			err = &variance.RunError{
				Kind: variance.KindUnhandled,
				Op:   "run",
				Err:  fmt.Errorf("%w: %v", variance.ErrUnhandled, p),
			}
		}
	}()

	shiftsTable, err := tabular.Load(ctx, r.Options.Shifts)
	if err != nil {
		return err
	}
	leaveTable, err := tabular.Load(ctx, r.Options.Leave)
	if err != nil {
		return err
	}
	rosterTable, err := tabular.Load(ctx, r.Options.Roster)
	if err != nil {
		return err
	}

	dec := r.Options.Decoder
	if dec == nil {
		dec = variance.NewDecoder()
	}
	shifts := dec.DecodeShifts(shiftsTable)
	leave := dec.DecodeLeave(leaveTable)
	roster := dec.DecodeRoster(rosterTable)

	r.noteMissing(log, res, sourceName(r.Options.Shifts, "shifts"), shifts.Mapping)
	r.noteMissing(log, res, sourceName(r.Options.Leave, "leave"), leave.Mapping)
	r.noteMissing(log, res, sourceName(r.Options.Roster, "roster"), roster.Mapping)

	rc := variance.Reconcile(shifts, leave, roster)
	res.Join = rc.Stats
	if rc.Stats.UnparsedDates > 0 || rc.Stats.UnparsedNumbers > 0 {
		log.Warn("unparseable values degraded",
			"kind", variance.KindUnparseableValue,
			"dates", rc.Stats.UnparsedDates,
			"numbers", rc.Stats.UnparsedNumbers,
		)
	}
	if rc.Stats.DuplicateLeaveKeys > 0 || rc.Stats.DuplicateRosterKeys > 0 {
		log.Warn("duplicate join keys, first entry kept",
			"leave", rc.Stats.DuplicateLeaveKeys,
			"roster", rc.Stats.DuplicateRosterKeys,
		)
	}
	log.Debug("join complete",
		"shift_rows", rc.Stats.ShiftRows,
		"leave_matches", rc.Stats.LeaveMatches,
		"roster_matches", rc.Stats.RosterMatches,
		"unknown_dates", rc.Stats.UnknownDates,
	)

	res.Rules = variance.NewEngine(r.Options.Policy).Apply(rc)
	for _, s := range res.Rules.Skipped {
		log.Warn("rule skipped", "rule", s.Rule, "reason", s.Reason)
	}
	res.Rows = len(rc.Rows)
	res.Flagged = res.Rules.Flagged

	if err := r.Options.Output.Write(ctx, rc); err != nil {
		return &variance.RunError{Kind: variance.KindUnhandled, Op: "write report", Err: err}
	}
	return nil
}

func (r *Runner) noteMissing(log logger.Logger, res *Result, source string, m variance.Mapping) {
	if len(m.Columns) == 0 && len(m.Missing) > 0 {
		// Source absent or empty.
		res.Missing[source] = m.Missing
		return
	}
	if len(m.Missing) > 0 {
		res.Missing[source] = m.Missing
		log.Warn("columns not found", "kind", variance.KindSchemaMismatch, "source", source, "missing", m.Missing)
	}
}

func (r *Runner) fail(ctx context.Context, log logger.Logger, res *Result, err error) {
	res.Status = StatusFailed
	res.ErrKind = variance.KindOf(err)
	res.Err = err
	log.Error("variance run failed", "kind", res.ErrKind, "err", err)

	// Counts from a failed run would describe a report that was not written.
	res.Rows, res.Flagged = 0, 0

	if werr := r.Options.Output.WriteFallback(context.WithoutCancel(ctx), res.ErrKind, err.Error()); werr != nil {
		log.Error("fallback report not written", "output", r.Options.Output.Path, "err", werr)
		res.Err = fmt.Errorf("%w (fallback report: %v)", err, werr)
		return
	}
	log.Info("fallback report written", "output", r.Options.Output.Path)
}

func (r *Runner) record(ctx context.Context, log logger.Logger, res Result) {
	if r.Store == nil {
		return
	}
	if err := r.Store.SaveRun(context.WithoutCancel(ctx), res.Record()); err != nil {
		log.Warn("run history not saved", "err", err)
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Runner) log() logger.Logger {
	if r.Logger == nil {
		return logger.NewNop()
	}
	return r.Logger.With("component", "pipeline")
}

func sourceName(s tabular.Source, fallback string) string {
	if s.Name != "" {
		return s.Name
	}
	return fallback
}
