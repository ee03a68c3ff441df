package pipeline_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-variance/logger"
	"github.com/warp/shift-variance/pipeline"
	"github.com/warp/shift-variance/report"
	"github.com/warp/shift-variance/store/memory"
	"github.com/warp/shift-variance/tabular"
	"github.com/warp/shift-variance/variance"
)

const shiftsCSV = `EmployeeID,EmployeeName,Date,ActualShift,ExceptionApproved,AllowanceApproved,AllowanceType
E001,Asha,2025-03-01,Day,Yes,Yes,Meal
E002,Ben,2025-03-01,Night,Yes,Yes,Night
E003,Chen,2025-03-01,day,No,No,
`

const leaveCSV = `EmployeeID,Date,LeaveStatus
E001,2025-03-01,PTO
`

const rosterCSV = `EmployeeID,Date,PlannedShift,MaxNightShifts
E002,2025-03-01,Night,5
E003,2025-03-01,Night,
`

func writeInputs(t *testing.T) (dir string, opts pipeline.Options) {
	t.Helper()
	dir = t.TempDir()
	files := map[string]string{"shifts.csv": shiftsCSV, "leave.csv": leaveCSV, "roster.csv": rosterCSV}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	opts = pipeline.Options{
		Shifts:        tabular.Source{Name: "shifts", Path: filepath.Join(dir, "shifts.csv"), Format: tabular.FormatCSV},
		Leave:         tabular.Source{Name: "leave", Path: filepath.Join(dir, "leave.csv"), Format: tabular.FormatCSV},
		Roster:        tabular.Source{Name: "roster", Path: filepath.Join(dir, "roster.csv"), Format: tabular.FormatCSV},
		Output:        report.Writer{Path: filepath.Join(dir, "out", "variance_report.csv"), Format: tabular.FormatCSV},
		Policy:        variance.DefaultPolicy(),
		FailurePolicy: pipeline.AlwaysZero,
	}
	return dir, opts
}

func loadReport(t *testing.T, path string) variance.Table {
	t.Helper()
	tbl, err := tabular.Load(context.Background(), tabular.Source{Name: "report", Path: path})
	require.NoError(t, err)
	return tbl
}

func TestRun_EndToEnd(t *testing.T) {
	// GIVEN: Three valid inputs
	_, opts := writeInputs(t)
	store := memory.New()
	runner := pipeline.NewRunner(opts, logger.NewNop(), store)

	// WHEN: The pipeline runs
	res := runner.Run(context.Background())

	// THEN: It succeeds and flags E001 (allowance on PTO) and E003 (Day vs Night)
	require.NoError(t, res.Err)
	assert.Equal(t, pipeline.StatusSucceeded, res.Status)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, 2, res.Flagged)
	assert.Equal(t, 1, res.Rules.Counts[variance.RuleAllowanceOnTimeOff])
	assert.Equal(t, 1, res.Rules.Counts[variance.RuleShiftMismatch])
	assert.Equal(t, 0, res.ExitCode(pipeline.NonzeroOnFailure))

	tbl := loadReport(t, opts.Output.Path)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, "Flagged", tbl.Rows[0][9])
	assert.Equal(t, "Allowance on PTO/Holiday/WO; ", tbl.Rows[0][10])
	assert.Equal(t, "OK", tbl.Rows[1][9])
	assert.Equal(t, "SOW vs Actual shift mismatch; ", tbl.Rows[2][10])

	// AND: The run is in the history
	rec, err := store.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusSucceeded, rec.Status)
	assert.Equal(t, 2, rec.FlaggedRows)
	assert.Equal(t, 1, rec.RuleCounts["shift_mismatch"])
}

func TestRun_MissingShiftsFileWritesFallback(t *testing.T) {
	// GIVEN: The shifts file does not exist
	_, opts := writeInputs(t)
	opts.Shifts.Path = filepath.Join(t.TempDir(), "absent.csv")
	store := memory.New()

	// WHEN: The pipeline runs
	res := pipeline.NewRunner(opts, logger.NewNop(), store).Run(context.Background())

	// THEN: The run fails with missing_file and the fallback artifact exists
	assert.Equal(t, pipeline.StatusFailed, res.Status)
	assert.Equal(t, variance.KindMissingFile, res.ErrKind)
	assert.True(t, errors.Is(res.Err, fs.ErrNotExist))
	assert.Equal(t, 0, res.ExitCode(pipeline.AlwaysZero))
	assert.Equal(t, 1, res.ExitCode(pipeline.NonzeroOnFailure))

	tbl := loadReport(t, opts.Output.Path)
	assert.Equal(t, []string{"variance_flag", "notes", "error_kind"}, tbl.Header)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "ERROR", tbl.Rows[0][0])
	assert.Equal(t, "missing_file", tbl.Rows[0][2])

	rec, err := store.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "missing_file", rec.ErrorKind)
}

func TestRun_MissingLeaveFileIsFatal(t *testing.T) {
	_, opts := writeInputs(t)
	opts.Leave.Path = filepath.Join(t.TempDir(), "absent.csv")

	res := pipeline.NewRunner(opts, logger.NewNop(), nil).Run(context.Background())

	assert.Equal(t, variance.KindMissingFile, res.ErrKind)
}

func TestRun_WithoutRosterSkipsRosterRules(t *testing.T) {
	// GIVEN: No roster configured
	_, opts := writeInputs(t)
	opts.Roster = tabular.Source{Name: "roster"}

	res := pipeline.NewRunner(opts, logger.NewNop(), nil).Run(context.Background())

	// THEN: Rules 4 and 5 are skipped, the run still succeeds
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Flagged)
	skipped := map[variance.RuleID]bool{}
	for _, s := range res.Rules.Skipped {
		skipped[s.Rule] = true
	}
	assert.True(t, skipped[variance.RuleShiftMismatch])
	assert.True(t, skipped[variance.RuleNightQuotaExceeded])
	assert.Contains(t, res.Missing, "roster")
}

func TestRun_MissingColumnsDegrade(t *testing.T) {
	// GIVEN: Shift data without the allowance columns
	dir, opts := writeInputs(t)
	path := filepath.Join(dir, "narrow.csv")
	require.NoError(t, os.WriteFile(path, []byte("EmployeeID,Date,ActualShift\nE003,2025-03-01,Day\n"), 0o644))
	opts.Shifts.Path = path

	res := pipeline.NewRunner(opts, logger.NewNop(), nil).Run(context.Background())

	require.NoError(t, res.Err)
	assert.Equal(t, pipeline.StatusSucceeded, res.Status)
	assert.Contains(t, res.Missing["shifts"], variance.FieldAllowanceApproved)
	assert.Equal(t, 1, res.Flagged)
}

func TestRun_UnwritableOutputFails(t *testing.T) {
	// GIVEN: An output format the writer does not support
	_, opts := writeInputs(t)
	opts.Output.Format = "ods"

	res := pipeline.NewRunner(opts, logger.NewNop(), nil).Run(context.Background())

	// THEN: The run fails as unhandled and reports the fallback failure too
	assert.Equal(t, pipeline.StatusFailed, res.Status)
	assert.Equal(t, variance.KindUnhandled, res.ErrKind)
	assert.Contains(t, res.Err.Error(), "fallback report")
}

func TestRun_UsesClock(t *testing.T) {
	_, opts := writeInputs(t)
	fixed := time.Date(2025, 4, 1, 6, 0, 0, 0, time.UTC)
	runner := pipeline.NewRunner(opts, logger.NewNop(), nil)
	runner.Now = func() time.Time { return fixed }

	res := runner.Run(context.Background())

	assert.Equal(t, fixed, res.StartedAt)
	assert.Equal(t, fixed, res.CompletedAt)
	assert.Equal(t, fixed, res.Record().StartedAt)
}

func TestParseFailurePolicy(t *testing.T) {
	p, err := pipeline.ParseFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, pipeline.AlwaysZero, p)

	p, err = pipeline.ParseFailurePolicy("NONZERO_ON_FAILURE")
	require.NoError(t, err)
	assert.Equal(t, pipeline.NonzeroOnFailure, p)

	_, err = pipeline.ParseFailurePolicy("sometimes")
	assert.Error(t, err)
}
