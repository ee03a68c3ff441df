/*
Package report writes the variance report artifact.

PURPOSE:
  Serializes reconciled rows with their derived flag and notes to CSV or
  XLSX, and writes the single-row fallback artifact when a run fails.
  Downstream reviewers open this file in a spreadsheet, so column order is
  fixed.

COLUMNS:
  employee_id, employee_name, date, planned_shift, actual_shift,
  exception_approved, allowance_approved, allowance_type, leave_status,
  variance_flag, notes
  + year_month        when the shift data carried a date column
  + max_night_shifts  when the roster carried a night cap column

SEE ALSO:
  - tabular/tabular.go: The loading side
  - pipeline/pipeline.go: Decides between Write and WriteFallback
*/
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/warp/shift-variance/tabular"
	"github.com/warp/shift-variance/variance"
)

// BaseColumns is the fixed leading column order.
var BaseColumns = []string{
	"employee_id",
	"employee_name",
	"date",
	"planned_shift",
	"actual_shift",
	"exception_approved",
	"allowance_approved",
	"allowance_type",
	"leave_status",
	"variance_flag",
	"notes",
}

const (
	ColumnYearMonth      = "year_month"
	ColumnMaxNightShifts = "max_night_shifts"
	ColumnErrorKind      = "error_kind"
)

const sheetName = "Variance"

// Writer writes one report file.
type Writer struct {
	Path   string
	Format tabular.Format
}

// Columns returns the header for rc.
func Columns(rc *variance.Reconciled) []string {
	cols := append([]string{}, BaseColumns...)
	if rc.Columns.Has(variance.FieldDate) {
		cols = append(cols, ColumnYearMonth)
	}
	if rc.Columns.Has(variance.FieldMaxNightShifts) {
		cols = append(cols, ColumnMaxNightShifts)
	}
	return cols
}

// Records renders every row of rc as text in Columns(rc) order.
func Records(rc *variance.Reconciled) [][]string {
	withMonth := rc.Columns.Has(variance.FieldDate)
	withCap := rc.Columns.Has(variance.FieldMaxNightShifts)

	out := make([][]string, 0, len(rc.Rows))
	for i := range rc.Rows {
		r := &rc.Rows[i]
		rec := []string{
			r.EmployeeID,
			r.EmployeeName,
			r.Date.String(),
			r.PlannedShift,
			r.ActualShift,
			string(r.ExceptionApproved),
			string(r.AllowanceApproved),
			r.AllowanceType,
			r.LeaveStatus,
			string(r.Flag()),
			r.Notes(),
		}
		if withMonth {
			rec = append(rec, r.YearMonth.String())
		}
		if withCap {
			capText := ""
			if r.MaxNightShifts != nil {
				capText = r.MaxNightShifts.String()
			}
			rec = append(rec, capText)
		}
		out = append(out, rec)
	}
	return out
}

// Write serializes rc to w.Path.
func (w Writer) Write(ctx context.Context, rc *variance.Reconciled) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return w.write(Columns(rc), Records(rc))
}

// WriteFallback writes the single-row error artifact.
func (w Writer) WriteFallback(ctx context.Context, kind variance.ErrorKind, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	header := []string{"variance_flag", "notes", ColumnErrorKind}
	row := []string{string(variance.FlagError), message, string(kind)}
	return w.write(header, [][]string{row})
}

func (w Writer) write(header []string, rows [][]string) error {
	if w.Path == "" {
		return fmt.Errorf("report: output path is empty")
	}
	if dir := filepath.Dir(w.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: create output directory: %w", err)
		}
	}

	switch w.Format {
	case tabular.FormatCSV, "":
		return writeCSV(w.Path, header, rows)
	case tabular.FormatXLSX:
		return writeXLSX(w.Path, header, rows)
	}
	return fmt.Errorf("%w: %q", variance.ErrUnsupportedFormat, w.Format)
}

func writeCSV(path string, header []string, rows [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}

func writeXLSX(path string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	if err := setRow(f, 1, header); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}
	return nil
}

func setRow(f *excelize.File, rowNo int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return f.SetSheetRow(sheetName, cell, &row)
}
