/*
Package variance provides the shift-variance reconciliation engine.

PURPOSE:
  Reconciles actual worked shifts, leave records and the planned roster
  (SOW) for each employee and day, then evaluates attendance and allowance
  policies against the joined rows. Everything here is pure, in-memory and
  single-pass: file I/O lives in the tabular and report packages.

KEY CONCEPTS IN THIS FILE (types.go):
  - Table: Untyped rows of text as produced by a loader
  - Field/FieldSet: Canonical column names and which ones an input provided
  - ShiftRecord, LeaveRecord, RosterRecord: Decoded, canonicalized inputs
  - ReconciledRow: One joined row per actual-shift record
  - Violation: A structured policy breach attached to a row

PIPELINE:
  Table -> Schema.Resolve -> DateParser -> coercion -> Reconcile -> Engine.Apply

FLAG / NOTES INVARIANT:
  A row never stores its flag or its notes. Both are derived from the
  Violations slice, so "Flagged iff notes non-empty" cannot be broken.

SEE ALSO:
  - schema.go: Column alias resolution
  - reconcile.go: The (employee, date) join
  - rules.go: The five variance policies
  - engine.go: Ordered rule evaluation
*/
package variance

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TABLE - Untyped loader output
// =============================================================================

// Table is a header row plus text rows. Rows may be shorter or longer than
// the header; lookups past the end of a row read as empty.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// =============================================================================
// FIELDS - Canonical column vocabulary
// =============================================================================

type Field string

const (
	FieldEmployeeID        Field = "employee_id"
	FieldEmployeeName      Field = "employee_name"
	FieldDate              Field = "date"
	FieldActualShift       Field = "actual_shift"
	FieldExceptionApproved Field = "exception_approved"
	FieldAllowanceApproved Field = "allowance_approved"
	FieldAllowanceType     Field = "allowance_type"
	FieldLeaveStatus       Field = "leave_status"
	FieldPlannedShift      Field = "planned_shift"
	FieldMaxNightShifts    Field = "max_night_shifts"
)

var knownFields = map[Field]bool{
	FieldEmployeeID:        true,
	FieldEmployeeName:      true,
	FieldDate:              true,
	FieldActualShift:       true,
	FieldExceptionApproved: true,
	FieldAllowanceApproved: true,
	FieldAllowanceType:     true,
	FieldLeaveStatus:       true,
	FieldPlannedShift:      true,
	FieldMaxNightShifts:    true,
}

// KnownField reports whether f is one of the canonical fields.
func KnownField(f Field) bool { return knownFields[f] }

// FieldSet records which canonical columns an input actually carried.
type FieldSet map[Field]bool

func (fs FieldSet) Has(f Field) bool { return fs[f] }

// Missing returns the fields of want that are not in the set, in order.
func (fs FieldSet) Missing(want []Field) []Field {
	var missing []Field
	for _, f := range want {
		if !fs[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

// =============================================================================
// INPUT RECORDS
// =============================================================================

// YesNo is the canonical approval vocabulary.
type YesNo string

const (
	Yes YesNo = "Yes"
	No  YesNo = "No"
)

// ShiftRecord is one actual worked (or scheduled-off) day for an employee.
type ShiftRecord struct {
	EmployeeID        string
	EmployeeName      string
	Date              Date
	ActualShift       string
	ExceptionApproved YesNo
	AllowanceApproved YesNo
	AllowanceType     string
	Line              int // source line, header is line 1
}

// LeaveRecord is a leave entry for an employee on a day.
type LeaveRecord struct {
	EmployeeID  string
	Date        Date
	LeaveStatus string
	Line        int
}

// RosterRecord is the planned (SOW) shift for an employee on a day.
type RosterRecord struct {
	EmployeeID     string
	EmployeeName   string
	Date           Date
	PlannedShift   string
	MaxNightShifts *decimal.Decimal // nil = no cap enforced
	Line           int
}

// =============================================================================
// RECONCILED ROW
// =============================================================================

type VarianceFlag string

const (
	FlagOK      VarianceFlag = "OK"
	FlagFlagged VarianceFlag = "Flagged"
	FlagError   VarianceFlag = "ERROR"
)

// NoteSeparator terminates every note fragment in the display string.
const NoteSeparator = "; "

// Violation is one policy breach on a row.
type Violation struct {
	Rule RuleID
	Text string
}

// ReconciledRow is the join of a ShiftRecord with its leave and roster
// entries. Only the rule engine appends to Violations.
type ReconciledRow struct {
	ShiftRecord

	LeaveStatus    string
	PlannedShift   string
	MaxNightShifts *decimal.Decimal
	YearMonth      YearMonth

	// MonthNightCap is the largest roster cap for this employee and month,
	// including roster days that have no shift row.
	MonthNightCap *decimal.Decimal

	Violations []Violation
}

func (r *ReconciledRow) Flag() VarianceFlag {
	if len(r.Violations) > 0 {
		return FlagFlagged
	}
	return FlagOK
}

// Notes joins the violation texts in evaluation order, each terminated by
// NoteSeparator. An unflagged row has empty notes.
func (r *ReconciledRow) Notes() string {
	var b strings.Builder
	for _, v := range r.Violations {
		b.WriteString(v.Text)
		b.WriteString(NoteSeparator)
	}
	return b.String()
}

func (r *ReconciledRow) HasViolation(id RuleID) bool {
	for _, v := range r.Violations {
		if v.Rule == id {
			return true
		}
	}
	return false
}

// Reconciled is the full joined table handed to the rule engine.
type Reconciled struct {
	Rows    []ReconciledRow
	Columns FieldSet
	Stats   JoinStats
}

// Flagged counts rows with at least one violation.
func (rc *Reconciled) Flagged() int {
	n := 0
	for i := range rc.Rows {
		if len(rc.Rows[i].Violations) > 0 {
			n++
		}
	}
	return n
}
