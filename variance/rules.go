/*
rules.go - Variance policies

PURPOSE:
  Each rule looks at the whole reconciled table and returns the rows it
  flags plus the note for each. Rules never mutate rows; the engine
  attaches the violations.

RULES (evaluated in this order):
  1. allowance_on_time_off        Allowance approved on a time-off day
  2. allowance_without_exception  Allowance approved with no approved exception
  3. excessive_exceptions         Approved exceptions per employee-month above threshold
  4. shift_mismatch               Planned (SOW) shift differs from the actual shift
  5. night_quota_exceeded         Night shifts per employee-month above the SOW cap

MONTHLY RULES:
  Rules 3 and 5 group rows by (employee, year-month) first and then flag
  every row of an offending group, not just the rows past the limit. Rows
  with an unknown date belong to no group.

SEE ALSO:
  - engine.go: Evaluation order, skipping and violation bookkeeping
  - policy.go: Thresholds and vocabularies
*/
package variance

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type RuleID string

const (
	RuleAllowanceOnTimeOff        RuleID = "allowance_on_time_off"
	RuleAllowanceWithoutException RuleID = "allowance_without_exception"
	RuleExcessiveExceptions       RuleID = "excessive_exceptions"
	RuleShiftMismatch             RuleID = "shift_mismatch"
	RuleNightQuotaExceeded        RuleID = "night_quota_exceeded"
)

// Match is one flagged row and the note to attach to it.
type Match struct {
	Index int
	Text  string
}

// Rule is a single variance policy.
type Rule interface {
	ID() RuleID

	// Requires lists the canonical columns the rule reads. The engine skips
	// the rule when any of them is missing from the inputs.
	Requires() []Field

	Evaluate(rows []ReconciledRow, p Policy) []Match
}

// DefaultRules returns the five policies in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		allowanceOnTimeOff{},
		allowanceWithoutException{},
		excessiveExceptions{},
		shiftMismatch{},
		nightQuotaExceeded{},
	}
}

// KnownRule reports whether id names one of the default rules.
func KnownRule(id RuleID) bool {
	for _, r := range DefaultRules() {
		if r.ID() == id {
			return true
		}
	}
	return false
}

// =============================================================================
// ROW RULES
// =============================================================================

type allowanceOnTimeOff struct{}

func (allowanceOnTimeOff) ID() RuleID { return RuleAllowanceOnTimeOff }

func (allowanceOnTimeOff) Requires() []Field {
	return []Field{FieldAllowanceApproved, FieldLeaveStatus}
}

func (allowanceOnTimeOff) Evaluate(rows []ReconciledRow, p Policy) []Match {
	var matches []Match
	for i := range rows {
		if rows[i].AllowanceApproved == Yes && p.IsTimeOff(rows[i].LeaveStatus) {
			matches = append(matches, Match{Index: i, Text: "Allowance on PTO/Holiday/WO"})
		}
	}
	return matches
}

type allowanceWithoutException struct{}

func (allowanceWithoutException) ID() RuleID { return RuleAllowanceWithoutException }

func (allowanceWithoutException) Requires() []Field {
	return []Field{FieldAllowanceApproved}
}

func (allowanceWithoutException) Evaluate(rows []ReconciledRow, _ Policy) []Match {
	var matches []Match
	for i := range rows {
		if rows[i].AllowanceApproved == Yes && rows[i].ExceptionApproved != Yes {
			matches = append(matches, Match{Index: i, Text: "Allowance without approved exception"})
		}
	}
	return matches
}

type shiftMismatch struct{}

func (shiftMismatch) ID() RuleID { return RuleShiftMismatch }

func (shiftMismatch) Requires() []Field {
	return []Field{FieldPlannedShift, FieldActualShift}
}

func (shiftMismatch) Evaluate(rows []ReconciledRow, _ Policy) []Match {
	var matches []Match
	for i := range rows {
		planned := strings.TrimSpace(rows[i].PlannedShift)
		actual := strings.TrimSpace(rows[i].ActualShift)
		if planned == "" || actual == "" || strings.EqualFold(planned, actual) {
			continue
		}
		matches = append(matches, Match{Index: i, Text: "SOW vs Actual shift mismatch"})
	}
	return matches
}

// =============================================================================
// MONTHLY RULES
// =============================================================================

type monthKey struct {
	EmployeeID string
	Month      YearMonth
}

type monthGroup struct {
	Key     monthKey
	Indexes []int
}

// groupByEmployeeMonth buckets row indexes by (employee, year-month) in
// first-seen order. Rows with an unknown date are left out.
func groupByEmployeeMonth(rows []ReconciledRow) []*monthGroup {
	var groups []*monthGroup
	byKey := make(map[monthKey]*monthGroup)
	for i := range rows {
		if rows[i].YearMonth.IsZero() {
			continue
		}
		k := monthKey{EmployeeID: rows[i].EmployeeID, Month: rows[i].YearMonth}
		g, ok := byKey[k]
		if !ok {
			g = &monthGroup{Key: k}
			byKey[k] = g
			groups = append(groups, g)
		}
		g.Indexes = append(g.Indexes, i)
	}
	return groups
}

type excessiveExceptions struct{}

func (excessiveExceptions) ID() RuleID { return RuleExcessiveExceptions }

func (excessiveExceptions) Requires() []Field {
	return []Field{FieldDate, FieldExceptionApproved}
}

func (excessiveExceptions) Evaluate(rows []ReconciledRow, p Policy) []Match {
	note := fmt.Sprintf("Excessive exceptions (> %d/month)", p.ExcessExceptionsPerMonth)
	var matches []Match
	for _, g := range groupByEmployeeMonth(rows) {
		count := 0
		for _, i := range g.Indexes {
			if rows[i].ExceptionApproved == Yes {
				count++
			}
		}
		if count <= p.ExcessExceptionsPerMonth {
			continue
		}
		for _, i := range g.Indexes {
			matches = append(matches, Match{Index: i, Text: note})
		}
	}
	return matches
}

type nightQuotaExceeded struct{}

func (nightQuotaExceeded) ID() RuleID { return RuleNightQuotaExceeded }

func (nightQuotaExceeded) Requires() []Field {
	return []Field{FieldDate, FieldActualShift, FieldMaxNightShifts}
}

func (nightQuotaExceeded) Evaluate(rows []ReconciledRow, p Policy) []Match {
	var matches []Match
	for _, g := range groupByEmployeeMonth(rows) {
		var limit *decimal.Decimal
		nights := 0
		for _, i := range g.Indexes {
			for _, c := range []*decimal.Decimal{rows[i].MonthNightCap, rows[i].MaxNightShifts} {
				if c != nil && (limit == nil || c.GreaterThan(*limit)) {
					limit = c
				}
			}
			if p.IsNightShift(rows[i].ActualShift) {
				nights++
			}
		}
		if limit == nil || !decimal.NewFromInt(int64(nights)).GreaterThan(*limit) {
			continue
		}
		note := fmt.Sprintf("Night shifts exceeded SOW limit (%s) in %s", limit.String(), g.Key.Month)
		for _, i := range g.Indexes {
			matches = append(matches, Match{Index: i, Text: note})
		}
	}
	return matches
}
