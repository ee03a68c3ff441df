/*
reconcile.go - Left outer join of shifts with leave and roster

PURPOSE:
  Produces exactly one ReconciledRow per ShiftRecord, in input order,
  enriched with the leave status and the planned roster entry that share
  its (employee id, date) key.

JOIN RULES:
  - Keys need a non-empty employee id and a known date. Rows without one
    never match and keep the defaults.
  - Duplicate keys in leave or roster: first seen wins. Later rows for the
    same key are ignored and counted, so the join never fans out.
  - Defaults for unmatched rows: LeaveStatus "Present", empty planned
    shift, no night cap.
  - Employee name falls back to the roster name when the shift row has none.
  - MonthNightCap is the largest cap over every roster row of the employee
    and month, matched to a shift row or not. Duplicate keys do not count.

SEE ALSO:
  - engine.go: Consumes the Reconciled table
*/
package variance

import (
	"time"

	"github.com/shopspring/decimal"
)

type joinKey struct {
	EmployeeID string
	Day        time.Time
}

func keyOf(employeeID string, d Date) (joinKey, bool) {
	if employeeID == "" || !d.Known {
		return joinKey{}, false
	}
	return joinKey{EmployeeID: employeeID, Day: d.Time}, true
}

// JoinStats summarizes join coverage for logging and the run history.
type JoinStats struct {
	ShiftRows           int `json:"shift_rows"`
	LeaveMatches        int `json:"leave_matches"`
	RosterMatches       int `json:"roster_matches"`
	DuplicateLeaveKeys  int `json:"duplicate_leave_keys"`
	DuplicateRosterKeys int `json:"duplicate_roster_keys"`
	UnknownDates        int `json:"unknown_dates"`
	UnparsedDates       int `json:"unparsed_dates"`
	UnparsedNumbers     int `json:"unparsed_numbers"`
}

// Reconcile joins the three decoded sources.
func Reconcile(shifts ShiftSet, leave LeaveSet, roster RosterSet) *Reconciled {
	stats := JoinStats{
		ShiftRows:       len(shifts.Records),
		UnparsedDates:   shifts.Stats.UnparsedDates + leave.Stats.UnparsedDates + roster.Stats.UnparsedDates,
		UnparsedNumbers: roster.Stats.UnparsedNumbers,
	}

	leaveByKey := make(map[joinKey]*LeaveRecord, len(leave.Records))
	for i := range leave.Records {
		rec := &leave.Records[i]
		k, ok := keyOf(rec.EmployeeID, rec.Date)
		if !ok {
			continue
		}
		if _, dup := leaveByKey[k]; dup {
			stats.DuplicateLeaveKeys++
			continue
		}
		leaveByKey[k] = rec
	}

	rosterByKey := make(map[joinKey]*RosterRecord, len(roster.Records))
	monthCaps := make(map[monthKey]*decimal.Decimal)
	for i := range roster.Records {
		rec := &roster.Records[i]
		k, ok := keyOf(rec.EmployeeID, rec.Date)
		if !ok {
			continue
		}
		if _, dup := rosterByKey[k]; dup {
			stats.DuplicateRosterKeys++
			continue
		}
		rosterByKey[k] = rec

		if c := rec.MaxNightShifts; c != nil {
			mk := monthKey{EmployeeID: rec.EmployeeID, Month: rec.Date.YearMonth()}
			if cur := monthCaps[mk]; cur == nil || c.GreaterThan(*cur) {
				monthCaps[mk] = c
			}
		}
	}

	rows := make([]ReconciledRow, len(shifts.Records))
	for i, s := range shifts.Records {
		row := ReconciledRow{
			ShiftRecord: s,
			LeaveStatus: DefaultLeaveStatus,
			YearMonth:   s.Date.YearMonth(),
		}
		if !s.Date.Known {
			stats.UnknownDates++
		} else {
			row.MonthNightCap = monthCaps[monthKey{EmployeeID: s.EmployeeID, Month: row.YearMonth}]
		}

		if k, ok := keyOf(s.EmployeeID, s.Date); ok {
			if l, found := leaveByKey[k]; found {
				row.LeaveStatus = l.LeaveStatus
				stats.LeaveMatches++
			}
			if r, found := rosterByKey[k]; found {
				row.PlannedShift = r.PlannedShift
				row.MaxNightShifts = r.MaxNightShifts
				if row.EmployeeName == "" {
					row.EmployeeName = r.EmployeeName
				}
				stats.RosterMatches++
			}
		}
		rows[i] = row
	}

	return &Reconciled{
		Rows:    rows,
		Columns: joinedColumns(shifts.Mapping, roster.Mapping),
		Stats:   stats,
	}
}

// joinedColumns is the union of the canonical columns the sources carried.
// leave_status is always present because unmatched rows get a default.
func joinedColumns(shifts, roster Mapping) FieldSet {
	cols := shifts.Present()
	cols[FieldLeaveStatus] = true
	for _, f := range []Field{FieldPlannedShift, FieldMaxNightShifts} {
		if roster.Has(f) {
			cols[f] = true
		}
	}
	if !cols.Has(FieldEmployeeName) && roster.Has(FieldEmployeeName) {
		cols[FieldEmployeeName] = true
	}
	return cols
}
