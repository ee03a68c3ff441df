package variance

import "strings"

// =============================================================================
// DECODER - Table -> typed records (normalize, parse dates, coerce)
// =============================================================================

// Decoder holds the per-source schemas and the date parser for one run.
type Decoder struct {
	Shifts Schema
	Leave  Schema
	Roster Schema
	Dates  DateParser
}

func NewDecoder() *Decoder {
	return &Decoder{
		Shifts: DefaultShiftSchema,
		Leave:  DefaultLeaveSchema,
		Roster: DefaultRosterSchema,
	}
}

// DecodeStats counts rows and per-field degradations for one source.
type DecodeStats struct {
	Rows            int
	BlankRows       int
	UnparsedDates   int
	UnparsedNumbers int
}

type ShiftSet struct {
	Records []ShiftRecord
	Mapping Mapping
	Stats   DecodeStats
}

type LeaveSet struct {
	Records []LeaveRecord
	Mapping Mapping
	Stats   DecodeStats
}

type RosterSet struct {
	Records []RosterRecord
	Mapping Mapping
	Stats   DecodeStats
}

func (d *Decoder) DecodeShifts(t Table) ShiftSet {
	set := ShiftSet{Mapping: d.Shifts.Resolve(t.Header)}
	m := set.Mapping
	for i, row := range t.Rows {
		if isBlankRow(row) {
			set.Stats.BlankRows++
			continue
		}
		rec := ShiftRecord{
			EmployeeID:        strings.TrimSpace(m.Value(row, FieldEmployeeID)),
			EmployeeName:      strings.TrimSpace(m.Value(row, FieldEmployeeName)),
			Date:              d.parseDate(m.Value(row, FieldDate), &set.Stats),
			ActualShift:       TitleCase(m.Value(row, FieldActualShift)),
			ExceptionApproved: ParseYesNo(m.Value(row, FieldExceptionApproved)),
			AllowanceApproved: ParseYesNo(m.Value(row, FieldAllowanceApproved)),
			AllowanceType:     TitleCase(m.Value(row, FieldAllowanceType)),
			Line:              i + 2,
		}
		set.Records = append(set.Records, rec)
	}
	set.Stats.Rows = len(set.Records)
	return set
}

func (d *Decoder) DecodeLeave(t Table) LeaveSet {
	set := LeaveSet{Mapping: d.Leave.Resolve(t.Header)}
	m := set.Mapping
	for i, row := range t.Rows {
		if isBlankRow(row) {
			set.Stats.BlankRows++
			continue
		}
		set.Records = append(set.Records, LeaveRecord{
			EmployeeID:  strings.TrimSpace(m.Value(row, FieldEmployeeID)),
			Date:        d.parseDate(m.Value(row, FieldDate), &set.Stats),
			LeaveStatus: LeaveStatus(m.Value(row, FieldLeaveStatus)),
			Line:        i + 2,
		})
	}
	set.Stats.Rows = len(set.Records)
	return set
}

func (d *Decoder) DecodeRoster(t Table) RosterSet {
	set := RosterSet{Mapping: d.Roster.Resolve(t.Header)}
	m := set.Mapping
	for i, row := range t.Rows {
		if isBlankRow(row) {
			set.Stats.BlankRows++
			continue
		}
		maxNights, ok := ParseCap(m.Value(row, FieldMaxNightShifts))
		if !ok {
			set.Stats.UnparsedNumbers++
		}
		set.Records = append(set.Records, RosterRecord{
			EmployeeID:     strings.TrimSpace(m.Value(row, FieldEmployeeID)),
			EmployeeName:   strings.TrimSpace(m.Value(row, FieldEmployeeName)),
			Date:           d.parseDate(m.Value(row, FieldDate), &set.Stats),
			PlannedShift:   TitleCase(m.Value(row, FieldPlannedShift)),
			MaxNightShifts: maxNights,
			Line:           i + 2,
		})
	}
	set.Stats.Rows = len(set.Records)
	return set
}

func (d *Decoder) parseDate(s string, stats *DecodeStats) Date {
	date := d.Dates.Parse(s)
	if !date.Known && strings.TrimSpace(s) != "" && !isNullText(s) {
		stats.UnparsedDates++
	}
	return date
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
