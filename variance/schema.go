/*
schema.go - Column alias resolution

PURPOSE:
  Input files come from different HR systems, so the same column shows up
  as "EmployeeID", "Emp ID", "employee_id" and so on. A Schema is an
  ordered table of canonical field -> accepted aliases. Resolve matches a
  raw header against it. Matching is best effort: missing and extra
  columns are reported, never rejected.

MATCHING:
  Keys are compared after NormalizeKey (lower case, no spaces, underscores
  or hyphens). Fields are resolved in table order; each field takes the
  first raw column (header order) matching any of its aliases that an
  earlier field has not already claimed. The canonical field name itself is
  always an accepted alias.

EXAMPLE:
  m := variance.DefaultShiftSchema.Resolve([]string{"Emp ID", "Shift Date"})
  m.Value(row, variance.FieldDate)   // reads column 1
  m.Missing                          // [employee_name actual_shift ...]
*/
package variance

import "strings"

// FieldAliases lists the raw header spellings accepted for one field.
type FieldAliases struct {
	Field   Field
	Aliases []string
}

// Schema is an ordered alias table. Keep it data.
type Schema []FieldAliases

var DefaultShiftSchema = Schema{
	{Field: FieldEmployeeID, Aliases: []string{"EmployeeID", "Employee ID", "Emp ID", "Employee Code", "Emp Code", "Associate ID"}},
	{Field: FieldEmployeeName, Aliases: []string{"EmployeeName", "Employee Name", "Emp Name", "Name"}},
	{Field: FieldDate, Aliases: []string{"Date", "Shift Date", "Work Date", "Attendance Date"}},
	{Field: FieldActualShift, Aliases: []string{"ActualShift", "Actual Shift", "Shift", "Worked Shift", "Shift Name"}},
	{Field: FieldExceptionApproved, Aliases: []string{"ExceptionApproved", "Exception Approved", "Exception", "Exception Status"}},
	{Field: FieldAllowanceApproved, Aliases: []string{"AllowanceApproved", "Allowance Approved", "Allowance", "Allowance Status"}},
	{Field: FieldAllowanceType, Aliases: []string{"AllowanceType", "Allowance Type", "Allowance Code"}},
}

var DefaultLeaveSchema = Schema{
	{Field: FieldEmployeeID, Aliases: []string{"EmployeeID", "Employee ID", "Emp ID", "Employee Code", "Emp Code", "Associate ID"}},
	{Field: FieldDate, Aliases: []string{"Date", "Leave Date", "Absence Date"}},
	{Field: FieldLeaveStatus, Aliases: []string{"LeaveStatus", "Leave Status", "Leave Type", "Status", "Leave"}},
}

var DefaultRosterSchema = Schema{
	{Field: FieldEmployeeID, Aliases: []string{"EmployeeID", "Employee ID", "Emp ID", "Employee Code", "Emp Code", "Associate ID"}},
	{Field: FieldEmployeeName, Aliases: []string{"EmployeeName", "Employee Name", "Emp Name", "Name"}},
	{Field: FieldDate, Aliases: []string{"Date", "Roster Date", "SOW Date", "Planned Date"}},
	{Field: FieldPlannedShift, Aliases: []string{"PlannedShift", "Planned Shift", "SOW Shift", "Roster Shift", "Shift"}},
	{Field: FieldMaxNightShifts, Aliases: []string{"MaxNightShifts", "Max Night Shifts", "Night Shift Limit", "Max Nights", "Night Cap"}},
}

// NormalizeKey folds a header for comparison.
func NormalizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case ' ', '_', '-', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Fields returns the canonical fields of the schema in order.
func (s Schema) Fields() []Field {
	fields := make([]Field, len(s))
	for i, fa := range s {
		fields[i] = fa.Field
	}
	return fields
}

// WithAliases returns a copy of s that also accepts the extra spellings.
// Which column wins is still decided by header order. Fields absent from s
// are ignored.
func (s Schema) WithAliases(extra map[Field][]string) Schema {
	out := make(Schema, len(s))
	for i, fa := range s {
		aliases := append([]string{}, extra[fa.Field]...)
		aliases = append(aliases, fa.Aliases...)
		out[i] = FieldAliases{Field: fa.Field, Aliases: aliases}
	}
	return out
}

// Mapping is the result of resolving a header against a schema.
type Mapping struct {
	Columns map[Field]int
	Missing []Field
}

func (s Schema) Resolve(header []string) Mapping {
	m := Mapping{Columns: make(map[Field]int, len(s))}
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = NormalizeKey(h)
	}
	claimed := make(map[int]bool, len(header))

	for _, fa := range s {
		accepted := map[string]bool{NormalizeKey(string(fa.Field)): true}
		for _, a := range fa.Aliases {
			accepted[NormalizeKey(a)] = true
		}

		found := -1
		for i, k := range keys {
			if !claimed[i] && k != "" && accepted[k] {
				found = i
				break
			}
		}
		if found < 0 {
			m.Missing = append(m.Missing, fa.Field)
			continue
		}
		claimed[found] = true
		m.Columns[fa.Field] = found
	}
	return m
}

func (m Mapping) Has(f Field) bool {
	_, ok := m.Columns[f]
	return ok
}

// Value reads field f from row, or "" when the column is absent or the row is short.
func (m Mapping) Value(row []string, f Field) string {
	i, ok := m.Columns[f]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// Present returns the resolved fields as a set.
func (m Mapping) Present() FieldSet {
	fs := make(FieldSet, len(m.Columns))
	for f := range m.Columns {
		fs[f] = true
	}
	return fs
}
