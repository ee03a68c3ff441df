package variance

import "strings"

// =============================================================================
// POLICY - Thresholds and vocabularies the rules read
// =============================================================================

// Policy is passed explicitly into the engine so several configurations can
// run side by side in one process.
type Policy struct {
	// ExcessExceptionsPerMonth is the largest allowed number of approved
	// exceptions per employee per month. One more flags the whole month.
	ExcessExceptionsPerMonth int

	// TimeOffStatuses are the canonical leave statuses that count as time off
	// for the allowance-on-time-off rule.
	TimeOffStatuses []string

	// NightShiftLabel is the canonical actual-shift label counted toward the
	// night quota.
	NightShiftLabel string

	// Disabled turns individual rules off. Order is never configurable.
	Disabled map[RuleID]bool
}

const (
	DefaultExcessExceptionsPerMonth = 8
	DefaultNightShiftLabel          = "Night"
)

// DefaultTimeOffStatuses covers every status the time-off rule has used.
var DefaultTimeOffStatuses = []string{"Pto", "Holiday", "Wo", "Weeklyoff"}

func DefaultPolicy() Policy {
	return Policy{
		ExcessExceptionsPerMonth: DefaultExcessExceptionsPerMonth,
		TimeOffStatuses:          append([]string{}, DefaultTimeOffStatuses...),
		NightShiftLabel:          DefaultNightShiftLabel,
	}
}

// IsTimeOff compares on NormalizeKey, so "Weekly Off" and "Weeklyoff" match.
func (p Policy) IsTimeOff(status string) bool {
	key := NormalizeKey(status)
	for _, s := range p.TimeOffStatuses {
		if NormalizeKey(s) == key {
			return true
		}
	}
	return false
}

func (p Policy) IsNightShift(shift string) bool {
	label := p.NightShiftLabel
	if label == "" {
		label = DefaultNightShiftLabel
	}
	return strings.EqualFold(strings.TrimSpace(shift), label)
}

func (p Policy) Enabled(id RuleID) bool { return !p.Disabled[id] }
