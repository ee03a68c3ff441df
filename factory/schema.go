package factory

import (
	"fmt"

	"github.com/warp/shift-variance/variance"
)

// =============================================================================
// DECODER FACTORY - Alias overrides from configuration
// =============================================================================

// NewDecoder builds a decoder whose schemas try the configured aliases
// before the built-in ones. Keys of aliases are canonical field names; an
// alias for a field applies to every source that carries that field.
func NewDecoder(aliases map[string][]string, dayFirst bool) (*variance.Decoder, error) {
	extra := make(map[variance.Field][]string, len(aliases))
	for name, list := range aliases {
		field := variance.Field(name)
		if !variance.KnownField(field) {
			return nil, fmt.Errorf("%w: %q", variance.ErrUnknownField, name)
		}
		extra[field] = list
	}

	d := variance.NewDecoder()
	d.Shifts = d.Shifts.WithAliases(extra)
	d.Leave = d.Leave.WithAliases(extra)
	d.Roster = d.Roster.WithAliases(extra)
	d.Dates = variance.DateParser{DayFirst: dayFirst}
	return d, nil
}
