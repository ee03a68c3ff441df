package variance

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// =============================================================================
// VALUE COERCION - Canonical vocabulary for categorical fields
// =============================================================================

// DefaultLeaveStatus is used when no leave row matches or the cell is blank.
const DefaultLeaveStatus = "Present"

var nullTexts = map[string]bool{
	"nan":  true,
	"nat":  true,
	"none": true,
	"null": true,
	"n/a":  true,
	"na":   true,
}

func isNullText(s string) bool {
	return nullTexts[strings.ToLower(strings.TrimSpace(s))]
}

// TitleCase trims, collapses inner whitespace and title-cases s, so
// "  night ", "NIGHT" and "Night" all become "Night". Null markers such as
// "nan" become "".
func TitleCase(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" || isNullText(s) {
		return ""
	}
	// Casers carry state; one per call keeps this safe across goroutines.
	return cases.Title(language.Und).String(s)
}

var yesTexts = map[string]bool{
	"yes":      true,
	"y":        true,
	"true":     true,
	"t":        true,
	"1":        true,
	"approved": true,
}

// ParseYesNo maps approval text onto Yes/No. Anything unrecognized is No.
func ParseYesNo(s string) YesNo {
	if yesTexts[strings.ToLower(strings.TrimSpace(s))] {
		return Yes
	}
	return No
}

// LeaveStatus canonicalizes a leave cell, defaulting blanks to Present.
func LeaveStatus(s string) string {
	if status := TitleCase(s); status != "" {
		return status
	}
	return DefaultLeaveStatus
}

// ParseCap reads a night-shift cap. Blank means no cap (ok=true); text that
// is not a number also yields no cap but reports ok=false.
func ParseCap(s string) (*decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || isNullText(s) {
		return nil, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, false
	}
	return &d, true
}
