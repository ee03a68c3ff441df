package variance

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
)

// =============================================================================
// DATE - Calendar day with an explicit "unknown" state
// =============================================================================

// Date is a calendar day in UTC. The zero value is the unknown date: it
// never equals another date and never lands in a year-month bucket.
type Date struct {
	Time  time.Time
	Known bool
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Known: true}
}

func (d Date) Equal(other Date) bool {
	return d.Known && other.Known && d.Time.Equal(other.Time)
}

// String returns YYYY-MM-DD, or "" for the unknown date.
func (d Date) String() string {
	if !d.Known {
		return ""
	}
	return d.Time.Format("2006-01-02")
}

func (d Date) YearMonth() YearMonth {
	if !d.Known {
		return YearMonth{}
	}
	return YearMonth{Year: d.Time.Year(), Month: d.Time.Month()}
}

// =============================================================================
// YEAR-MONTH - Aggregation bucket for monthly rules
// =============================================================================

type YearMonth struct {
	Year  int
	Month time.Month
}

func (ym YearMonth) IsZero() bool { return ym.Year == 0 && ym.Month == 0 }

func (ym YearMonth) String() string {
	if ym.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// =============================================================================
// DATE PARSER
// =============================================================================

// DateParser turns free-form date text into a Date. It never fails: text it
// cannot read becomes the unknown date.
type DateParser struct {
	// DayFirst reads ambiguous numeric dates like 03/04/2025 as 3 April.
	DayFirst bool
}

var dayFirstLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"02/01/06",
}

func (p DateParser) Parse(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" || isNullText(s) {
		return Date{}
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return dayOf(t)
	}
	if p.DayFirst {
		for _, layout := range dayFirstLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return dayOf(t)
			}
		}
	}
	if !hasDayComponent(s) {
		return Date{}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil || t.Year() < 1 {
		return Date{}
	}
	return dayOf(t)
}

// hasDayComponent rejects fragments like "1/", "2025-" or "2025-03" that
// dateparse would complete with a zero year or a default day. A full date
// has three numeric groups, two plus a month name, or one compact group
// like 20250310.
func hasDayComponent(s string) bool {
	groups, longest, run := 0, 0, 0
	letters := false
	for _, r := range s + " " {
		if unicode.IsDigit(r) {
			run++
			continue
		}
		if unicode.IsLetter(r) {
			letters = true
		}
		if run > 0 {
			groups++
			longest = max(longest, run)
		}
		run = 0
	}
	return groups >= 3 || (groups == 2 && letters) || longest >= 8
}

func dayOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}
