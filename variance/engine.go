package variance

import (
	"fmt"
	"sort"
)

// =============================================================================
// ENGINE - Ordered, additive rule evaluation
// =============================================================================

// Engine applies rules in slice order. Rules only ever add violations, so a
// later rule can never clear an earlier flag.
type Engine struct {
	Rules  []Rule
	Policy Policy
}

func NewEngine(p Policy) *Engine {
	return &Engine{Rules: DefaultRules(), Policy: p}
}

// SkippedRule records a rule the engine did not apply and why.
type SkippedRule struct {
	Rule    RuleID
	Missing []Field
	Reason  string
}

// EngineReport summarizes one Apply call.
type EngineReport struct {
	Applied []RuleID
	Skipped []SkippedRule
	Counts  map[RuleID]int // rows matched per applied rule
	Flagged int
}

// Apply evaluates every rule against rc and attaches violations to the
// matched rows. A rule that cannot be evaluated is skipped; it never stops
// the remaining rules.
func (e *Engine) Apply(rc *Reconciled) EngineReport {
	report := EngineReport{Counts: make(map[RuleID]int, len(e.Rules))}

	for _, rule := range e.Rules {
		id := rule.ID()
		if !e.Policy.Enabled(id) {
			report.Skipped = append(report.Skipped, SkippedRule{Rule: id, Reason: "disabled by policy"})
			continue
		}
		if missing := rc.Columns.Missing(rule.Requires()); len(missing) > 0 {
			report.Skipped = append(report.Skipped, SkippedRule{
				Rule:    id,
				Missing: missing,
				Reason:  fmt.Sprintf("%v: missing columns %v", ErrSchemaMismatch, missing),
			})
			continue
		}

		matches, err := e.evaluate(rule, rc.Rows)
		if err != nil {
			report.Skipped = append(report.Skipped, SkippedRule{Rule: id, Reason: err.Error()})
			continue
		}

		sort.SliceStable(matches, func(i, j int) bool { return matches[i].Index < matches[j].Index })
		for _, m := range matches {
			if m.Index < 0 || m.Index >= len(rc.Rows) {
				continue
			}
			row := &rc.Rows[m.Index]
			if row.HasViolation(id) {
				continue
			}
			row.Violations = append(row.Violations, Violation{Rule: id, Text: m.Text})
			report.Counts[id]++
		}
		report.Applied = append(report.Applied, id)
	}

	report.Flagged = rc.Flagged()
	return report
}

func (e *Engine) evaluate(rule Rule, rows []ReconciledRow) (matches []Match, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: rule %s: %v", ErrUnhandled, rule.ID(), r)
		}
	}()
	return rule.Evaluate(rows, e.Policy), nil
}
