/*
Package factory provides JSON/YAML to Go policy conversion.

PURPOSE:
  Converts declarative policy documents into a variance.Policy and a
  variance.Decoder. Compliance teams tune thresholds, time-off vocabularies
  and column aliases in the config file, and the factory turns them into
  validated engine inputs.

JSON SCHEMA:
  {
    "excess_exceptions_per_month": 8,
    "time_off_statuses": ["PTO", "Holiday", "WO", "Weekly Off"],
    "night_shift_label": "Night",
    "disabled_rules": ["shift_mismatch"]
  }

KEY FEATURES:
  - Missing fields fall back to variance.DefaultPolicy()
  - Time-off statuses and the night label are canonicalized exactly like
    input cells, so "PTO" in config matches "pto" in data
  - Unknown rule IDs and negative thresholds are rejected

USAGE:
  pf := factory.NewPolicyFactory()
  policy, err := pf.ParsePolicy(`{"excess_exceptions_per_month": 10}`)

SEE ALSO:
  - variance/policy.go: Policy type definition
  - config/config.go: Embeds PolicyJSON in the YAML config
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/warp/shift-variance/variance"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON/YAML representation of a policy.
type PolicyJSON struct {
	ExcessExceptionsPerMonth *int     `json:"excess_exceptions_per_month,omitempty" yaml:"excess_exceptions_per_month,omitempty"`
	TimeOffStatuses          []string `json:"time_off_statuses,omitempty" yaml:"time_off_statuses,omitempty"`
	NightShiftLabel          string   `json:"night_shift_label,omitempty" yaml:"night_shift_label,omitempty"`
	DisabledRules            []string `json:"disabled_rules,omitempty" yaml:"disabled_rules,omitempty"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts policy documents to variance.Policy values.
type PolicyFactory struct{}

func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses a JSON policy document.
func (pf *PolicyFactory) ParsePolicy(jsonStr string) (variance.Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return variance.Policy{}, fmt.Errorf("invalid policy JSON: %w", err)
	}
	return pf.FromJSON(pj)
}

// FromJSON validates pj and fills defaults.
func (pf *PolicyFactory) FromJSON(pj PolicyJSON) (variance.Policy, error) {
	policy := variance.DefaultPolicy()

	if pj.ExcessExceptionsPerMonth != nil {
		if *pj.ExcessExceptionsPerMonth < 0 {
			return variance.Policy{}, fmt.Errorf("excess_exceptions_per_month must be >= 0, got %d", *pj.ExcessExceptionsPerMonth)
		}
		policy.ExcessExceptionsPerMonth = *pj.ExcessExceptionsPerMonth
	}

	if len(pj.TimeOffStatuses) > 0 {
		policy.TimeOffStatuses = policy.TimeOffStatuses[:0]
		seen := make(map[string]bool)
		for _, s := range pj.TimeOffStatuses {
			status := canonicalStatus(s)
			if status == "" || seen[status] {
				continue
			}
			seen[status] = true
			policy.TimeOffStatuses = append(policy.TimeOffStatuses, status)
		}
	}

	if pj.NightShiftLabel != "" {
		policy.NightShiftLabel = variance.TitleCase(pj.NightShiftLabel)
	}

	for _, id := range pj.DisabledRules {
		rule := variance.RuleID(id)
		if !variance.KnownRule(rule) {
			return variance.Policy{}, fmt.Errorf("%w: %q", variance.ErrUnknownRule, id)
		}
		if policy.Disabled == nil {
			policy.Disabled = make(map[variance.RuleID]bool)
		}
		policy.Disabled[rule] = true
	}

	return policy, nil
}

// ToJSON renders a policy back into its document form.
func ToJSON(p variance.Policy) PolicyJSON {
	threshold := p.ExcessExceptionsPerMonth
	pj := PolicyJSON{
		ExcessExceptionsPerMonth: &threshold,
		TimeOffStatuses:          append([]string{}, p.TimeOffStatuses...),
		NightShiftLabel:          p.NightShiftLabel,
	}
	for id, off := range p.Disabled {
		if off {
			pj.DisabledRules = append(pj.DisabledRules, string(id))
		}
	}
	sort.Strings(pj.DisabledRules)
	return pj
}

// canonicalStatus maps a configured status onto the coerced data vocabulary.
func canonicalStatus(s string) string {
	return variance.TitleCase(s)
}
