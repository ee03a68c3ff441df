/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON type
*/
package api

import (
	"time"

	"github.com/warp/shift-variance/factory"
	"github.com/warp/shift-variance/pipeline"
	"github.com/warp/shift-variance/variance"
)

// TriggerRunRequest is the optional body of POST /api/runs. A policy here
// replaces the configured one for this run only.
type TriggerRunRequest struct {
	Policy *factory.PolicyJSON `json:"policy,omitempty"`
}

// RunDTO represents a run in API responses.
type RunDTO struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	OutputPath  string         `json:"output_path"`
	ShiftRows   int            `json:"shift_rows"`
	FlaggedRows int            `json:"flagged_rows"`
	RuleCounts  map[string]int `json:"rule_counts"`
	ErrorKind   string         `json:"error_kind,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   string         `json:"started_at"`
	CompletedAt string         `json:"completed_at,omitempty"`

	// Only set on the response to POST /api/runs.
	SkippedRules   []SkippedRuleDTO    `json:"skipped_rules,omitempty"`
	MissingColumns map[string][]string `json:"missing_columns,omitempty"`
	Join           *variance.JoinStats `json:"join,omitempty"`
}

type SkippedRuleDTO struct {
	Rule    string   `json:"rule"`
	Missing []string `json:"missing,omitempty"`
	Reason  string   `json:"reason"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func toRunDTO(r pipeline.RunRecord) RunDTO {
	dto := RunDTO{
		ID:          r.ID,
		Status:      string(r.Status),
		OutputPath:  r.OutputPath,
		ShiftRows:   r.ShiftRows,
		FlaggedRows: r.FlaggedRows,
		RuleCounts:  r.RuleCounts,
		ErrorKind:   r.ErrorKind,
		Error:       r.Error,
		StartedAt:   r.StartedAt.Format(time.RFC3339),
	}
	if dto.RuleCounts == nil {
		dto.RuleCounts = map[string]int{}
	}
	if !r.CompletedAt.IsZero() {
		dto.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

func toResultDTO(res pipeline.Result) RunDTO {
	dto := toRunDTO(res.Record())
	for _, s := range res.Rules.Skipped {
		sd := SkippedRuleDTO{Rule: string(s.Rule), Reason: s.Reason}
		for _, f := range s.Missing {
			sd.Missing = append(sd.Missing, string(f))
		}
		dto.SkippedRules = append(dto.SkippedRules, sd)
	}
	if len(res.Missing) > 0 {
		dto.MissingColumns = make(map[string][]string, len(res.Missing))
		for source, fields := range res.Missing {
			for _, f := range fields {
				dto.MissingColumns[source] = append(dto.MissingColumns[source], string(f))
			}
		}
	}
	if res.Status == pipeline.StatusSucceeded {
		join := res.Join
		dto.Join = &join
	}
	return dto
}
