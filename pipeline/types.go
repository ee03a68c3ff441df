package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// RUN STATUS AND FAILURE POLICY
// =============================================================================

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// FailurePolicy decides the process exit code of a failed run.
type FailurePolicy string

const (
	// AlwaysZero exits 0 even when the run failed; the fallback report and
	// the log carry the failure.
	AlwaysZero       FailurePolicy = "always_zero"
	NonzeroOnFailure FailurePolicy = "nonzero_on_failure"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", AlwaysZero:
		return AlwaysZero, nil
	case NonzeroOnFailure:
		return NonzeroOnFailure, nil
	}
	return "", fmt.Errorf("unknown failure policy %q", s)
}

// =============================================================================
// RUN HISTORY
// =============================================================================

var ErrRunNotFound = errors.New("run not found")

// RunRecord is the audit entry for one pipeline run. Only metadata is kept,
// never input or output rows.
type RunRecord struct {
	ID          string         `json:"id"`
	Status      Status         `json:"status"`
	ErrorKind   string         `json:"error_kind,omitempty"`
	Error       string         `json:"error,omitempty"`
	ShiftRows   int            `json:"shift_rows"`
	FlaggedRows int            `json:"flagged_rows"`
	OutputPath  string         `json:"output_path"`
	RuleCounts  map[string]int `json:"rule_counts"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
}

// RunStore persists run records. Implementations must be safe for
// concurrent use.
type RunStore interface {
	SaveRun(ctx context.Context, r RunRecord) error
	// ListRuns returns the newest runs first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	// GetRun returns ErrRunNotFound for unknown ids.
	GetRun(ctx context.Context, id string) (*RunRecord, error)
}
