// Package memory provides an in-memory RunStore (for tests and one-shot CLI runs).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/shift-variance/pipeline"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	runs  map[string]pipeline.RunRecord
	order []string // insertion order, for stable ties
}

func New() *Memory {
	return &Memory{runs: make(map[string]pipeline.RunRecord)}
}

// SaveRun inserts or replaces a run by ID.
func (m *Memory) SaveRun(_ context.Context, r pipeline.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[r.ID]; !ok {
		m.order = append(m.order, r.ID)
	}
	m.runs[r.ID] = copyRecord(r)
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (*pipeline.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.runs[id]
	if !ok {
		return nil, pipeline.ErrRunNotFound
	}
	out := copyRecord(r)
	return &out, nil
}

// ListRuns returns runs newest first by StartedAt.
func (m *Memory) ListRuns(_ context.Context, limit int) ([]pipeline.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]pipeline.RunRecord, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, copyRecord(m.runs[m.order[i]]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyRecord(r pipeline.RunRecord) pipeline.RunRecord {
	counts := make(map[string]int, len(r.RuleCounts))
	for k, v := range r.RuleCounts {
		counts[k] = v
	}
	r.RuleCounts = counts
	return r
}
