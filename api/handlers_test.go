/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Triggering runs (success, failure, policy override, bad input)
- Run history listing and lookup
- Policy and health endpoints
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-variance/factory"
	"github.com/warp/shift-variance/logger"
	"github.com/warp/shift-variance/pipeline"
	"github.com/warp/shift-variance/report"
	"github.com/warp/shift-variance/store/sqlite"
	"github.com/warp/shift-variance/tabular"
	"github.com/warp/shift-variance/variance"
)

// newTestServer wires a router over an in-memory SQLite history and a
// shift file where E001 has nine approved exceptions in March.
func newTestServer(t *testing.T) (*httptest.Server, *pipeline.Runner) {
	t.Helper()
	dir := t.TempDir()

	var b strings.Builder
	b.WriteString("EmployeeID,Date,ActualShift,ExceptionApproved,AllowanceApproved\n")
	for day := 1; day <= 9; day++ {
		b.WriteString("E001,2025-03-0" + string(rune('0'+day)) + ",Day,Yes,No\n")
	}
	shifts := filepath.Join(dir, "shifts.csv")
	require.NoError(t, os.WriteFile(shifts, []byte(b.String()), 0o644))

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	runner := pipeline.NewRunner(pipeline.Options{
		Shifts: tabular.Source{Name: "shifts", Path: shifts, Format: tabular.FormatCSV},
		Leave:  tabular.Source{Name: "leave"},
		Roster: tabular.Source{Name: "roster"},
		Output: report.Writer{Path: filepath.Join(dir, "variance_report.csv"), Format: tabular.FormatCSV},
		Policy: variance.DefaultPolicy(),
	}, logger.NewNop(), store)

	srv := httptest.NewServer(NewRouter(NewHandler(runner, store)))
	t.Cleanup(srv.Close)
	return srv, runner
}

func postRun(t *testing.T, srv *httptest.Server, body string) (int, RunDTO) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/runs", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var dto RunDTO
	if resp.StatusCode == http.StatusCreated {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&dto))
	}
	return resp.StatusCode, dto
}

func TestTriggerRun_DefaultPolicy(t *testing.T) {
	// GIVEN: Nine approved exceptions in one month
	srv, _ := newTestServer(t)

	// WHEN: A run is triggered with no body
	status, dto := postRun(t, srv, "")

	// THEN: Every row of the month is flagged by the monthly rule
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "succeeded", dto.Status)
	assert.Equal(t, 9, dto.ShiftRows)
	assert.Equal(t, 9, dto.FlaggedRows)
	assert.Equal(t, 9, dto.RuleCounts["excessive_exceptions"])
	require.NotNil(t, dto.Join)
	assert.Equal(t, 9, dto.Join.ShiftRows)
	assert.NotEmpty(t, dto.SkippedRules)
}

func TestTriggerRun_PolicyOverride(t *testing.T) {
	srv, runner := newTestServer(t)

	status, dto := postRun(t, srv, `{"policy": {"excess_exceptions_per_month": 9}}`)

	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 0, dto.FlaggedRows)
	// The override is per run.
	assert.Equal(t, variance.DefaultExcessExceptionsPerMonth, runner.Options.Policy.ExcessExceptionsPerMonth)
}

func TestTriggerRun_BadInput(t *testing.T) {
	srv, _ := newTestServer(t)

	status, _ := postRun(t, srv, `{"policy": {"disabled_rules": ["bogus"]}}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = postRun(t, srv, `{not json`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestTriggerRun_FailedRunIsRecorded(t *testing.T) {
	srv, runner := newTestServer(t)
	runner.Options.Shifts.Path = filepath.Join(t.TempDir(), "missing.csv")

	status, dto := postRun(t, srv, "")

	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "failed", dto.Status)
	assert.Equal(t, "missing_file", dto.ErrorKind)
	assert.Nil(t, dto.Join)

	resp, err := http.Get(srv.URL + "/api/runs/" + dto.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	var got RunDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "failed", got.Status)
}

func TestListAndGetRuns(t *testing.T) {
	srv, _ := newTestServer(t)
	_, first := postRun(t, srv, "")
	_, second := postRun(t, srv, "")

	resp, err := http.Get(srv.URL + "/api/runs?limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	var runs []RunDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Contains(t, []string{first.ID, second.ID}, runs[0].ID)

	resp, err = http.Get(srv.URL + "/api/runs/" + first.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got RunDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 9, got.RuleCounts["excessive_exceptions"])
}

func TestGetRun_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/runs/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListRuns_BadLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/runs?limit=-3")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetPolicyAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/policy")
	require.NoError(t, err)
	defer resp.Body.Close()
	var pj factory.PolicyJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pj))
	require.NotNil(t, pj.ExcessExceptionsPerMonth)
	assert.Equal(t, 8, *pj.ExcessExceptionsPerMonth)
	assert.Equal(t, variance.DefaultTimeOffStatuses, pj.TimeOffStatuses)

	resp, err = http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
