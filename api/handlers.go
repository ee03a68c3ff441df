/*
handlers.go - HTTP API handlers for the variance service

PURPOSE:
  Exposes the variance pipeline over REST so a scheduler or dashboard can
  trigger runs and read the run history. Handlers parse the request,
  delegate to pipeline.Runner or the RunStore, and serialize the result.

ARCHITECTURE:
  Handler holds the runner (with its configured options), the run store
  and a mutex. Runs write one output file, so at most one run executes at
  a time; a second POST waits for the first.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid request body or policy
  - 404: Unknown run
  - 500: Store failures

  A run that fails (missing input, unwritable output) is still a created
  run: the response is 201 with status "failed" and the error kind.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/warp/shift-variance/factory"
	"github.com/warp/shift-variance/pipeline"
	"github.com/warp/shift-variance/variance"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Runner        *pipeline.Runner
	Store         pipeline.RunStore
	PolicyFactory *factory.PolicyFactory

	mu sync.Mutex
}

// NewHandler creates a handler. The runner's Store should be the same
// store so triggered runs show up in the history.
func NewHandler(runner *pipeline.Runner, store pipeline.RunStore) *Handler {
	return &Handler{
		Runner:        runner,
		Store:         store,
		PolicyFactory: factory.NewPolicyFactory(),
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

// Health reports liveness.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetPolicy returns the configured policy document.
// GET /api/policy
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.ToJSON(h.Runner.Options.Policy))
}

// TriggerRun executes one pipeline run and returns its outcome.
// POST /api/runs
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req TriggerRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var override *variance.Policy
	if req.Policy != nil {
		policy, err := h.PolicyFactory.FromJSON(*req.Policy)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid policy", err)
			return
		}
		override = &policy
	}

	res := h.run(r.Context(), override)
	writeJSON(w, http.StatusCreated, toResultDTO(res))
}

// run executes one pipeline pass, serialized with every other run started
// through this handler. A non-nil policy replaces the configured one.
func (h *Handler) run(ctx context.Context, policy *variance.Policy) pipeline.Result {
	h.mu.Lock()
	defer h.mu.Unlock()

	runner := *h.Runner
	if policy != nil {
		runner.Options.Policy = *policy
	}
	return runner.Run(ctx)
}

// ListRuns returns run history, newest first.
// GET /api/runs?limit=N
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns one run.
// GET /api/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.Store.GetRun(r.Context(), id)
	if errors.Is(err, pipeline.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(*run))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
