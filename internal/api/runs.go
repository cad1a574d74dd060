// Package api exposes analysis runs over HTTP and MCP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/lifelens/internal/journal"
	"github.com/kalambet/lifelens/internal/pipeline"
	"github.com/kalambet/lifelens/internal/storage"
	"github.com/kalambet/lifelens/internal/worker"
)

const maxRequestBodySize = 10 << 20 // 10MB

// SubmitRequest is the body of POST /runs.
type SubmitRequest struct {
	Entries []journal.Entry `json:"entries"`
	Params  pipeline.Params `json:"params"`
}

// SubmitResponse is returned for an accepted run.
type SubmitResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// RunView is the JSON form of a stored run, without its report.
type RunView struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Status      string          `json:"status"`
	RecordCount int             `json:"record_count"`
	Options     json.RawMessage `json:"options,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewRunView converts a stored run.
func NewRunView(r storage.Run) RunView {
	v := RunView{
		ID:          r.ID,
		Source:      r.Source,
		Status:      r.Status,
		RecordCount: r.RecordCount,
		Error:       r.Error,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if json.Valid([]byte(r.OptionsJSON)) {
		v.Options = json.RawMessage(r.OptionsJSON)
	}
	return v
}

// RunStore is the persistence the HTTP handlers need.
type RunStore interface {
	worker.Queue
	GetRun(id string) (storage.Run, error)
	ListRuns(limit, offset int) ([]storage.Run, error)
	DeleteRun(id string) error
}

type AppDeps struct {
	Store RunStore
	Token string
	// Base holds the configured analysis settings the worker will apply,
	// so submissions can be checked against them.
	Base pipeline.Options
}

// NewHandler returns the HTTP API. /health is open; everything else needs
// the bearer token.
func NewHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/runs", handleSubmitRun(deps))
		r.Get("/runs", handleListRuns(deps))
		r.Get("/runs/{id}", handleGetRun(deps))
		r.Get("/runs/{id}/report", handleGetReport(deps))
		r.Delete("/runs/{id}", handleDeleteRun(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleSubmitRun(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := validateParams(req.Params); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_error", pipeline.StageConfig, err.Error())
			return
		}
		// Reject what the worker would fail on now rather than as a failed
		// run later.
		if _, err := pipeline.Validate(journal.Records(req.Entries), req.Params.Apply(deps.Base)); err != nil {
			stage := pipeline.FailedStage(err)
			var se *pipeline.StageError
			if errors.As(err, &se) {
				err = se.Err
			}
			writeError(w, http.StatusBadRequest, "invalid_request_error", stage, err.Error())
			return
		}

		runID, err := worker.Submit(deps.Store, "api", req.Entries, req.Params)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to queue run: %v", err)
			return
		}

		writeJSON(w, http.StatusAccepted, SubmitResponse{RunID: runID, Status: storage.RunQueued})
	}
}

// validateParams catches overrides that can never be valid whatever the
// dataset.
func validateParams(p pipeline.Params) error {
	if p.Clusters < 0 {
		return &journal.ConfigError{Field: "clusters", Err: errors.New("must be >= 1")}
	}
	if p.Contamination < 0 || p.Contamination >= 1 {
		return &journal.ConfigError{Field: "contamination", Err: errors.New("must be in (0, 1)")}
	}
	return nil
}

func handleListRuns(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		runs, err := deps.Store.ListRuns(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list runs: %v", err)
			return
		}

		views := make([]RunView, len(runs))
		for i, run := range runs {
			views[i] = NewRunView(run)
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleGetRun(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, ok := lookupRun(w, deps, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, NewRunView(run))
	}
}

func handleGetReport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, ok := lookupRun(w, deps, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		if run.Status != storage.RunCompleted || run.ReportJSON == "" {
			httpError(w, http.StatusNotFound, "not_found", "run %s has no report (status %s)", run.ID, run.Status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(run.ReportJSON))
	}
}

func handleDeleteRun(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteRun(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "run not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete run: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func lookupRun(w http.ResponseWriter, deps AppDeps, id string) (storage.Run, bool) {
	run, err := deps.Store.GetRun(id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "run not found")
		return run, false
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to get run: %v", err)
		return run, false
	}
	return run, true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
