// Package worker runs queued analysis jobs in the background.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/lifelens/internal/journal"
	"github.com/kalambet/lifelens/internal/pipeline"
	"github.com/kalambet/lifelens/internal/storage"
)

// JobType is the job queue type for analysis runs.
const JobType = "analyze"

// Store is the persistence the worker needs.
type Store interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id, errMsg string, retryable bool) error
	MarkRunRunning(id string, n int) error
	CompleteRun(id, reportJSON string) error
	RequeueRun(id, errMsg string) error
	FailRun(id, errMsg string) error
}

// Queue creates runs and enqueues their jobs.
type Queue interface {
	CreateRun(r storage.Run) error
	EnqueueJob(j storage.Job) error
}

// Analyzer runs the pipeline.
type Analyzer interface {
	Run(ctx context.Context, records []journal.Record, opts pipeline.Options) (*pipeline.Result, error)
}

// Payload is the job body of an analysis run.
type Payload struct {
	RunID   string          `json:"run_id"`
	Entries []journal.Entry `json:"entries"`
	Params  pipeline.Params `json:"params"`
}

// Submit records a queued run for entries and enqueues its job. It returns
// the new run id.
func Submit(q Queue, source string, entries []journal.Entry, p pipeline.Params) (string, error) {
	runID := uuid.New().String()
	opts, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding params: %w", err)
	}
	body, err := json.Marshal(Payload{RunID: runID, Entries: entries, Params: p})
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}

	if err := q.CreateRun(storage.Run{
		ID:          runID,
		Source:      source,
		Status:      storage.RunQueued,
		RecordCount: len(entries),
		OptionsJSON: string(opts),
	}); err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}
	if err := q.EnqueueJob(storage.Job{ID: uuid.New().String(), Type: JobType, PayloadJSON: string(body)}); err != nil {
		return "", fmt.Errorf("enqueueing run %s: %w", runID, err)
	}
	return runID, nil
}

// Recorder stores the lifecycle of a run executed in the caller's goroutine.
type Recorder interface {
	CreateRun(r storage.Run) error
	MarkRunRunning(id string, n int) error
	CompleteRun(id, reportJSON string) error
	FailRun(id, errMsg string) error
}

// RunNow analyzes records synchronously and returns the new run id with the
// result. When rec is nil nothing is stored. Analysis errors are returned
// unwrapped so callers can inspect the failed stage.
func RunNow(ctx context.Context, rec Recorder, a Analyzer, source string, records []journal.Record,
	p pipeline.Params, base pipeline.Options) (string, *pipeline.Result, error) {
	runID := uuid.New().String()
	opts := p.Apply(base)
	opts.RunID = runID

	if rec != nil {
		optsJSON, err := json.Marshal(p)
		if err != nil {
			return "", nil, fmt.Errorf("encoding params: %w", err)
		}
		if err := rec.CreateRun(storage.Run{
			ID:          runID,
			Source:      source,
			Status:      storage.RunQueued,
			RecordCount: len(records),
			OptionsJSON: string(optsJSON),
		}); err != nil {
			return "", nil, fmt.Errorf("creating run: %w", err)
		}
		if err := rec.MarkRunRunning(runID, len(records)); err != nil {
			return "", nil, fmt.Errorf("marking run running: %w", err)
		}
	}

	res, err := a.Run(ctx, records, opts)
	if err != nil {
		if rec != nil {
			if ferr := rec.FailRun(runID, err.Error()); ferr != nil {
				slog.Warn("failed to record failed run", "run_id", runID, "error", ferr)
			}
		}
		return runID, nil, err
	}

	if rec != nil {
		body, err := json.Marshal(res.Report)
		if err != nil {
			return runID, nil, fmt.Errorf("encoding report: %w", err)
		}
		if err := rec.CompleteRun(runID, string(body)); err != nil {
			return runID, res, fmt.Errorf("saving report: %w", err)
		}
	}
	return runID, res, nil
}

// Worker processes analyze jobs from the SQLite job queue one at a time.
type Worker struct {
	store    Store
	analyzer Analyzer
	base     pipeline.Options
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker. base holds the configured analysis defaults
// that job params override. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store Store, analyzer Analyzer, base pipeline.Options, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:    store,
		analyzer: analyzer,
		base:     base,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger.
func (w *Worker) WithLogger(l *slog.Logger) *Worker {
	w.logger = l
	return w
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single analyze job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	var payload Payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		w.fail(job, "", fmt.Errorf("parsing payload: %w", err), false)
		return true, nil
	}

	if err := w.process(ctx, payload); err != nil {
		w.fail(job, payload.RunID, err, Retryable(err))
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) process(ctx context.Context, p Payload) error {
	log := w.logger.With("run_id", p.RunID)
	if err := w.store.MarkRunRunning(p.RunID, len(p.Entries)); err != nil {
		return fmt.Errorf("marking run running: %w", err)
	}

	opts := p.Params.Apply(w.base)
	opts.RunID = p.RunID
	res, err := w.analyzer.Run(ctx, journal.Records(p.Entries), opts)
	if err != nil {
		return err
	}

	body, err := json.Marshal(res.Report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := w.store.CompleteRun(p.RunID, string(body)); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	log.Info("run completed", "themes", len(res.Themes), "anomalies", len(res.Anomalies))
	return nil
}

// fail records a failed attempt on the job and reflects it on the run: a
// retryable failure with attempts left requeues the run, anything else
// fails it.
func (w *Worker) fail(job *storage.Job, runID string, err error, retryable bool) {
	w.logger.Warn("job failed", "job_id", job.ID, "run_id", runID,
		"stage", pipeline.FailedStage(err), "retryable", retryable, "error", err)

	if ferr := w.store.FailJob(job.ID, err.Error(), retryable); ferr != nil {
		w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", ferr)
	}
	if runID == "" {
		return
	}

	final := !retryable || job.Attempts+1 >= job.MaxAttempts
	var rerr error
	if final {
		rerr = w.store.FailRun(runID, err.Error())
	} else {
		rerr = w.store.RequeueRun(runID, err.Error())
	}
	if rerr != nil {
		w.logger.Error("failed to update run", "run_id", runID, "error", rerr)
	}
}

// Retryable reports whether a run failure may succeed on a later attempt.
// Only embedding backend failures qualify; bad input and bad settings will
// fail the same way every time.
func Retryable(err error) bool {
	return journal.IsModelError(err) && !journal.IsInputError(err) && !journal.IsConfigError(err)
}
