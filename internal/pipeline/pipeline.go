// Package pipeline runs the full analysis over a batch of journal records:
// validation, vectorization, clustering, then temporal, anomaly and pattern
// analysis, insights and the final report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/lifelens/internal/anomaly"
	"github.com/kalambet/lifelens/internal/cluster"
	"github.com/kalambet/lifelens/internal/insight"
	"github.com/kalambet/lifelens/internal/journal"
	"github.com/kalambet/lifelens/internal/pattern"
	"github.com/kalambet/lifelens/internal/report"
	"github.com/kalambet/lifelens/internal/temporal"
)

// Stage names used in StageError.
const (
	StageConfig    = "config"
	StageInput     = "input"
	StageVectorize = "vectorize"
	StageCluster   = "cluster"
	StageTemporal  = "temporal"
	StageAnomaly   = "anomaly"
	StagePattern   = "pattern"
)

// StageError wraps the first fatal error of a run with the stage it came from.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Vectorizer attaches embeddings to records.
type Vectorizer interface {
	Vectorize(ctx context.Context, records []journal.Record) ([]journal.Record, error)
	Model() string
}

// Options configures one run.
type Options struct {
	RunID             string
	Cluster           cluster.Config
	Anomaly           anomaly.Config
	IncludeEmbeddings bool
}

// DefaultOptions returns the standard analysis settings.
func DefaultOptions() Options {
	return Options{
		Cluster: cluster.DefaultConfig(),
		Anomaly: anomaly.DefaultConfig(),
	}
}

// Params are per-run overrides accepted from the CLI, API and MCP callers.
type Params struct {
	Clusters          int     `json:"clusters,omitempty"`
	Seed              *uint64 `json:"seed,omitempty"`
	Contamination     float64 `json:"contamination,omitempty"`
	IncludeEmbeddings bool    `json:"include_embeddings,omitempty"`
}

// Apply overlays the set fields of p on o. The seed drives both clustering
// and the outlier model.
func (p Params) Apply(o Options) Options {
	if p.Clusters != 0 {
		o.Cluster.K = p.Clusters
	}
	if p.Seed != nil {
		o.Cluster.Seed = *p.Seed
		o.Anomaly.Seed = *p.Seed
	}
	if p.Contamination != 0 {
		o.Anomaly.Contamination = p.Contamination
	}
	if p.IncludeEmbeddings {
		o.IncludeEmbeddings = true
	}
	return o
}

// Result holds every stage output of a successful run.
type Result struct {
	Records   []journal.Record
	Themes    []journal.Theme
	Weeks     []journal.WeeklySummary
	Anomalies []journal.Anomaly
	Patterns  journal.PatternReport
	Insights  insight.Insights
	Report    *report.Report
}

// Runner executes analysis runs. It is safe for concurrent use as long as
// the Vectorizer is.
type Runner struct {
	vectorizer Vectorizer
	logger     *slog.Logger
}

func NewRunner(v Vectorizer) *Runner {
	return &Runner{vectorizer: v, logger: slog.Default()}
}

// WithLogger sets the logger.
func (r *Runner) WithLogger(l *slog.Logger) *Runner {
	r.logger = l
	return r
}

// Validate checks opts and records without touching the embedding backend
// and returns the prepared records. Errors are StageErrors for the config or
// input stage.
func Validate(records []journal.Record, opts Options) ([]journal.Record, error) {
	if err := opts.Anomaly.Validate(); err != nil {
		return nil, &StageError{Stage: StageConfig, Err: err}
	}
	prepared, err := journal.Prepare(records)
	if err != nil {
		return nil, &StageError{Stage: StageInput, Err: err}
	}
	if err := opts.Cluster.Validate(len(prepared)); err != nil {
		return nil, &StageError{Stage: StageConfig, Err: err}
	}
	return prepared, nil
}

// Run analyzes records. Configuration and input are checked before any
// stage runs; on error nothing partial is returned.
func (r *Runner) Run(ctx context.Context, records []journal.Record, opts Options) (*Result, error) {
	start := time.Now()
	log := r.logger.With("run_id", opts.RunID)

	prepared, err := Validate(records, opts)
	if err != nil {
		return nil, err
	}
	clusterer := cluster.New(opts.Cluster).WithLogger(log)
	detector := anomaly.New(opts.Anomaly).WithLogger(log)

	log.Info("analysis started", "records", len(prepared), "clusters", clusterer.Config().K)

	embedded, err := r.vectorizer.Vectorize(ctx, prepared)
	if err != nil {
		return nil, &StageError{Stage: StageVectorize, Err: err}
	}
	log.Debug("stage done", "stage", StageVectorize, "elapsed", time.Since(start))

	clustered, themes, err := clusterer.Fit(ctx, embedded)
	if err != nil {
		return nil, &StageError{Stage: StageCluster, Err: err}
	}
	log.Debug("stage done", "stage", StageCluster, "themes", len(themes))

	res := &Result{Records: clustered, Themes: themes}

	// The three remaining stages only read records and themes.
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res.Weeks = temporal.New().WithLogger(log).Analyze(clustered, themes)
		return gCtx.Err()
	})
	g.Go(func() error {
		found, err := detector.Detect(clustered)
		if err != nil {
			return &StageError{Stage: StageAnomaly, Err: err}
		}
		res.Anomalies = found
		return nil
	})
	g.Go(func() error {
		res.Patterns = pattern.New().WithLogger(log).Detect(clustered)
		return gCtx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Insights = insight.Generate(insight.Input{
		Records:   res.Records,
		Themes:    res.Themes,
		Weeks:     res.Weeks,
		Anomalies: res.Anomalies,
		Patterns:  res.Patterns,
	})

	res.Report = report.Build(report.Input{
		Records:   res.Records,
		Themes:    res.Themes,
		Weeks:     res.Weeks,
		Anomalies: res.Anomalies,
		Patterns:  res.Patterns,
		Insights:  res.Insights,
		Meta: report.Meta{
			RunID:         opts.RunID,
			GeneratedAt:   time.Now().UTC(),
			Model:         r.vectorizer.Model(),
			Seed:          clusterer.Config().Seed,
			Contamination: detector.Config().Contamination,
			DurationMS:    time.Since(start).Milliseconds(),
		},
	}, report.Options{IncludeEmbeddings: opts.IncludeEmbeddings})

	log.Info("analysis finished", "themes", len(res.Themes), "weeks", len(res.Weeks),
		"anomalies", len(res.Anomalies), "duration", time.Since(start))
	return res, nil
}

// FailedStage returns the stage name carried by err, or "" if none.
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
