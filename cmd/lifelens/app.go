package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kalambet/lifelens/internal/config"
	"github.com/kalambet/lifelens/internal/engine"
	"github.com/kalambet/lifelens/internal/pipeline"
	"github.com/kalambet/lifelens/internal/storage"
	"github.com/kalambet/lifelens/internal/vectorize"
)

// setupLogging installs the default structured logger on stderr.
func setupLogging(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

// embedModel resolves the configured model, falling back to the provider default.
func embedModel(cfg config.Config) string {
	if cfg.Engine.EmbedModel != "" {
		return cfg.Engine.EmbedModel
	}
	return engine.DefaultModel(cfg.Engine.Provider)
}

// analysisOptions maps the analysis config section onto pipeline options.
func analysisOptions(cfg config.Config) pipeline.Options {
	o := pipeline.DefaultOptions()
	o.Cluster.K = cfg.Analysis.Clusters
	o.Cluster.Seed = uint64(cfg.Analysis.Seed)
	o.Cluster.MaxIter = cfg.Analysis.MaxIterations
	o.Anomaly.Seed = uint64(cfg.Analysis.Seed)
	o.Anomaly.Contamination = cfg.Analysis.Contamination
	o.Anomaly.Trees = cfg.Analysis.Trees
	return o
}

// newVectorizer detects the configured engine, makes sure the embedding
// model is available and returns a vectorizer over it. store, when non-nil
// and caching is enabled, serves as the embedding cache. The returned func
// releases engine resources.
func newVectorizer(ctx context.Context, cfg config.Config, store *storage.Store, w io.Writer) (*vectorize.Vectorizer, func(), error) {
	model := embedModel(cfg)
	eng, err := engine.Detect(engine.DetectConfig{
		Provider:      cfg.Engine.Provider,
		OllamaBaseURL: cfg.Engine.BaseURL,
		Model:         model,
		CacheDir:      filepath.Join(cfg.Storage.DataDir, "models"),
	})
	if err != nil {
		return nil, nil, err
	}

	release := func() {}
	if c, ok := eng.(engine.Closer); ok {
		release = func() {
			if err := c.Close(); err != nil {
				slog.Warn("closing embedding engine", "error", err)
			}
		}
	}

	if err := engine.EnsureReady(ctx, eng, model, w); err != nil {
		release()
		return nil, nil, err
	}

	v := vectorize.New(eng, vectorize.Config{
		Model:             model,
		Concurrency:       cfg.Embedding.Concurrency,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		Dimensions:        cfg.Embedding.Dimensions,
	}).WithLogger(slog.Default())
	if cfg.Embedding.Cache && store != nil {
		v.WithCache(store)
	}
	return v, release, nil
}

// addParamFlags registers the per-run override flags.
func addParamFlags(fs *pflag.FlagSet) {
	fs.Int("clusters", 0, "number of themes (default from analysis.clusters)")
	fs.Uint64("seed", 0, "random seed (default from analysis.seed)")
	fs.Float64("contamination", 0, "expected share of unusual entries (default from analysis.contamination)")
	fs.Bool("include-embeddings", false, "include entry embeddings in the report")
}

// paramsFromFlags reads the flags added by addParamFlags. Unset flags leave
// the configured value in place.
func paramsFromFlags(fs *pflag.FlagSet) pipeline.Params {
	var p pipeline.Params
	p.Clusters, _ = fs.GetInt("clusters")
	if fs.Changed("seed") {
		seed, _ := fs.GetUint64("seed")
		p.Seed = &seed
	}
	p.Contamination, _ = fs.GetFloat64("contamination")
	p.IncludeEmbeddings, _ = fs.GetBool("include-embeddings")
	return p
}
