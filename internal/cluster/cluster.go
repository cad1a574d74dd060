// Package cluster groups record embeddings into themes with k-means and
// annotates each theme with keywords, a label, representatives and a
// confidence score.
package cluster

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kalambet/lifelens/internal/journal"
)

// Defaults.
const (
	DefaultK       = 5
	DefaultSeed    = 42
	DefaultInits   = 10
	DefaultMaxIter = 300
	DefaultTol     = 1e-4

	maxRepresentatives = 3
)

// Config controls the clustering run.
type Config struct {
	K       int
	Seed    uint64
	Inits   int
	MaxIter int
	Tol     float64
}

// DefaultConfig returns the standard settings.
func DefaultConfig() Config {
	return Config{
		K:       DefaultK,
		Seed:    DefaultSeed,
		Inits:   DefaultInits,
		MaxIter: DefaultMaxIter,
		Tol:     DefaultTol,
	}
}

// Validate checks the config against a dataset of n records.
func (c Config) Validate(n int) error {
	if c.K < 1 {
		return &journal.ConfigError{Field: "clusters", Err: fmt.Errorf("must be at least 1, got %d", c.K)}
	}
	if c.K >= n {
		return &journal.ConfigError{Field: "clusters", Err: fmt.Errorf("%d clusters need more than %d records", c.K, n)}
	}
	if c.Inits < 1 {
		return &journal.ConfigError{Field: "inits", Err: fmt.Errorf("must be at least 1, got %d", c.Inits)}
	}
	if c.MaxIter < 1 {
		return &journal.ConfigError{Field: "max_iterations", Err: fmt.Errorf("must be at least 1, got %d", c.MaxIter)}
	}
	if c.Tol < 0 {
		return &journal.ConfigError{Field: "tolerance", Err: errors.New("must not be negative")}
	}
	return nil
}

// Clusterer assigns themes to embedded records.
type Clusterer struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Clusterer. Zero fields in cfg take their defaults.
func New(cfg Config) *Clusterer {
	def := DefaultConfig()
	if cfg.K == 0 {
		cfg.K = def.K
	}
	if cfg.Inits == 0 {
		cfg.Inits = def.Inits
	}
	if cfg.MaxIter == 0 {
		cfg.MaxIter = def.MaxIter
	}
	if cfg.Tol == 0 {
		cfg.Tol = def.Tol
	}
	return &Clusterer{cfg: cfg, logger: slog.Default()}
}

// WithLogger sets the logger used for progress messages.
func (c *Clusterer) WithLogger(l *slog.Logger) *Clusterer {
	c.logger = l
	return c
}

// Config returns the effective configuration.
func (c *Clusterer) Config() Config { return c.cfg }

// Fit partitions records by embedding. It returns a copy of records with
// ClusterID set and one theme per cluster, ordered by cluster id. Records
// must already carry embeddings of equal, non-zero length.
func (c *Clusterer) Fit(ctx context.Context, records []journal.Record) ([]journal.Record, []journal.Theme, error) {
	if err := c.cfg.Validate(len(records)); err != nil {
		return nil, nil, err
	}
	dim := len(records[0].Embedding)
	if dim == 0 {
		return nil, nil, fmt.Errorf("record %s: %w", records[0].ID, journal.ErrDimensionMismatch)
	}

	data := mat.NewDense(len(records), dim, nil)
	for i, r := range records {
		if len(r.Embedding) != dim {
			return nil, nil, fmt.Errorf("record %s has %d dimensions, want %d: %w",
				r.ID, len(r.Embedding), dim, journal.ErrDimensionMismatch)
		}
		data.SetRow(i, r.Embedding)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	km := newKMeans(c.cfg.K, c.cfg.Inits, c.cfg.MaxIter, c.cfg.Tol, c.cfg.Seed)
	res := km.fit(data)
	c.logger.Debug("k-means fitted", "clusters", c.cfg.K, "records", len(records),
		"inertia", res.inertia, "iterations", res.iters)

	out := slices.Clone(records)
	for i := range out {
		out[i].ClusterID = res.labels[i]
	}

	themes := make([]journal.Theme, c.cfg.K)
	for k := 0; k < c.cfg.K; k++ {
		themes[k] = describe(k, out, res.centers.RawRowView(k))
	}
	return out, themes, nil
}

// describe derives the theme for one cluster from its members.
func describe(id int, records []journal.Record, centroid []float64) journal.Theme {
	type member struct {
		idx  int
		dist float64
	}
	var members []member
	var texts []string
	for i, r := range records {
		if r.ClusterID != id {
			continue
		}
		members = append(members, member{idx: i, dist: floats.Distance(r.Embedding, centroid, 2)})
		texts = append(texts, r.CombinedText)
	}

	theme := journal.Theme{
		ClusterID:  id,
		EntryCount: len(members),
		Centroid:   slices.Clone(centroid),
	}

	dists := make([]float64, len(members))
	for i, m := range members {
		dists[i] = m.dist
	}
	theme.Confidence = Confidence(dists)

	slices.SortStableFunc(members, func(a, b member) int {
		return cmp.Or(cmp.Compare(a.dist, b.dist), cmp.Compare(a.idx, b.idx))
	})
	for _, m := range members[:min(maxRepresentatives, len(members))] {
		theme.Representatives = append(theme.Representatives, records[m.idx].ID)
	}

	theme.Keywords = Keywords(texts)
	theme.Label = Label(theme.Keywords)
	return theme
}

// Confidence is exp(-mean/2) of the member distances to the centroid, or 0
// for an empty cluster.
func Confidence(dists []float64) float64 {
	if len(dists) == 0 {
		return 0
	}
	mean := floats.Sum(dists) / float64(len(dists))
	return math.Exp(-mean / 2)
}
