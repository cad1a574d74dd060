// Package vectorize attaches an embedding to every record by sending its
// combined text to an embedding engine.
package vectorize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kalambet/lifelens/internal/engine"
	"github.com/kalambet/lifelens/internal/journal"
	"github.com/kalambet/lifelens/internal/ollama"
)

const (
	// DefaultConcurrency bounds in-flight embedding requests.
	DefaultConcurrency = 4
	// DefaultBatchSize is the number of texts per request for batch engines.
	DefaultBatchSize = 32
)

// Cache stores embeddings by content key.
type Cache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	PutEmbedding(ctx context.Context, key, model string, vec []float32) error
}

// Config controls how records are embedded.
type Config struct {
	Model string
	// Concurrency bounds parallel requests.
	Concurrency int
	// RequestsPerSecond paces requests; 0 disables pacing.
	RequestsPerSecond float64
	// Dimensions, when non-zero, is the required vector length.
	Dimensions int
	BatchSize  int
}

// Vectorizer embeds records through an Engine.
type Vectorizer struct {
	engine  engine.Engine
	cfg     Config
	cache   Cache
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Vectorizer using the given Engine.
func New(e engine.Engine, cfg Config) *Vectorizer {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	v := &Vectorizer{engine: e, cfg: cfg, logger: slog.Default()}
	if cfg.RequestsPerSecond > 0 {
		v.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return v
}

// WithCache enables embedding reuse across runs.
func (v *Vectorizer) WithCache(c Cache) *Vectorizer {
	v.cache = c
	return v
}

// WithLogger sets the logger.
func (v *Vectorizer) WithLogger(l *slog.Logger) *Vectorizer {
	v.logger = l
	return v
}

// Model returns the configured embedding model.
func (v *Vectorizer) Model() string { return v.cfg.Model }

// CacheKey identifies an embedding by model and exact input text.
func CacheKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Vectorize returns a copy of records with Embedding set. Empty combined
// text is embedded like any other text. Identical texts are embedded once.
// Any failure or inconsistent vector length is a ModelError.
func (v *Vectorizer) Vectorize(ctx context.Context, records []journal.Record) ([]journal.Record, error) {
	out := slices.Clone(records)
	if len(out) == 0 {
		return out, nil
	}

	// Unique texts in first-seen order, each with the records that share it.
	var texts []string
	owners := make(map[string][]int)
	for i, r := range out {
		if _, ok := owners[r.CombinedText]; !ok {
			texts = append(texts, r.CombinedText)
		}
		owners[r.CombinedText] = append(owners[r.CombinedText], i)
	}
	firstID := func(text string) string { return out[owners[text][0]].ID }

	vecs := make(map[string][]float32, len(texts))
	var misses []string
	for _, t := range texts {
		if vec, ok := v.cached(ctx, t); ok {
			vecs[t] = vec
			continue
		}
		misses = append(misses, t)
	}
	v.logger.Debug("vectorizing", "records", len(out), "unique_texts", len(texts),
		"cache_hits", len(texts)-len(misses), "model", v.cfg.Model)

	embedded, err := v.embed(ctx, misses, firstID)
	if err != nil {
		return nil, err
	}
	for i, t := range misses {
		vecs[t] = embedded[i]
		v.store(ctx, t, embedded[i])
	}

	dim := v.cfg.Dimensions
	for _, t := range texts {
		vec := vecs[t]
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) == 0 || len(vec) != dim {
			return nil, &journal.ModelError{RecordID: firstID(t),
				Err: fmt.Errorf("%w: got %d, want %d", journal.ErrDimensionMismatch, len(vec), dim)}
		}
		f64 := toFloat64(vec)
		for _, i := range owners[t] {
			out[i].Embedding = f64
		}
	}
	return out, nil
}

// embed runs misses through the engine, batched when supported, with
// bounded concurrency and optional pacing.
func (v *Vectorizer) embed(ctx context.Context, texts []string, idOf func(string) string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.Concurrency)

	if be, ok := v.engine.(engine.BatchEmbedder); ok {
		for start := 0; start < len(texts); start += v.cfg.BatchSize {
			end := min(start+v.cfg.BatchSize, len(texts))
			g.Go(func() error {
				if err := v.wait(gCtx); err != nil {
					return err
				}
				batch, err := be.EmbedBatch(gCtx, v.cfg.Model, texts[start:end])
				if err != nil {
					return modelError(idOf(texts[start]), fmt.Errorf("batch of %d: %w", end-start, err))
				}
				if len(batch) != end-start {
					return modelError(idOf(texts[start]), fmt.Errorf("%w: batch returned %d vectors for %d texts",
						journal.ErrDimensionMismatch, len(batch), end-start))
				}
				copy(results[start:end], batch)
				return nil
			})
		}
	} else {
		for i, text := range texts {
			g.Go(func() error {
				if err := v.wait(gCtx); err != nil {
					return err
				}
				vec, err := v.engine.Embed(gCtx, v.cfg.Model, text)
				if err != nil {
					return modelError(idOf(text), err)
				}
				results[i] = vec
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (v *Vectorizer) wait(ctx context.Context) error {
	if v.limiter == nil {
		return nil
	}
	return v.limiter.Wait(ctx)
}

func (v *Vectorizer) cached(ctx context.Context, text string) ([]float32, bool) {
	if v.cache == nil {
		return nil, false
	}
	vec, ok, err := v.cache.GetEmbedding(ctx, CacheKey(v.cfg.Model, text))
	if err != nil {
		v.logger.Warn("embedding cache read failed", "error", err)
		return nil, false
	}
	return vec, ok
}

func (v *Vectorizer) store(ctx context.Context, text string, vec []float32) {
	if v.cache == nil {
		return
	}
	if err := v.cache.PutEmbedding(ctx, CacheKey(v.cfg.Model, text), v.cfg.Model, vec); err != nil {
		v.logger.Warn("embedding cache write failed", "error", err)
	}
}

func modelError(id string, err error) error {
	if errors.Is(err, ollama.ErrUnavailable) {
		err = fmt.Errorf("%w: %w", journal.ErrBackendUnavailable, err)
	}
	return &journal.ModelError{RecordID: id, Err: err}
}

func toFloat64(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, x := range vec {
		out[i] = float64(x)
	}
	return out
}
