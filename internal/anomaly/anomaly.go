// Package anomaly flags statistically unusual records with an isolation
// forest over their embeddings and classifies each by lexical triggers.
package anomaly

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/kalambet/lifelens/internal/journal"
	"github.com/kalambet/lifelens/internal/lexicon"
)

// Defaults.
const (
	DefaultContamination = 0.1
	DefaultTrees         = 100
	DefaultMaxSamples    = 256
	DefaultSeed          = 42
)

// Config controls the outlier model.
type Config struct {
	Contamination float64
	Trees         int
	MaxSamples    int
	Seed          uint64
}

// DefaultConfig returns the standard settings.
func DefaultConfig() Config {
	return Config{
		Contamination: DefaultContamination,
		Trees:         DefaultTrees,
		MaxSamples:    DefaultMaxSamples,
		Seed:          DefaultSeed,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.Contamination <= 0 || c.Contamination >= 1 {
		return &journal.ConfigError{Field: "contamination", Err: fmt.Errorf("must be in (0, 1), got %g", c.Contamination)}
	}
	if c.Trees < 1 {
		return &journal.ConfigError{Field: "trees", Err: fmt.Errorf("must be at least 1, got %d", c.Trees)}
	}
	if c.MaxSamples < 2 {
		return &journal.ConfigError{Field: "max_samples", Err: fmt.Errorf("must be at least 2, got %d", c.MaxSamples)}
	}
	return nil
}

// Detector finds anomalous records.
type Detector struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Detector. Zero fields in cfg take their defaults, except
// Seed.
func New(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.Contamination == 0 {
		cfg.Contamination = def.Contamination
	}
	if cfg.Trees == 0 {
		cfg.Trees = def.Trees
	}
	if cfg.MaxSamples == 0 {
		cfg.MaxSamples = def.MaxSamples
	}
	return &Detector{cfg: cfg, logger: slog.Default()}
}

// WithLogger sets the logger.
func (d *Detector) WithLogger(l *slog.Logger) *Detector {
	d.logger = l
	return d
}

// Config returns the effective configuration.
func (d *Detector) Config() Config { return d.cfg }

// Scores fits the forest on the record embeddings and returns the score of
// every record together with the outlier cutoff.
func (d *Detector) Scores(records []journal.Record) ([]float64, float64, error) {
	if err := d.cfg.Validate(); err != nil {
		return nil, 0, err
	}
	if len(records) < 2 {
		return nil, 0, &journal.InputError{Index: -1, Err: errors.New("anomaly detection needs at least 2 records")}
	}
	data := journal.Embeddings(records)
	dim := len(data[0])
	for i, row := range data {
		if len(row) != dim || dim == 0 {
			return nil, 0, fmt.Errorf("record %s: %w", records[i].ID, journal.ErrDimensionMismatch)
		}
	}

	f := fitForest(data, d.cfg.Trees, d.cfg.MaxSamples, d.cfg.Seed)
	scores := make([]float64, len(data))
	for i, row := range data {
		scores[i] = f.score(row)
	}
	return scores, percentile(scores, 100*d.cfg.Contamination), nil
}

// Detect returns the outlier records ordered from most to least anomalous.
// Ties keep date order.
func (d *Detector) Detect(records []journal.Record) ([]journal.Anomaly, error) {
	scores, offset, err := d.Scores(records)
	if err != nil {
		return nil, err
	}

	var out []journal.Anomaly
	for i, r := range records {
		if scores[i] >= offset {
			continue
		}
		typ := Classify(r.LowerText())
		date := r.DateString()
		out = append(out, journal.Anomaly{
			RecordID:    r.ID,
			Date:        date,
			Type:        typ,
			Score:       scores[i],
			Description: Describe(typ, date),
		})
	}
	slices.SortStableFunc(out, func(a, b journal.Anomaly) int {
		return cmp.Compare(a.Score, b.Score)
	})
	d.logger.Debug("anomalies detected", "records", len(records), "flagged", len(out), "offset", offset)
	return out, nil
}

// Classify maps lowercased text to an anomaly type; the first trigger group
// that matches wins.
func Classify(lower string) string {
	switch {
	case lexicon.ContainsAny(lower, lexicon.StressTriggers):
		return journal.AnomalyStressSurge
	case lexicon.ContainsAny(lower, lexicon.FatigueTriggers):
		return journal.AnomalyFatigueSpike
	case lexicon.ContainsAny(lower, lexicon.DoubtTriggers):
		return journal.AnomalyConfidenceDip
	default:
		return journal.AnomalyEmotionalSpike
	}
}

// Describe renders the per-type description.
func Describe(typ, date string) string {
	switch typ {
	case journal.AnomalyStressSurge:
		return "Elevated stress levels detected on " + date
	case journal.AnomalyFatigueSpike:
		return "Significant fatigue indicators on " + date
	case journal.AnomalyConfidenceDip:
		return "Confidence or self-doubt concerns on " + date
	case journal.AnomalyEmotionalSpike:
		return "Unusual emotional pattern detected on " + date
	default:
		return "Anomaly detected on " + date
	}
}
