// Package report assembles analysis results into the serialized report.
// Floating values are rounded here and nowhere else.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/kalambet/lifelens/internal/insight"
	"github.com/kalambet/lifelens/internal/journal"
)

type Report struct {
	Themes            []Theme   `json:"themes"`
	TemporalEvolution []Week    `json:"temporal_evolution"`
	PatternCycles     Patterns  `json:"pattern_cycles"`
	Anomalies         []Anomaly `json:"anomalies"`
	MacroInsight      string    `json:"macro_insight"`
	PredictiveInsight string    `json:"predictive_insight"`
	SafetyNotes       []string  `json:"safety_notes"`
	Entries           []Entry   `json:"entries"`
	Meta              Meta      `json:"meta"`
}

type Theme struct {
	ThemeLabel            string   `json:"theme_label"`
	ClusterID             int      `json:"cluster_id"`
	RepresentativeEntries []string `json:"representative_entries"`
	Keywords              []string `json:"keywords"`
	ClusterConfidence     float64  `json:"cluster_confidence"`
	EntryCount            int      `json:"entry_count"`
}

type Week struct {
	Week          int    `json:"week"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	DominantTheme string `json:"dominant_theme"`
	MoodTrend     string `json:"mood_trend"`
	EntryCount    int    `json:"entry_count"`
	MicroInsight  string `json:"micro_insight"`
}

type Patterns struct {
	WeeklyCycleDetected bool                  `json:"weekly_cycle_detected"`
	Description         string                `json:"description"`
	DayOfWeekPatterns   map[string]DayPattern `json:"day_of_week_patterns"`
}

type DayPattern struct {
	AverageSentiment float64 `json:"average_sentiment"`
	Trend            string  `json:"trend"`
}

type Anomaly struct {
	EntryID      string  `json:"entry_id"`
	Date         string  `json:"date"`
	AnomalyType  string  `json:"anomaly_type"`
	AnomalyScore float64 `json:"anomaly_score"`
	Description  string  `json:"description"`
}

// Entry is one enriched record.
type Entry struct {
	EntryID   string    `json:"entry_id"`
	Date      string    `json:"date"`
	Week      int       `json:"week"`
	ClusterID int       `json:"cluster_id"`
	Embedding []float64 `json:"embedding,omitempty"`
}

// Meta describes how the report was produced.
type Meta struct {
	RunID         string    `json:"run_id,omitempty"`
	GeneratedAt   time.Time `json:"generated_at"`
	Model         string    `json:"model"`
	Records       int       `json:"records"`
	Clusters      int       `json:"clusters"`
	Seed          uint64    `json:"seed"`
	Contamination float64   `json:"contamination"`
	DurationMS    int64     `json:"duration_ms"`
}

// Input is everything a report is built from.
type Input struct {
	Records   []journal.Record
	Themes    []journal.Theme
	Weeks     []journal.WeeklySummary
	Anomalies []journal.Anomaly
	Patterns  journal.PatternReport
	Insights  insight.Insights
	Meta      Meta
}

type Options struct {
	IncludeEmbeddings bool
}

// Build converts analysis results into a Report. Slices are never nil so
// they serialize as [] rather than null.
func Build(in Input, opts Options) *Report {
	r := &Report{
		Themes:            make([]Theme, 0, len(in.Themes)),
		TemporalEvolution: make([]Week, 0, len(in.Weeks)),
		Anomalies:         make([]Anomaly, 0, len(in.Anomalies)),
		MacroInsight:      in.Insights.Macro,
		PredictiveInsight: in.Insights.Predictive,
		SafetyNotes:       append([]string{}, in.Insights.SafetyNotes...),
		Entries:           make([]Entry, 0, len(in.Records)),
		Meta:              in.Meta,
	}

	for _, t := range in.Themes {
		r.Themes = append(r.Themes, Theme{
			ThemeLabel:            t.Label,
			ClusterID:             t.ClusterID,
			RepresentativeEntries: append([]string{}, t.Representatives...),
			Keywords:              append([]string{}, t.TopKeywords()...),
			ClusterConfidence:     Round(t.Confidence, 2),
			EntryCount:            t.EntryCount,
		})
	}

	for _, w := range in.Weeks {
		r.TemporalEvolution = append(r.TemporalEvolution, Week{
			Week:          w.Week,
			StartDate:     w.StartDate,
			EndDate:       w.EndDate,
			DominantTheme: w.DominantTheme,
			MoodTrend:     w.MoodTrend,
			EntryCount:    w.EntryCount,
			MicroInsight:  w.Narrative,
		})
	}

	r.PatternCycles = Patterns{
		WeeklyCycleDetected: in.Patterns.WeeklyCycleDetected,
		Description:         in.Patterns.Description,
		DayOfWeekPatterns:   make(map[string]DayPattern, len(in.Patterns.DayOfWeek)),
	}
	for day, p := range in.Patterns.DayOfWeek {
		r.PatternCycles.DayOfWeekPatterns[day] = DayPattern{
			AverageSentiment: Round(p.AverageSentiment, 2),
			Trend:            p.Trend,
		}
	}

	for _, a := range in.Anomalies {
		r.Anomalies = append(r.Anomalies, Anomaly{
			EntryID:      a.RecordID,
			Date:         a.Date,
			AnomalyType:  a.Type,
			AnomalyScore: Round(a.Score, 4),
			Description:  a.Description,
		})
	}

	for _, rec := range in.Records {
		e := Entry{EntryID: rec.ID, Date: rec.DateString(), Week: rec.Week, ClusterID: rec.ClusterID}
		if opts.IncludeEmbeddings {
			e.Embedding = make([]float64, len(rec.Embedding))
			for i, x := range rec.Embedding {
				e.Embedding[i] = Round(x, 6)
			}
		}
		r.Entries = append(r.Entries, e)
	}

	r.Meta.Records = len(in.Records)
	r.Meta.Clusters = len(in.Themes)
	return r
}

// Round rounds x to places decimal places, halves to even.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.RoundToEven(x*p) / p
}

// Encode writes r as indented JSON.
func Encode(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// Decode parses a stored report.
func Decode(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &r, nil
}
