// Package pattern looks for weekly and day-of-week structure in record
// sentiment.
package pattern

import (
	"log/slog"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kalambet/lifelens/internal/journal"
	"github.com/kalambet/lifelens/internal/lexicon"
)

const (
	// MinCycleWeeks is the number of weeks needed before the variance test runs.
	MinCycleWeeks = 3
	// CycleVariance is the per-week variance above which sentiment is said
	// to fluctuate.
	CycleVariance = 0.5

	FluctuatingDescription = "Sentiment shows weekly fluctuations with peaks and valleys."
	GenericDescription     = "Weekly patterns show stress peaks early in week improving towards weekend."
)

// Weekdays lists day names Monday first.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Detector computes the pattern report.
type Detector struct {
	logger *slog.Logger
}

// New creates a Detector.
func New() *Detector {
	return &Detector{logger: slog.Default()}
}

// WithLogger sets the logger.
func (d *Detector) WithLogger(l *slog.Logger) *Detector {
	d.logger = l
	return d
}

// Detect builds the report. The weekly cycle is always reported as
// detected; only the description depends on the variance test.
func (d *Detector) Detect(records []journal.Record) journal.PatternReport {
	sentiments := make([]float64, len(records))
	for i, r := range records {
		sentiments[i] = lexicon.CycleScore(r.LowerText())
	}

	means := WeeklyMeans(records, sentiments)
	desc := GenericDescription
	if len(means) >= MinCycleWeeks {
		_, variance := stat.PopMeanVariance(means, nil)
		d.logger.Debug("weekly sentiment variance", "weeks", len(means), "variance", variance)
		if variance > CycleVariance {
			desc = FluctuatingDescription
		}
	}

	return journal.PatternReport{
		WeeklyCycleDetected: true,
		Description:         desc,
		DayOfWeek:           DayOfWeek(records, sentiments),
	}
}

// WeeklyMeans averages sentiments per week, ascending by week number.
func WeeklyMeans(records []journal.Record, sentiments []float64) []float64 {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i, r := range records {
		sums[r.Week] += sentiments[i]
		counts[r.Week]++
	}
	weeks := make([]int, 0, len(counts))
	for w := range counts {
		weeks = append(weeks, w)
	}
	slices.Sort(weeks)

	out := make([]float64, len(weeks))
	for i, w := range weeks {
		out[i] = sums[w] / float64(counts[w])
	}
	return out
}

// DayOfWeek averages sentiments per weekday. Weekdays without records are
// absent from the result.
func DayOfWeek(records []journal.Record, sentiments []float64) map[string]journal.DayPattern {
	var sums [7]float64
	var counts [7]int
	for i, r := range records {
		day := isoWeekday(r.Date)
		sums[day] += sentiments[i]
		counts[day]++
	}

	out := make(map[string]journal.DayPattern)
	for day := range 7 {
		if counts[day] == 0 {
			continue
		}
		avg := sums[day] / float64(counts[day])
		out[Weekdays[day]] = journal.DayPattern{AverageSentiment: avg, Trend: trend(avg)}
	}
	return out
}

// isoWeekday maps Monday to 0 and Sunday to 6.
func isoWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func trend(avg float64) string {
	switch {
	case avg > 0:
		return journal.SentimentPositive
	case avg < 0:
		return journal.SentimentNegative
	default:
		return journal.SentimentNeutral
	}
}
