// Package temporal summarises records per 7-day window: dominant theme,
// mood trend and a short narrative.
package temporal

import (
	"fmt"
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/kalambet/lifelens/internal/journal"
	"github.com/kalambet/lifelens/internal/lexicon"
)

// TrendThreshold is the minimum half-over-half mood change counted as a trend.
const TrendThreshold = 0.5

// Analyzer builds weekly summaries.
type Analyzer struct {
	logger *slog.Logger
}

// New creates an Analyzer.
func New() *Analyzer {
	return &Analyzer{logger: slog.Default()}
}

// WithLogger sets the logger.
func (a *Analyzer) WithLogger(l *slog.Logger) *Analyzer {
	a.logger = l
	return a
}

// Analyze returns one summary per populated week, ascending. records must
// be date-ordered with Week and ClusterID set.
func (a *Analyzer) Analyze(records []journal.Record, themes []journal.Theme) []journal.WeeklySummary {
	idx := journal.IndexThemes(themes)

	weeks := GroupByWeek(records)
	nums := make([]int, 0, len(weeks))
	for w := range weeks {
		nums = append(nums, w)
	}
	slices.Sort(nums)

	out := make([]journal.WeeklySummary, 0, len(nums))
	for _, w := range nums {
		out = append(out, summarize(w, weeks[w], themes, idx))
	}
	a.logger.Debug("weekly summaries built", "weeks", len(out))
	return out
}

// GroupByWeek buckets records by week number, keeping date order inside
// each bucket.
func GroupByWeek(records []journal.Record) map[int][]journal.Record {
	weeks := make(map[int][]journal.Record)
	for _, r := range records {
		weeks[r.Week] = append(weeks[r.Week], r)
	}
	return weeks
}

func summarize(week int, members []journal.Record, themes []journal.Theme, idx journal.ThemeIndex) journal.WeeklySummary {
	label := dominantLabel(members, themes, idx)
	trend := MoodTrend(members)
	s := journal.WeeklySummary{
		Week:          week,
		DominantTheme: label,
		MoodTrend:     trend,
		EntryCount:    len(members),
		Narrative:     Narrative(label, trend),
	}
	if len(members) > 0 {
		s.StartDate = members[0].DateString()
		s.EndDate = members[len(members)-1].DateString()
	}
	return s
}

// DominantCluster returns the cluster with the most members, lowest id on
// ties, and false for an empty window.
func DominantCluster(members []journal.Record) (int, bool) {
	if len(members) == 0 {
		return 0, false
	}
	counts := make(map[int]int)
	for _, r := range members {
		counts[r.ClusterID]++
	}
	best, bestCount := 0, -1
	for id, n := range counts {
		if n > bestCount || (n == bestCount && id < best) {
			best, bestCount = id, n
		}
	}
	return best, true
}

func dominantLabel(members []journal.Record, themes []journal.Theme, idx journal.ThemeIndex) string {
	if id, ok := DominantCluster(members); ok {
		if th, ok := idx[id]; ok {
			return th.Label
		}
	}
	if len(themes) > 0 {
		return themes[0].Label
	}
	return ""
}

// MoodTrend compares mean mood of the second half of members with the
// first half. Odd counts put the extra record in the second half.
func MoodTrend(members []journal.Record) string {
	if len(members) < 2 {
		return journal.TrendStable
	}
	scores := make([]float64, len(members))
	for i, r := range members {
		scores[i] = lexicon.MoodScore(r.LowerText())
	}
	mid := len(scores) / 2
	diff := stat.Mean(scores[mid:], nil) - stat.Mean(scores[:mid], nil)
	switch {
	case diff > TrendThreshold:
		return journal.TrendImproving
	case diff < -TrendThreshold:
		return journal.TrendDeclining
	default:
		return journal.TrendStable
	}
}

// Narrative renders the one-line weekly note.
func Narrative(label, trend string) string {
	switch trend {
	case journal.TrendImproving:
		return fmt.Sprintf("%s shows positive progression. Consider maintaining current strategies.", label)
	case journal.TrendDeclining:
		return fmt.Sprintf("%s indicates increasing challenges. Consider seeking support or adjusting approach.", label)
	case journal.TrendStable:
		return fmt.Sprintf("%s remains consistent. Current balance appears sustainable.", label)
	default:
		return fmt.Sprintf("%s is the focus this week.", label)
	}
}
