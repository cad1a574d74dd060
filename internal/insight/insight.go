// Package insight turns analysis results into short observational text.
// Nothing here is diagnostic; the safety notes always carry a disclaimer.
package insight

import (
	"fmt"
	"strings"

	"github.com/kalambet/lifelens/internal/journal"
	"github.com/kalambet/lifelens/internal/lexicon"
)

const (
	InsufficientData = "Insufficient data for reliable prediction."
	NoRiskNote       = "No critical risk indicators detected."
	HighRiskNote     = "High-risk emotional indicators detected. Professional consultation strongly recommended."
	Disclaimer       = "All insights are observational and non-diagnostic. " +
		"This analysis does not replace professional mental health assessment."
)

// Insights holds the generated text.
type Insights struct {
	Macro       string
	Predictive  string
	SafetyNotes []string
}

// Input bundles the stage outputs that insights read.
type Input struct {
	Records   []journal.Record
	Themes    []journal.Theme
	Weeks     []journal.WeeklySummary
	Anomalies []journal.Anomaly
	Patterns  journal.PatternReport
}

func Generate(in Input) Insights {
	return Insights{
		Macro:       Macro(in),
		Predictive:  Predictive(in.Weeks),
		SafetyNotes: SafetyNotes(in.Records),
	}
}

// Macro summarizes the whole period: dominant theme, prevailing weekly
// trend, the cycle description and the anomaly count.
func Macro(in Input) string {
	var parts []string

	if t, ok := dominantTheme(in.Themes); ok {
		parts = append(parts, fmt.Sprintf("Over the %d-day period, life patterns were primarily characterized by %s.",
			spanDays(in.Records), strings.ToLower(t.Label)))
	}

	switch dominantTrend(in.Weeks) {
	case journal.TrendImproving:
		parts = append(parts, "Overall emotional trajectory shows positive growth.")
	case journal.TrendDeclining:
		parts = append(parts, "Some challenging periods were observed, suggesting need for additional support strategies.")
	default:
		parts = append(parts, "Emotional patterns remained relatively balanced throughout the period.")
	}

	if in.Patterns.WeeklyCycleDetected && in.Patterns.Description != "" {
		parts = append(parts, in.Patterns.Description)
	}
	if n := len(in.Anomalies); n > 0 {
		parts = append(parts, fmt.Sprintf("%d significant emotional events were identified.", n))
	}
	return strings.Join(parts, " ")
}

// Predictive extrapolates the last two weeks into the next one.
func Predictive(weeks []journal.WeeklySummary) string {
	if len(weeks) < 2 {
		return InsufficientData
	}
	a, b := weeks[len(weeks)-2], weeks[len(weeks)-1]
	next := b.Week + 1

	var parts []string
	switch {
	case a.MoodTrend == journal.TrendDeclining && b.MoodTrend == journal.TrendDeclining:
		parts = append(parts,
			fmt.Sprintf("If current pattern continues, Week %d may show continued challenges.", next),
			"Consider implementing stress-reduction strategies proactively.")
	case a.MoodTrend == journal.TrendImproving && b.MoodTrend == journal.TrendImproving:
		parts = append(parts,
			fmt.Sprintf("If momentum continues, Week %d likely to show sustained positive trajectory.", next),
			"Consider strategies to maintain current positive practices.")
	default:
		parts = append(parts,
			fmt.Sprintf("Week %d may show similar patterns to recent weeks with typical weekly fluctuations.", next))
	}

	if a.DominantTheme == b.DominantTheme {
		parts = append(parts, fmt.Sprintf("%s is likely to remain a central focus.", b.DominantTheme))
	}
	return strings.Join(parts, " ")
}

// SafetyNotes scans the raw text for risk phrases and self-doubt language.
// The disclaimer is always the last note.
func SafetyNotes(records []journal.Record) []string {
	var risk bool
	var ambiguous int
	for _, r := range records {
		lower := r.LowerText()
		if lexicon.ContainsAny(lower, lexicon.RiskPhrases) {
			risk = true
		}
		if lexicon.ContainsAny(lower, lexicon.AmbiguousWords) {
			ambiguous++
		}
	}

	notes := []string{NoRiskNote}
	if risk {
		notes[0] = HighRiskNote
	}
	if ambiguous > 0 {
		notes = append(notes, fmt.Sprintf("Ambiguous self-doubt language detected on %d occasions. "+
			"Interpretations should consider broader context.", ambiguous))
	}
	return append(notes, Disclaimer)
}

// dominantTheme picks the theme with the most entries; the earlier theme
// wins a tie.
func dominantTheme(themes []journal.Theme) (journal.Theme, bool) {
	if len(themes) == 0 {
		return journal.Theme{}, false
	}
	best := themes[0]
	for _, t := range themes[1:] {
		if t.EntryCount > best.EntryCount {
			best = t
		}
	}
	return best, true
}

// dominantTrend is the most frequent weekly trend, ties going to the trend
// seen first.
func dominantTrend(weeks []journal.WeeklySummary) string {
	counts := make(map[string]int)
	var order []string
	for _, w := range weeks {
		if counts[w.MoodTrend] == 0 {
			order = append(order, w.MoodTrend)
		}
		counts[w.MoodTrend]++
	}
	best := journal.TrendStable
	bestN := 0
	for _, t := range order {
		if counts[t] > bestN {
			best, bestN = t, counts[t]
		}
	}
	return best
}

// spanDays counts calendar days from the first to the last record, inclusive.
func spanDays(records []journal.Record) int {
	if len(records) == 0 {
		return 0
	}
	first, last := records[0].Date, records[0].Date
	for _, r := range records[1:] {
		if r.Date.Before(first) {
			first = r.Date
		}
		if r.Date.After(last) {
			last = r.Date
		}
	}
	return int(last.Sub(first).Hours()/24) + 1
}
