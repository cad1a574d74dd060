package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/lifelens/internal/insight"
	"github.com/kalambet/lifelens/internal/journal"
)

func sampleInput() Input {
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return Input{
		Records: []journal.Record{
			{ID: "e1", Date: date, Week: 1, ClusterID: 0, Embedding: []float64{0.12345678, -1}},
			{ID: "e2", Date: date.AddDate(0, 0, 1), Week: 1, ClusterID: 1, Embedding: []float64{1, 2}},
		},
		Themes: []journal.Theme{
			{ClusterID: 0, Label: "Work Performance", Confidence: 0.87654,
				Keywords: []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8", "a9", "a10", "a11", "a12"},
				Representatives: []string{"e1"}, EntryCount: 1},
			{ClusterID: 1, Label: "Rest & Recovery", Confidence: 1, EntryCount: 1},
		},
		Weeks: []journal.WeeklySummary{{Week: 1, StartDate: "2024-01-01", EndDate: "2024-01-02",
			DominantTheme: "Work Performance", MoodTrend: journal.TrendStable, EntryCount: 2, Narrative: "n"}},
		Anomalies: []journal.Anomaly{{RecordID: "e2", Date: "2024-01-02", Type: journal.AnomalyStressSurge, Score: -0.612345678}},
		Patterns: journal.PatternReport{WeeklyCycleDetected: true, Description: "d",
			DayOfWeek: map[string]journal.DayPattern{"Monday": {AverageSentiment: 0.33333, Trend: journal.SentimentPositive}}},
		Insights: insight.Insights{Macro: "macro", Predictive: "pred", SafetyNotes: []string{"s"}},
		Meta:     Meta{RunID: "run-1", Model: "m"},
	}
}

func TestBuild_Rounding(t *testing.T) {
	r := Build(sampleInput(), Options{})

	assert.Equal(t, 0.88, r.Themes[0].ClusterConfidence)
	assert.Equal(t, -0.6123, r.Anomalies[0].AnomalyScore)
	assert.Equal(t, 0.33, r.PatternCycles.DayOfWeekPatterns["Monday"].AverageSentiment)
	assert.Len(t, r.Themes[0].Keywords, journal.ExposedKeywords)
	assert.Equal(t, "n", r.TemporalEvolution[0].MicroInsight)
}

func TestBuild_Entries(t *testing.T) {
	r := Build(sampleInput(), Options{})
	require.Len(t, r.Entries, 2)
	assert.Equal(t, Entry{EntryID: "e2", Date: "2024-01-02", Week: 1, ClusterID: 1}, r.Entries[1])
	assert.Nil(t, r.Entries[0].Embedding)

	r = Build(sampleInput(), Options{IncludeEmbeddings: true})
	assert.Equal(t, []float64{0.123457, -1}, r.Entries[0].Embedding)
}

func TestBuild_Meta(t *testing.T) {
	r := Build(sampleInput(), Options{})
	assert.Equal(t, 2, r.Meta.Records)
	assert.Equal(t, 2, r.Meta.Clusters)
	assert.Equal(t, "run-1", r.Meta.RunID)
}

func TestBuild_EmptySlicesSerializeAsArrays(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Build(Input{}, Options{})))

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.JSONEq(t, `[]`, string(raw["themes"]))
	assert.JSONEq(t, `[]`, string(raw["anomalies"]))
	assert.JSONEq(t, `{"weekly_cycle_detected":false,"description":"","day_of_week_patterns":{}}`, string(raw["pattern_cycles"]))
	assert.JSONEq(t, `[]`, string(raw["safety_notes"]))
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	in := Build(sampleInput(), Options{})
	require.NoError(t, Encode(&buf, in))

	out, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, in.Themes, out.Themes)
	assert.Equal(t, in.Anomalies, out.Anomalies)

	_, err = Decode([]byte("{"))
	assert.Error(t, err)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.12, Round(0.125, 2))
	assert.Equal(t, -0.12, Round(-0.125, 2))
	assert.Equal(t, 0.38, Round(0.375, 2))
	assert.Equal(t, 2.0, Round(2.5, 0))
	assert.Equal(t, 1.0, Round(1, 4))
}
