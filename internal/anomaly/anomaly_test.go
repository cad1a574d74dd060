package anomaly

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/lifelens/internal/journal"
)

// ring returns n points on the unit circle plus one far outlier at the end.
func ring(n int, outlierText string) []journal.Record {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]journal.Record, 0, n+1)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		out = append(out, journal.Record{
			ID:        fmt.Sprintf("r%02d", i),
			Date:      start.AddDate(0, 0, i),
			Embedding: []float64{math.Cos(a), math.Sin(a), 0.01 * float64(i%3)},
		})
	}
	out = append(out, journal.Record{
		ID:           "outlier",
		Date:         start.AddDate(0, 0, n),
		CombinedText: outlierText,
		Embedding:    []float64{40, -35, 20},
	})
	return out
}

func flaggedIDs(as []journal.Anomaly) []string {
	ids := make([]string, len(as))
	for i, a := range as {
		ids[i] = a.RecordID
	}
	return ids
}

func TestDetect_FlagsFarPointFirst(t *testing.T) {
	recs := ring(29, "Diary: stress pressure anxious")
	got, err := New(DefaultConfig()).Detect(recs)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	assert.Equal(t, "outlier", got[0].RecordID)
	assert.Equal(t, journal.AnomalyStressSurge, got[0].Type)
	assert.Equal(t, "Elevated stress levels detected on 2024-01-30", got[0].Description)

	// 10% of 30 records, within discretization
	assert.InDelta(t, 3, len(got), 1)

	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Score, got[i].Score)
	}
	for _, a := range got {
		assert.Less(t, a.Score, 0.0)
		assert.GreaterOrEqual(t, a.Score, -1.0)
	}
}

func TestDetect_Deterministic(t *testing.T) {
	recs := ring(19, "")
	a, err := New(DefaultConfig()).Detect(recs)
	require.NoError(t, err)
	b, err := New(DefaultConfig()).Detect(recs)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDetect_TextDoesNotAffectFlags(t *testing.T) {
	plain := ring(19, "")
	risky := ring(19, "")
	risky[5].CombinedText = "Diary: thinking about suicide"

	a, err := New(DefaultConfig()).Detect(plain)
	require.NoError(t, err)
	b, err := New(DefaultConfig()).Detect(risky)
	require.NoError(t, err)
	assert.Equal(t, flaggedIDs(a), flaggedIDs(b))
}

func TestDetect_ConfigAndInputErrors(t *testing.T) {
	recs := ring(5, "")

	_, err := New(Config{Contamination: 1.5}).Detect(recs)
	assert.True(t, journal.IsConfigError(err))

	_, err = New(Config{Contamination: -0.1}).Detect(recs)
	assert.True(t, journal.IsConfigError(err))

	_, err = New(DefaultConfig()).Detect(recs[:1])
	assert.True(t, journal.IsInputError(err))

	recs[2].Embedding = []float64{1}
	_, err = New(DefaultConfig()).Detect(recs)
	assert.ErrorIs(t, err, journal.ErrDimensionMismatch)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"stress pressure anxious", journal.AnomalyStressSurge},
		{"so tired but also under pressure", journal.AnomalyStressSurge},
		{"feeling sick and drained", journal.AnomalyFatigueSpike},
		{"i doubt this plan", journal.AnomalyConfidenceDip},
		{"a strange quiet day", journal.AnomalyEmotionalSpike},
		{"", journal.AnomalyEmotionalSpike},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.text), tt.text)
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Significant fatigue indicators on 2024-02-02", Describe(journal.AnomalyFatigueSpike, "2024-02-02"))
	assert.Equal(t, "Confidence or self-doubt concerns on 2024-02-02", Describe(journal.AnomalyConfidenceDip, "2024-02-02"))
	assert.Equal(t, "Unusual emotional pattern detected on 2024-02-02", Describe(journal.AnomalyEmotionalSpike, "2024-02-02"))
	assert.Equal(t, "Anomaly detected on 2024-02-02", Describe("other", "2024-02-02"))
}

func TestAveragePathLength(t *testing.T) {
	assert.Equal(t, 0.0, averagePathLength(0))
	assert.Equal(t, 0.0, averagePathLength(1))
	assert.Equal(t, 1.0, averagePathLength(2))
	assert.InDelta(t, 10.2448, averagePathLength(256), 1e-3)
}

func TestPercentile(t *testing.T) {
	assert.InDelta(t, 1.3, percentile([]float64{4, 1, 3, 2}, 10), 1e-12)
	assert.Equal(t, 2.5, percentile([]float64{1, 2, 3, 4}, 50))
	assert.Equal(t, 7.0, percentile([]float64{7}, 10))
}
