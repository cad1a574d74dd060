package journal

// Mood trend labels.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// Anomaly type labels, in classification priority order.
const (
	AnomalyStressSurge    = "stress_surge"
	AnomalyFatigueSpike   = "fatigue_spike"
	AnomalyConfidenceDip  = "confidence_dip"
	AnomalyEmotionalSpike = "emotional_spike"
)

// Day-of-week sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// ExposedKeywords is how many keywords a theme exposes to consumers.
const ExposedKeywords = 10

// Theme is one cluster of semantically similar records. Themes are created
// once per run and never modified afterwards.
type Theme struct {
	ClusterID       int
	Label           string
	Keywords        []string // ranked, up to 15
	Representatives []string // record ids nearest the centroid, up to 3
	Confidence      float64
	EntryCount      int
	Centroid        []float64
}

// TopKeywords returns the keywords exposed externally.
func (t Theme) TopKeywords() []string {
	if len(t.Keywords) > ExposedKeywords {
		return t.Keywords[:ExposedKeywords]
	}
	return t.Keywords
}

// ThemeIndex maps a cluster id to its theme.
type ThemeIndex map[int]*Theme

// IndexThemes builds the cluster id lookup once after clustering.
func IndexThemes(themes []Theme) ThemeIndex {
	idx := make(ThemeIndex, len(themes))
	for i := range themes {
		idx[themes[i].ClusterID] = &themes[i]
	}
	return idx
}

// WeeklySummary describes one populated 7-day window.
type WeeklySummary struct {
	Week          int
	StartDate     string
	EndDate       string
	DominantTheme string
	MoodTrend     string
	EntryCount    int
	Narrative     string
}

// Anomaly is a record flagged as a statistical outlier.
type Anomaly struct {
	RecordID    string
	Date        string
	Type        string
	Score       float64 // more negative is more anomalous
	Description string
}

// DayPattern is the aggregate sentiment for one weekday.
type DayPattern struct {
	AverageSentiment float64
	Trend            string
}

// PatternReport carries the cyclic-pattern findings.
type PatternReport struct {
	WeeklyCycleDetected bool
	Description         string
	DayOfWeek           map[string]DayPattern
}
