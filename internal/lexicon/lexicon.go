// Package lexicon holds the fixed word tables used by the analysis stages.
// The mood and cycle sentiment lists overlap but are kept distinct: the
// temporal and pattern stages produce different numbers from them.
package lexicon

import "strings"

// MoodPositive and MoodNegative drive the weekly mood trend.
var (
	MoodPositive = []string{
		"good", "great", "happy", "wonderful", "amazing", "love",
		"better", "accomplished", "grateful", "fun", "excited",
		"relieved", "positive", "motivated", "confident", "inspired",
	}
	MoodNegative = []string{
		"stress", "pressure", "anxious", "nervous", "worry", "tough",
		"exhausted", "tired", "drained", "difficult", "hard", "sick",
		"worried", "unprepared", "uncertain",
	}
)

// CyclePositive and CycleNegative drive the weekly and day-of-week cycle
// sentiment.
var (
	CyclePositive = []string{
		"good", "great", "happy", "wonderful", "amazing", "love",
		"better", "accomplished", "grateful", "fun", "excited",
		"relieved", "positive", "motivated", "confident", "inspired",
		"recharged", "energetic", "optimistic", "fulfilling", "rewarding",
	}
	CycleNegative = []string{
		"stress", "pressure", "anxious", "nervous", "worry", "tough",
		"exhausted", "tired", "drained", "difficult", "hard", "sick",
		"worried", "unprepared", "uncertain", "struggling", "frustrated",
	}
)

// Anomaly triggers, checked in this order.
var (
	StressTriggers  = []string{"stress", "pressure", "anxious", "nervous"}
	FatigueTriggers = []string{"sick", "tired", "exhausted", "drained"}
	DoubtTriggers   = []string{"unprepared", "worry", "uncertain", "doubt"}
)

// Safety scan phrases.
var (
	RiskPhrases    = []string{"hopeless", "worthless", "give up", "can't go on", "suicide", "self-harm"}
	AmbiguousWords = []string{"uncertain", "doubt", "worried", "unprepared"}
)

// StopWords are dropped before keyword ranking.
var StopWords = toSet(
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
	"of", "with", "by", "from", "up", "about", "is", "was", "are", "were",
	"been", "be", "have", "has", "had", "do", "does", "did", "will",
	"would", "could", "should", "may", "might", "can", "diary", "voice",
	"scene", "this", "that", "i", "my", "me",
)

// Category is a named theme with its characteristic words.
type Category struct {
	Name  string
	Words map[string]struct{}
}

// Categories in label tie-break order.
var Categories = []Category{
	{"Work Performance", toSet("work", "project", "deadline", "meeting", "team", "review", "presentation", "client", "office")},
	{"Social Connection", toSet("friends", "family", "conversation", "together", "people", "colleague", "bonding")},
	{"Rest & Recovery", toSet("weekend", "relax", "rest", "sleep", "tired", "recharged", "break", "vacation")},
	{"Health & Wellness", toSet("exercise", "health", "sick", "recover", "energy", "running", "wellness")},
	{"Personal Growth", toSet("learning", "mentor", "creative", "goal", "reflection", "journey", "growth")},
	{"Leisure & Recreation", toSet("beach", "hiking", "music", "concert", "movie", "fun", "entertainment")},
}

// Count returns how many of words occur as substrings of text. Each word
// counts at most once no matter how often it appears.
func Count(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

// ContainsAny reports whether any of words occurs in text.
func ContainsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// MoodScore is the raw positive minus negative hit count on lowercased text.
func MoodScore(lower string) float64 {
	return float64(Count(lower, MoodPositive) - Count(lower, MoodNegative))
}

// CycleScore is the normalized (pos-neg)/(pos+neg) score on lowercased
// text, 0 when nothing matches.
func CycleScore(lower string) float64 {
	pos := Count(lower, CyclePositive)
	neg := Count(lower, CycleNegative)
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
