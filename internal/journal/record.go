// Package journal holds the data model shared by every analysis stage: the
// input records, the structures each stage derives from them, and the error
// taxonomy used to report bad input, bad configuration and encoder failures.
package journal

import (
	"strings"
	"time"
)

// DateLayout is the calendar date format used for input and output dates.
const DateLayout = "2006-01-02"

// Modality prefixes used when building CombinedText, in join order.
const (
	DiaryPrefix = "Diary: "
	VoicePrefix = "Voice: "
	ScenePrefix = "Scene: "
)

// Unassigned marks a record that has not been clustered yet.
const Unassigned = -1

// Record is one journal entry. Date order across a slice of records is an
// invariant established by Prepare and relied on by every temporal stage.
type Record struct {
	ID           string
	Date         time.Time
	RawDate      string
	Diary        string
	Voice        string
	ImageCaption string

	// Derived by Prepare.
	CombinedText string
	Week         int

	// Attached by the vectorizer.
	Embedding []float64

	// Attached by the clusterer.
	ClusterID int
}

// DateString returns the record date in DateLayout.
func (r Record) DateString() string {
	return r.Date.Format(DateLayout)
}

// CombinedText joins the present modalities with their labelled prefixes in
// diary, voice, image order. Blank modalities are skipped without a
// placeholder, so a record with no text yields "".
func CombinedText(r Record) string {
	parts := make([]string, 0, 3)
	if strings.TrimSpace(r.Diary) != "" {
		parts = append(parts, DiaryPrefix+r.Diary)
	}
	if strings.TrimSpace(r.Voice) != "" {
		parts = append(parts, VoicePrefix+r.Voice)
	}
	if strings.TrimSpace(r.ImageCaption) != "" {
		parts = append(parts, ScenePrefix+r.ImageCaption)
	}
	return strings.Join(parts, " ")
}

// LowerText returns the lowercased combined text, the form every lexicon
// lookup operates on.
func (r Record) LowerText() string {
	return strings.ToLower(r.CombinedText)
}

// WeekNumber returns the 1-based 7-day bin of date relative to start.
func WeekNumber(start, date time.Time) int {
	days := int(dayStart(date).Sub(dayStart(start)).Hours() / 24)
	return days/7 + 1
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Embeddings returns the embedding of every record, in record order.
func Embeddings(records []Record) [][]float64 {
	out := make([][]float64, len(records))
	for i := range records {
		out[i] = records[i].Embedding
	}
	return out
}
