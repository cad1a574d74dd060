package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is the wire form of a record as it appears in input files and API
// request bodies.
type Entry struct {
	EntryID         string `json:"entry_id,omitempty" yaml:"entry_id,omitempty"`
	ID              string `json:"id,omitempty" yaml:"id,omitempty"`
	Date            string `json:"date" yaml:"date"`
	Text            string `json:"text,omitempty" yaml:"text,omitempty"`
	VoiceTranscript string `json:"voice_transcript,omitempty" yaml:"voice_transcript,omitempty"`
	ImageCaption    string `json:"image_caption,omitempty" yaml:"image_caption,omitempty"`
}

// Record converts the wire entry into an unprepared record. entry_id wins
// over id when both are set.
func (e Entry) Record() Record {
	id := e.EntryID
	if id == "" {
		id = e.ID
	}
	return Record{
		ID:           id,
		RawDate:      e.Date,
		Diary:        e.Text,
		Voice:        e.VoiceTranscript,
		ImageCaption: e.ImageCaption,
	}
}

// EntryFromRecord is the inverse of Entry.Record.
func EntryFromRecord(r Record) Entry {
	date := r.RawDate
	if !r.Date.IsZero() {
		date = r.DateString()
	}
	return Entry{
		EntryID:         r.ID,
		Date:            date,
		Text:            r.Diary,
		VoiceTranscript: r.Voice,
		ImageCaption:    r.ImageCaption,
	}
}

// Records converts a batch of wire entries.
func Records(entries []Entry) []Record {
	out := make([]Record, len(entries))
	for i, e := range entries {
		out[i] = e.Record()
	}
	return out
}

// Format selects the input decoder.
type Format string

const (
	FormatAuto Format = ""
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatAuto
	}
}

// LoadFile reads and decodes a record file. The records are returned
// unprepared; pass them to Prepare.
func LoadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	records, err := Decode(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return records, nil
}

// Decode parses a JSON array or YAML sequence of entries. FormatAuto sniffs
// the first non-space byte: '[' is JSON, anything else YAML.
func Decode(data []byte, format Format) ([]Record, error) {
	if format == FormatAuto {
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			format = FormatJSON
		} else {
			format = FormatYAML
		}
	}

	var entries []Entry
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, &InputError{Index: -1, Err: fmt.Errorf("parsing JSON: %w", err)}
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, &InputError{Index: -1, Err: fmt.Errorf("parsing YAML: %w", err)}
		}
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
	return Records(entries), nil
}
