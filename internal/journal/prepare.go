package journal

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ParseDate accepts a calendar date (2006-01-02) or a full RFC 3339
// timestamp. Timestamps are truncated to their calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return dayStart(t), nil
}

// Prepare validates records and returns a new slice sorted by date with
// CombinedText, Week and an unassigned ClusterID filled in. Every invalid
// record is reported; the returned error joins one InputError per problem.
// The input slice is not modified.
func Prepare(records []Record) ([]Record, error) {
	if len(records) == 0 {
		return nil, &InputError{Index: -1, Err: ErrEmptyDataset}
	}

	out := make([]Record, len(records))
	seen := make(map[string]int, len(records))
	var errs []error

	for i, r := range records {
		r.ID = strings.TrimSpace(r.ID)
		if r.ID == "" {
			errs = append(errs, &InputError{Index: i, Err: ErrMissingID})
		} else if first, ok := seen[r.ID]; ok {
			errs = append(errs, &InputError{Index: i, RecordID: r.ID,
				Err: fmt.Errorf("%w (first at record %d)", ErrDuplicateID, first)})
		} else {
			seen[r.ID] = i
		}

		if r.Date.IsZero() {
			d, err := ParseDate(r.RawDate)
			if err != nil {
				errs = append(errs, &InputError{Index: i, RecordID: r.ID, Err: err})
			}
			r.Date = d
		} else {
			r.Date = dayStart(r.Date)
		}
		if r.RawDate == "" && !r.Date.IsZero() {
			r.RawDate = r.Date.Format(DateLayout)
		}

		r.CombinedText = CombinedText(r)
		r.ClusterID = Unassigned
		r.Embedding = nil
		out[i] = r
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	slices.SortStableFunc(out, func(a, b Record) int {
		return a.Date.Compare(b.Date)
	})

	start := out[0].Date
	for i := range out {
		out[i].Week = WeekNumber(start, out[i].Date)
	}
	return out, nil
}
