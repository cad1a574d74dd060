package storage

import (
	"database/sql"
	"errors"
	"time"
)

const runColumns = `id, created_at, updated_at, source, status, record_count, options_json, report_json, error`

// CreateRun inserts a run. Status defaults to queued and timestamps to now.
func (s *Store) CreateRun(r Run) error {
	if r.Status == "" {
		r.Status = RunQueued
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.OptionsJSON == "" {
		r.OptionsJSON = "{}"
	}
	created := formatTime(r.CreatedAt)
	_, err := s.db.Exec(`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, created, created, r.Source, r.Status, r.RecordCount, r.OptionsJSON, r.ReportJSON, r.Error,
	)
	return err
}

func (s *Store) GetRun(id string) (Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

// LatestCompletedRun returns the most recent run that produced a report.
func (s *Store) LatestCompletedRun() (Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs
		WHERE status = ? ORDER BY updated_at DESC, rowid DESC LIMIT 1`, RunCompleted))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

// ListRuns returns runs newest first. ReportJSON is left empty; fetch a single
// run to read its report.
func (s *Store) ListRuns(limit, offset int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, updated_at, source, status, record_count, options_json, '', error
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// MarkRunRunning records that analysis started over n records.
func (s *Store) MarkRunRunning(id string, n int) error {
	res, err := s.db.Exec(`UPDATE runs SET status = ?, record_count = ?, error = '', updated_at = ? WHERE id = ?`,
		RunRunning, n, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// CompleteRun stores the final report.
func (s *Store) CompleteRun(id, reportJSON string) error {
	res, err := s.db.Exec(`UPDATE runs SET status = ?, report_json = ?, error = '', updated_at = ? WHERE id = ?`,
		RunCompleted, reportJSON, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *Store) FailRun(id, errMsg string) error {
	res, err := s.db.Exec(`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		RunFailed, errMsg, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// RequeueRun puts a run back in the queue after a retryable failure.
func (s *Store) RequeueRun(id, errMsg string) error {
	res, err := s.db.Exec(`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		RunQueued, errMsg, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *Store) DeleteRun(id string) error {
	res, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var created, updated string
	if err := sc.Scan(&r.ID, &created, &updated, &r.Source, &r.Status, &r.RecordCount,
		&r.OptionsJSON, &r.ReportJSON, &r.Error); err != nil {
		return Run{}, err
	}
	var err error
	if r.CreatedAt, err = parseTime("created_at", created); err != nil {
		return Run{}, err
	}
	if r.UpdatedAt, err = parseTime("updated_at", updated); err != nil {
		return Run{}, err
	}
	return r, nil
}
