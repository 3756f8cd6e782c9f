package async

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teranos/dirjobs/errors"
	"github.com/teranos/dirjobs/pulse"
)

// HistoryRecorder receives one record per finished job
type HistoryRecorder interface {
	Record(ctx context.Context, rec HistoryRecord) error
}

// HistoryRecord is a finished job as stored in job_history
type HistoryRecord struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	JobType        string    `json:"job_type"`
	Status         JobStatus `json:"status"`
	Result         string    `json:"result"`          // scheduler-facing result
	ExternalResult string    `json:"external_result"` // real outcome
	Message        string    `json:"message,omitempty"`
	LockIDs        []string  `json:"lock_ids,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at"`
	StartedAt      time.Time `json:"started_at,omitempty"` // zero when cancelled before admission
	FinishedAt     time.Time `json:"finished_at"`
}

// Duration returns how long the job ran, or zero if it never started
func (r HistoryRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// historyRecordFor builds the record for a finished job
func historyRecordFor(job *Job, returned, stored pulse.Result) HistoryRecord {
	return HistoryRecord{
		ID:             job.ID,
		Name:           job.Name,
		JobType:        job.Type,
		Status:         statusFor(stored),
		Result:         returned.Kind.String(),
		ExternalResult: stored.Kind.String(),
		Message:        stored.Message,
		LockIDs:        job.LockIDs,
		SubmittedAt:    job.SubmittedAt,
		StartedAt:      job.StartedAt,
		FinishedAt:     job.FinishedAt,
	}
}

// HistoryStore persists finished jobs to SQLite
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore creates a store on a migrated database
func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Record inserts rec, replacing any record with the same id
func (s *HistoryStore) Record(ctx context.Context, rec HistoryRecord) error {
	lockIDs, err := json.Marshal(rec.LockIDs)
	if err != nil {
		return errors.Wrap(err, "failed to marshal lock ids")
	}

	query := `
		INSERT OR REPLACE INTO job_history (
			id, name, job_type, status,
			result, external_result, message, lock_ids,
			submitted_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	message := sql.NullString{String: rec.Message, Valid: rec.Message != ""}
	startedAt := sql.NullTime{Time: rec.StartedAt, Valid: !rec.StartedAt.IsZero()}

	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Name,
		rec.JobType,
		string(rec.Status),
		rec.Result,
		rec.ExternalResult,
		message,
		string(lockIDs),
		rec.SubmittedAt,
		startedAt,
		rec.FinishedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to record job %s", rec.ID)
	}
	return nil
}

// Get returns the record with id
func (s *HistoryStore) Get(ctx context.Context, id string) (*HistoryRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM job_history WHERE id = ?`, id)
	rec, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Newf("job not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job history")
	}
	return rec, nil
}

// List returns up to limit records, newest first. An empty status lists all.
func (s *HistoryStore) List(ctx context.Context, status JobStatus, limit int) ([]*HistoryRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + historyColumns + ` FROM job_history`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY finished_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list job history")
	}
	defer rows.Close()

	var records []*HistoryRecord
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job history")
		}
		records = append(records, rec)
	}
	return records, errors.Wrap(rows.Err(), "failed to iterate job history")
}

// Prune deletes records finished before cutoff and returns how many were removed
func (s *HistoryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_history WHERE finished_at < ?`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prune job history")
	}
	return res.RowsAffected()
}

const historyColumns = `id, name, job_type, status, result, external_result,
	message, lock_ids, submitted_at, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHistory(row rowScanner) (*HistoryRecord, error) {
	var (
		rec       HistoryRecord
		status    string
		message   sql.NullString
		lockIDs   sql.NullString
		startedAt sql.NullTime
	)
	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.JobType,
		&status,
		&rec.Result,
		&rec.ExternalResult,
		&message,
		&lockIDs,
		&rec.SubmittedAt,
		&startedAt,
		&rec.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = JobStatus(status)
	rec.Message = message.String
	if startedAt.Valid {
		rec.StartedAt = startedAt.Time
	}
	if lockIDs.Valid && lockIDs.String != "" {
		if err := json.Unmarshal([]byte(lockIDs.String), &rec.LockIDs); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal lock ids")
		}
	}
	return &rec, nil
}
