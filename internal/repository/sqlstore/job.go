package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/clinicmatch/internal/models"
)

const jobColumns = `id, type, payload, status, attempts, max_attempts, priority, scheduled_at, next_try_at, last_error, created, updated`

type jobRow struct {
	ID          string         `db:"id"`
	Type        string         `db:"type"`
	Payload     sql.NullString `db:"payload"`
	Status      string         `db:"status"`
	Attempts    int            `db:"attempts"`
	MaxAttempts int            `db:"max_attempts"`
	Priority    int            `db:"priority"`
	ScheduledAt int64          `db:"scheduled_at"`
	NextTryAt   sql.NullInt64  `db:"next_try_at"`
	LastError   string         `db:"last_error"`
	Created     int64          `db:"created"`
	Updated     int64          `db:"updated"`
}

func (r jobRow) model() *models.BackgroundJob {
	j := &models.BackgroundJob{
		ID:          r.ID,
		Type:        r.Type,
		Status:      r.Status,
		Attempts:    r.Attempts,
		MaxAttempts: r.MaxAttempts,
		Priority:    r.Priority,
		ScheduledAt: time.UnixMilli(r.ScheduledAt),
		LastError:   r.LastError,
		Created:     time.UnixMilli(r.Created),
		Updated:     time.UnixMilli(r.Updated),
	}
	if r.Payload.Valid {
		j.Payload = json.RawMessage(r.Payload.String)
	}
	if r.NextTryAt.Valid {
		t := time.UnixMilli(r.NextTryAt.Int64)
		j.NextTryAt = &t
	}
	return j
}

// Enqueue inserts a job into the jobs table and returns the new ID
func (s *Store) Enqueue(ctx context.Context, j *models.BackgroundJob) (string, error) {
	if j == nil {
		return "", fmt.Errorf("job is nil")
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.MaxAttempts == 0 {
		j.MaxAttempts = 5
	}
	if j.ScheduledAt.IsZero() {
		j.ScheduledAt = time.Now()
	}
	var payload *string
	if len(j.Payload) > 0 {
		p := string(j.Payload)
		payload = &p
	}
	ts := now()
	_, err := s.sess().InsertBySql(
		`INSERT INTO jobs (id, type, payload, status, attempts, max_attempts, priority, scheduled_at, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Type, payload, models.JobQueued, j.Attempts, j.MaxAttempts, j.Priority, j.ScheduledAt.UTC().UnixMilli(), ts, ts,
	).ExecContext(ctx)
	if err != nil {
		return "", fmt.Errorf("enqueue failed: %w", err)
	}
	return j.ID, nil
}

// ClaimNext picks the next due job by priority and schedule and flips it to
// running with a conditional update. A running job whose lease expired is
// claimable again. When another worker wins the update the call returns
// (nil, nil) and the caller polls again.
func (s *Store) ClaimNext(ctx context.Context) (*models.BackgroundJob, error) {
	ts := now()
	stale := ts - s.jobLease.Milliseconds()
	var id string
	err := s.sess().SelectBySql(
		`SELECT id FROM jobs
		WHERE (status IN (?, ?) AND (next_try_at IS NULL OR next_try_at <= ?) AND scheduled_at <= ?)
			OR (status = ? AND updated <= ?)
		ORDER BY priority ASC, scheduled_at ASC LIMIT 1`,
		models.JobQueued, models.JobRetry, ts, ts, models.JobRunning, stale,
	).LoadOneContext(ctx, &id)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch next job: %w", err)
	}

	res, err := s.sess().UpdateBySql(
		`UPDATE jobs SET status = ?, updated = ? WHERE id = ? AND (status IN (?, ?) OR (status = ? AND updated <= ?))`,
		models.JobRunning, ts, id, models.JobQueued, models.JobRetry, models.JobRunning, stale,
	).ExecContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim job %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, err
	}

	var row jobRow
	if err := s.sess().SelectBySql(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id).LoadOneContext(ctx, &row); err != nil {
		return nil, fmt.Errorf("load claimed job %s: %w", id, err)
	}
	return row.model(), nil
}

// GetJob returns a job still in the jobs table.
func (s *Store) GetJob(ctx context.Context, id string) (*models.BackgroundJob, error) {
	var row jobRow
	if err := s.sess().SelectBySql(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id).LoadOneContext(ctx, &row); err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return row.model(), nil
}

// UpdateJob updates attempts, status, next_try_at, last_error
func (s *Store) UpdateJob(ctx context.Context, j *models.BackgroundJob) error {
	var nextTry *int64
	if j.NextTryAt != nil {
		v := j.NextTryAt.UTC().UnixMilli()
		nextTry = &v
	}
	_, err := s.sess().UpdateBySql(
		`UPDATE jobs SET status = ?, attempts = ?, next_try_at = ?, last_error = ?, updated = ? WHERE id = ?`,
		j.Status, j.Attempts, nextTry, j.LastError, now(), j.ID,
	).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("update job %s: %w", j.ID, err)
	}
	return nil
}

// MoveToDeadLetter moves a job to dead_letter_jobs and deletes the original
func (s *Store) MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error {
	tx, err := s.sess().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.RollbackUnlessCommitted()

	var payload *string
	if len(j.Payload) > 0 {
		p := string(j.Payload)
		payload = &p
	}
	_, err = tx.InsertBySql(
		`INSERT INTO dead_letter_jobs (id, job_id, type, payload, attempts, last_error, failed_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), j.ID, j.Type, payload, j.Attempts, j.LastError, now(),
	).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	if _, err := tx.DeleteBySql(`DELETE FROM jobs WHERE id = ?`, j.ID).ExecContext(ctx); err != nil {
		return fmt.Errorf("delete job %s: %w", j.ID, err)
	}
	return tx.Commit()
}

// CountDeadLetters returns how many dead-lettered rows exist for jobType.
func (s *Store) CountDeadLetters(ctx context.Context, jobType string) (int, error) {
	var n int
	if err := s.sess().SelectBySql(`SELECT COUNT(1) FROM dead_letter_jobs WHERE type = ?`, jobType).LoadOneContext(ctx, &n); err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return n, nil
}
