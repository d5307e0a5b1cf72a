// Package queue implements a durable, at-least-once job queue for bill
// ingestion on top of the application database. Jobs survive restarts;
// failed jobs are redelivered with exponential backoff up to a bounded
// number of attempts, after which they are parked as dead.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Job statuses
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDead    = "dead"
)

// Job is one bill ingestion work unit.
type Job struct {
	ID          int64
	BillID      int64
	StoreID     string
	UserID      string
	StorageKey  string
	Attempts    int
	MaxAttempts int
}

// Queue is a sqlite-backed work queue. Multiple worker instances may claim
// concurrently; the claim update is atomic so a job is delivered to one
// worker at a time (but may be redelivered after a Nack — consumers must
// tolerate at-least-once semantics).
type Queue struct {
	db          *sql.DB
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
}

// New creates a queue. maxAttempts bounds redeliveries (attempts in total);
// baseDelay seeds the exponential backoff (baseDelay, 2x, 4x, ...).
func New(db *sql.DB, maxAttempts int, baseDelay time.Duration, logger *zap.Logger) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 5 * time.Second
	}
	return &Queue{
		db:          db,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger,
	}
}

// Enqueue adds a job, immediately claimable.
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	now := time.Now().UTC()
	result, err := q.db.ExecContext(ctx, `
		INSERT INTO ingest_jobs (
			bill_id, store_id, user_id, storage_key,
			status, attempts, max_attempts, next_attempt_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?)
	`, job.BillID, job.StoreID, job.UserID, job.StorageKey,
		StatusQueued, q.maxAttempts, now, now, now)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get job id: %w", err)
	}
	job.ID = id
	job.MaxAttempts = q.maxAttempts

	q.logger.Info("Job enqueued",
		zap.Int64("job_id", id),
		zap.Int64("bill_id", job.BillID),
		zap.String("store_id", job.StoreID))
	return nil
}

// Claim atomically takes the oldest due queued job and marks it running,
// incrementing its attempt counter. Returns (nil, nil) when nothing is due.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	var job Job
	err := q.db.QueryRowContext(ctx, `
		UPDATE ingest_jobs
		SET status = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = (
			SELECT id FROM ingest_jobs
			WHERE status = ? AND next_attempt_at <= ?
			ORDER BY next_attempt_at, id
			LIMIT 1
		)
		RETURNING id, bill_id, store_id, user_id, storage_key, attempts, max_attempts
	`, StatusRunning, time.Now().UTC(), StatusQueued, time.Now().UTC()).Scan(
		&job.ID, &job.BillID, &job.StoreID, &job.UserID, &job.StorageKey,
		&job.Attempts, &job.MaxAttempts,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return &job, nil
}

// Ack removes a completed job. Completed jobs are not retained; dead jobs
// are, for operator inspection.
func (q *Queue) Ack(ctx context.Context, jobID int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM ingest_jobs WHERE id = ?`, jobID); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// Nack reports a failed attempt. Jobs with attempts remaining are requeued
// with exponential backoff; exhausted jobs are parked dead. The returned
// bool is true when the job will be redelivered.
func (q *Queue) Nack(ctx context.Context, job *Job, cause error) (bool, error) {
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}

	if job.Attempts >= job.MaxAttempts {
		_, err := q.db.ExecContext(ctx,
			`UPDATE ingest_jobs SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			StatusDead, errMsg, time.Now().UTC(), job.ID)
		if err != nil {
			return false, fmt.Errorf("failed to mark job dead: %w", err)
		}
		q.logger.Warn("Job exhausted retries",
			zap.Int64("job_id", job.ID),
			zap.Int64("bill_id", job.BillID),
			zap.Int("attempts", job.Attempts),
			zap.String("error", errMsg))
		return false, nil
	}

	delay := q.backoff(job.Attempts)
	_, err := q.db.ExecContext(ctx, `
		UPDATE ingest_jobs
		SET status = ?, last_error = ?, next_attempt_at = ?, updated_at = ?
		WHERE id = ?
	`, StatusQueued, errMsg, time.Now().UTC().Add(delay), time.Now().UTC(), job.ID)
	if err != nil {
		return false, fmt.Errorf("failed to requeue job: %w", err)
	}

	q.logger.Info("Job requeued",
		zap.Int64("job_id", job.ID),
		zap.Int64("bill_id", job.BillID),
		zap.Int("attempts", job.Attempts),
		zap.Duration("delay", delay),
		zap.String("error", errMsg))
	return true, nil
}

// backoff returns baseDelay * 2^(attempts-1): 5s, 10s, 20s with defaults.
func (q *Queue) backoff(attempts int) time.Duration {
	delay := q.baseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	return delay
}
