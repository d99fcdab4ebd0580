// Package storage provides the Postgres-backed stores for the resume queue
// and the local filesystem source for uploaded files.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	// import db drivers
	_ "github.com/lib/pq"

	"github.com/hirewire/resumeq/internal/core"
)

const jobColumns = `id, file_name, file_size, file_path, status, source, upload_id, created_by,
	webhook_payload, webhook_response, error, error_details, upload_date, completed_date, updated_at`

type queueStore struct {
	db *sqlx.DB
}

// NewQueueStore creates a core.JobStore backed by the upload_queue table.
func NewQueueStore(db *sqlx.DB) core.JobStore {
	return &queueStore{db: db}
}

// Insert creates a new queue row and returns it as stored.
func (s *queueStore) Insert(ctx context.Context, job core.NewJob) (*core.Job, error) {
	status := job.Status
	if status == "" {
		status = core.StatusQueued
	}
	if !status.Valid() {
		return nil, fmt.Errorf("invalid job status %q", status)
	}

	// lib/pq encodes []byte as bytea, which the jsonb column rejects, so
	// the optional payload travels as text.
	var payload *string
	if len(job.WebhookPayload) > 0 {
		v := string(job.WebhookPayload)
		payload = &v
	}

	query := `
		INSERT INTO upload_queue (id, file_name, file_size, file_path, status, source, upload_id, created_by, webhook_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + jobColumns

	var row core.Job
	err := s.db.GetContext(ctx, &row, query,
		uuid.New(), job.FileName, job.FileSize, job.FilePath, status, job.Source, job.UploadID, job.CreatedBy, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to insert queue job: %w", err)
	}
	return &row, nil
}

// ClaimNextQueued atomically claims the oldest queued row. The locking
// subquery skips rows held by concurrent claimers, so each caller gets a
// distinct row or nothing; (nil, nil) means the queue is empty.
func (s *queueStore) ClaimNextQueued(ctx context.Context) (*core.Job, error) {
	query := `
		UPDATE upload_queue
		SET status = $1, updated_at = now()
		WHERE id = (
			SELECT id FROM upload_queue
			WHERE status = $2
			ORDER BY upload_date ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + jobColumns

	var row core.Job
	err := s.db.GetContext(ctx, &row, query, core.StatusInProgress, core.StatusQueued)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim queued job: %w", err)
	}
	return &row, nil
}

// RecordPayload persists the exact webhook payload before dispatch.
func (s *queueStore) RecordPayload(ctx context.Context, id uuid.UUID, payload []byte) error {
	query := `UPDATE upload_queue SET webhook_payload = $2, updated_at = now() WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id, string(payload))
	if err != nil {
		return fmt.Errorf("failed to record webhook payload: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrJobNotFound
	}
	return nil
}

// Finalize applies a terminal status to a row that is still inprogress.
// The status guard makes the write a compare-and-swap: a concurrent
// operator cancel wins and the caller gets ErrNotInProgress.
func (s *queueStore) Finalize(ctx context.Context, id uuid.UUID, fin core.Finalization) (*core.Job, error) {
	if fin.Status != core.StatusSuccess && fin.Status != core.StatusError {
		return nil, fmt.Errorf("invalid finalize status %q", fin.Status)
	}

	query := `
		UPDATE upload_queue
		SET status = $2, error = $3, error_details = $4, webhook_response = $5,
		    completed_date = $6, updated_at = now()
		WHERE id = $1 AND status = $7
		RETURNING ` + jobColumns

	// lib/pq encodes []byte as bytea, which jsonb columns reject; send text.
	var resp *string
	if len(fin.WebhookResponse) > 0 {
		v := string(fin.WebhookResponse)
		resp = &v
	}

	var row core.Job
	err := s.db.GetContext(ctx, &row, query,
		id, fin.Status, fin.Error, fin.ErrorDetails, resp, fin.CompletedDate, core.StatusInProgress)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, core.ErrNotInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("failed to finalize job: %w", err)
	}
	return &row, nil
}

// GetByID returns a single queue row.
func (s *queueStore) GetByID(ctx context.Context, id uuid.UUID) (*core.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM upload_queue WHERE id = $1`

	var row core.Job
	err := s.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &row, nil
}

// List returns rows matching the filter, newest first.
func (s *queueStore) List(ctx context.Context, filter core.JobFilter) ([]core.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM upload_queue WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		query += fmt.Sprintf(" AND source = $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY upload_date DESC LIMIT $%d", len(args))

	jobs := []core.Job{}
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Cancel moves a queued or inprogress row to cancelled. This is the
// operator-driven terminal transition; it never goes through the claimer.
func (s *queueStore) Cancel(ctx context.Context, id uuid.UUID) (*core.Job, error) {
	query := `
		UPDATE upload_queue
		SET status = $2, completed_date = $3, updated_at = now()
		WHERE id = $1 AND status IN ($4, $5)
		RETURNING ` + jobColumns

	var row core.Job
	err := s.db.GetContext(ctx, &row, query,
		id, core.StatusCancelled, time.Now().UTC(), core.StatusQueued, core.StatusInProgress)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, core.ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel job: %w", err)
	}
	return &row, nil
}

// Requeue flips an error or queued row back to queued for another attempt.
// Terminal fields and the previous attempt's webhook columns are cleared so
// the row re-enters the normal flow indistinguishable from a fresh insert.
func (s *queueStore) Requeue(ctx context.Context, id uuid.UUID) (*core.Job, error) {
	query := `
		UPDATE upload_queue
		SET status = $2, error = NULL, error_details = NULL, completed_date = NULL,
		    webhook_payload = NULL, webhook_response = NULL, updated_at = now()
		WHERE id = $1 AND status IN ($3, $4)
		RETURNING ` + jobColumns

	var row core.Job
	err := s.db.GetContext(ctx, &row, query,
		id, core.StatusQueued, core.StatusError, core.StatusQueued)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, core.ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("failed to requeue job: %w", err)
	}
	return &row, nil
}
