// Package core defines the essential interfaces and data structures that form
// the backbone of the resume queue. These components are designed to be
// abstract, allowing for flexible and decoupled implementations of the
// processing pipeline.
package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// Status is the lifecycle state of a queue job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "inprogress"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status permits no further processing.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusCancelled
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusInProgress, StatusSuccess, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Job is one row in the upload queue: a single uploaded resume waiting for,
// undergoing, or finished with processing.
//
// Source, UploadID and CreatedBy are opaque to the pipeline; they exist for
// caller-side filtering, batch correlation and audit logging only.
type Job struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	FileName        string          `db:"file_name" json:"file_name"`
	FileSize        int64           `db:"file_size" json:"file_size"`
	FilePath        string          `db:"file_path" json:"file_path"`
	Status          Status          `db:"status" json:"status"`
	Source          string          `db:"source" json:"source"`
	UploadID        *uuid.UUID      `db:"upload_id" json:"upload_id,omitempty"`
	CreatedBy       *string         `db:"created_by" json:"created_by,omitempty"`
	WebhookPayload  types.JSONText  `db:"webhook_payload" json:"webhook_payload,omitempty"`
	WebhookResponse types.JSONText  `db:"webhook_response" json:"webhook_response,omitempty"`
	Error           *string         `db:"error" json:"error"`
	ErrorDetails    *string         `db:"error_details" json:"error_details,omitempty"`
	UploadDate      time.Time       `db:"upload_date" json:"upload_date"`
	CompletedDate   *time.Time      `db:"completed_date" json:"completed_date"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// ProcessResult is the outcome of one Processor invocation, returned to the
// blocking caller and embedded in the async entry point's response.
type ProcessResult struct {
	// Job is the finalized row as stored.
	Job *Job `json:"job"`
	// AutomationStatus is the HTTP status code the webhook returned, or nil
	// when dispatch never happened (missing path, unconfigured webhook) or
	// failed at the transport level.
	AutomationStatus *int `json:"automation_status"`
}
