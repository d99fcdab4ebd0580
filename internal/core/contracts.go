package core

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrJobNotFound is returned by JobStore lookups for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// ErrNotInProgress is returned by JobStore.Finalize when the row left the
// inprogress state before the finalize landed, typically because an operator
// cancelled the job while its webhook call was in flight. The processor's
// result is dropped in that case; the cancel wins.
var ErrNotInProgress = errors.New("job is no longer in progress")

// ErrInvalidTransition is returned for operator actions (cancel, retry) whose
// source state does not permit them.
var ErrInvalidTransition = errors.New("invalid status transition")

// NewJob carries the caller-supplied fields of a job to be inserted.
// WebhookPayload optionally pre-seeds the row's payload column; the
// processor overwrites it with the payload actually dispatched.
type NewJob struct {
	FileName       string
	FileSize       int64
	FilePath       string
	Status         Status
	Source         string
	UploadID       *uuid.UUID
	CreatedBy      *string
	WebhookPayload []byte
}

// Finalization is the terminal update applied to an inprogress job.
type Finalization struct {
	Status          Status // StatusSuccess or StatusError
	Error           *string
	ErrorDetails    *string
	WebhookResponse []byte
	CompletedDate   time.Time
}

// JobFilter narrows JobStore.List results. Zero values match everything.
type JobFilter struct {
	Status Status
	Source string
	Limit  int
}

// JobStore is the durable record of queue jobs and the single source of
// truth for the state machine. Only ClaimNextQueued may move a row out of
// queued; everything else operates on rows it already owns or performs the
// externally-driven operator transitions.
type JobStore interface {
	// Insert creates a new row and returns it as stored.
	Insert(ctx context.Context, job NewJob) (*Job, error)

	// ClaimNextQueued atomically selects the oldest queued row, marks it
	// inprogress and returns it. It returns (nil, nil) when no queued row
	// exists; concurrent callers each receive a distinct row or nothing.
	ClaimNextQueued(ctx context.Context) (*Job, error)

	// RecordPayload persists the exact webhook payload before dispatch so a
	// crash mid-dispatch still leaves a forensic record.
	RecordPayload(ctx context.Context, id uuid.UUID, payload []byte) error

	// Finalize applies a terminal status to a row still in inprogress. It
	// returns ErrNotInProgress if the row was moved elsewhere concurrently.
	Finalize(ctx context.Context, id uuid.UUID, fin Finalization) (*Job, error)

	// GetByID returns a row or ErrJobNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)

	// List returns rows matching the filter, newest first.
	List(ctx context.Context, filter JobFilter) ([]Job, error)

	// Cancel moves a queued or inprogress row to cancelled.
	Cancel(ctx context.Context, id uuid.UUID) (*Job, error)

	// Requeue flips an error (or still-queued) row back to queued so it
	// re-enters the normal claim flow. This is a plain update, not a claim.
	Requeue(ctx context.Context, id uuid.UUID) (*Job, error)
}

// FileSource yields stored file bytes by path. Implemented over object
// storage; the queue only needs get-by-path semantics.
type FileSource interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// WebhookResult is the external processor's reply to a dispatch.
type WebhookResult struct {
	StatusCode int
	Body       string
}

// WebhookSender performs the single synchronous POST to the configured
// processing endpoint. A non-nil error means the request never completed at
// the transport level (timeout, DNS, refused connection); non-2xx replies
// come back as a WebhookResult and are classified by the caller.
type WebhookSender interface {
	Send(ctx context.Context, url string, payload []byte) (*WebhookResult, error)
}

// WebhookConfig resolves the processing endpoint at dispatch time. It reads
// through to the settings store so tests and operators can substitute the
// endpoint without restarting.
type WebhookConfig interface {
	WebhookURL(ctx context.Context) (string, error)
}

// QueueEvent is the lightweight change notification published for UI
// listeners.
type QueueEvent struct {
	Event string     `json:"event"`
	JobID *uuid.UUID `json:"job_id,omitempty"`
}

// Notifier publishes queue-changed events. Publishing is best-effort: a
// failure must never affect a job's already-finalized state, so callers log
// returned errors and move on.
type Notifier interface {
	Publish(ctx context.Context, event QueueEvent) error
}
