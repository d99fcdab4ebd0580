// Package jobs implements the resume-processing pipeline: claiming queued
// uploads, pushing them through the external webhook, and finalizing their
// state.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hirewire/resumeq/internal/config"
	"github.com/hirewire/resumeq/internal/core"
	"github.com/hirewire/resumeq/internal/webhook"
)

// msgMissingFilePath is the fixed error recorded for jobs inserted without a
// storage path. Such jobs fail before any file retrieval is attempted.
const msgMissingFilePath = "Invalid file path"

// webhookRecord is the shape persisted into webhook_response.
type webhookRecord struct {
	Status  *int   `json:"status,omitempty"`
	Message string `json:"message"`
}

// Processor moves one claimed job through its full lifecycle: validation,
// file retrieval, webhook dispatch, finalization and change notification.
// It never retries; a failed job stays in error until an operator requeues
// it.
type Processor struct {
	cfg      *config.Config
	store    core.JobStore
	files    core.FileSource
	sender   core.WebhookSender
	endpoint core.WebhookConfig
	notifier core.Notifier
	logger   *slog.Logger
}

// NewProcessor creates a Processor with its collaborators.
func NewProcessor(cfg *config.Config, store core.JobStore, files core.FileSource, sender core.WebhookSender, endpoint core.WebhookConfig, notifier core.Notifier, logger *slog.Logger) *Processor {
	if cfg == nil {
		panic("config cannot be nil")
	}
	if store == nil {
		panic("job store cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Processor{
		cfg:      cfg,
		store:    store,
		files:    files,
		sender:   sender,
		endpoint: endpoint,
		notifier: notifier,
		logger:   logger,
	}
}

// Process runs the pipeline for a job that is already inprogress, owned by
// this invocation. The returned error is reserved for failures the pipeline
// cannot absorb into the job row (store outages, unreadable files); job
// failures such as a rejected dispatch come back as a finalized error row
// with a nil error.
func (p *Processor) Process(ctx context.Context, job *core.Job) (*core.ProcessResult, error) {
	log := p.logger.With("job_id", job.ID, "source", job.Source)
	log.Info("processing queue job", "file", job.FileName)

	// A job without a storage path fails fast; no retrieval is attempted.
	if strings.TrimSpace(job.FilePath) == "" {
		details := fmt.Sprintf("job %s has no file_path; nothing to process", job.ID)
		return p.finalizeError(ctx, job, msgMissingFilePath, details, nil, nil)
	}

	// Buffer the file for the duration of dispatch. Resumes are bounded in
	// size by the upload path, so whole-file buffering is acceptable here.
	data, err := p.fetchFile(ctx, job.FilePath)
	if err != nil {
		log.Error("failed to fetch job file", "path", job.FilePath, "error", err)
		result, finErr := p.finalizeError(ctx, job, "File retrieval failed", err.Error(), nil, nil)
		if finErr != nil {
			return nil, finErr
		}
		// The row is terminal, but retrieval failures still surface to the
		// caller as a request failure.
		return result, fmt.Errorf("failed to fetch file for job %s: %w", job.ID, err)
	}
	log.Debug("fetched job file", "path", job.FilePath, "bytes", len(data))

	// An unconfigured or malformed endpoint is not a job failure: the file
	// has been accepted and queued correctly, so the job succeeds with a
	// skip marker instead.
	endpoint, err := p.endpoint.WebhookURL(ctx)
	if err != nil {
		log.Warn("webhook settings lookup failed, using fallback", "error", err)
	}
	if !validWebhookURL(endpoint) {
		log.Info("webhook not configured, skipping dispatch")
		record := mustMarshal(webhookRecord{Message: "skipped: webhook not configured"})
		return p.finalizeSuccess(ctx, job, record, nil)
	}

	payload, err := webhook.BuildPayload(job, p.publicFileURL(job.FilePath))
	if err != nil {
		return nil, fmt.Errorf("failed to build payload for job %s: %w", job.ID, err)
	}

	// Persist the exact payload before sending so a crash mid-dispatch
	// still leaves a forensic record.
	if err := p.store.RecordPayload(ctx, job.ID, payload); err != nil {
		return nil, fmt.Errorf("failed to record payload for job %s: %w", job.ID, err)
	}

	reply, err := p.sender.Send(ctx, endpoint, payload)
	if err != nil {
		log.Error("webhook dispatch failed", "error", err)
		record := mustMarshal(webhookRecord{Message: err.Error()})
		return p.finalizeError(ctx, job, shortTransportError(err), err.Error(), record, nil)
	}

	record := mustMarshal(webhookRecord{Status: &reply.StatusCode, Message: reply.Body})
	if reply.StatusCode < 200 || reply.StatusCode >= 300 {
		log.Warn("webhook rejected job", "status", reply.StatusCode)
		msg := fmt.Sprintf("Webhook responded with status %d", reply.StatusCode)
		return p.finalizeError(ctx, job, msg, reply.Body, record, &reply.StatusCode)
	}

	log.Info("webhook accepted job", "status", reply.StatusCode)
	return p.finalizeSuccess(ctx, job, record, &reply.StatusCode)
}

func (p *Processor) fetchFile(ctx context.Context, path string) ([]byte, error) {
	rc, err := p.files.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func (p *Processor) finalizeSuccess(ctx context.Context, job *core.Job, response []byte, status *int) (*core.ProcessResult, error) {
	return p.finalize(ctx, job, core.Finalization{
		Status:          core.StatusSuccess,
		WebhookResponse: response,
		CompletedDate:   time.Now().UTC(),
	}, status)
}

func (p *Processor) finalizeError(ctx context.Context, job *core.Job, errMsg, details string, response []byte, status *int) (*core.ProcessResult, error) {
	return p.finalize(ctx, job, core.Finalization{
		Status:          core.StatusError,
		Error:           &errMsg,
		ErrorDetails:    &details,
		WebhookResponse: response,
		CompletedDate:   time.Now().UTC(),
	}, status)
}

// finalize applies the terminal state and fires the change notification.
// A concurrent operator cancel wins the compare-and-swap; the processor's
// outcome is dropped with a warning and the stored row is returned as-is.
func (p *Processor) finalize(ctx context.Context, job *core.Job, fin core.Finalization, status *int) (*core.ProcessResult, error) {
	updated, err := p.store.Finalize(ctx, job.ID, fin)
	if errors.Is(err, core.ErrNotInProgress) {
		p.logger.Warn("dropping processing result, job left inprogress concurrently", "job_id", job.ID)
		current, getErr := p.store.GetByID(ctx, job.ID)
		if getErr != nil {
			return nil, getErr
		}
		p.notify(ctx, current.ID)
		return &core.ProcessResult{Job: current, AutomationStatus: status}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to finalize job %s: %w", job.ID, err)
	}

	p.notify(ctx, updated.ID)
	return &core.ProcessResult{Job: updated, AutomationStatus: status}, nil
}

// notify publishes the queue-changed event. Best effort only: failures are
// logged and never touch the already-finalized row.
func (p *Processor) notify(ctx context.Context, jobID uuid.UUID) {
	if p.notifier == nil {
		return
	}
	event := core.QueueEvent{Event: "queue.updated", JobID: &jobID}
	if err := p.notifier.Publish(ctx, event); err != nil {
		p.logger.Warn("failed to publish queue event", "error", err)
	}
}

func (p *Processor) publicFileURL(path string) string {
	base := strings.TrimRight(p.cfg.PublicBaseURL, "/")
	return base + "/api/v1/files/" + url.PathEscape(strings.TrimPrefix(path, "/"))
}

func validWebhookURL(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func shortTransportError(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 && idx+2 < len(msg) {
		return "Webhook request failed: " + msg[idx+2:]
	}
	return "Webhook request failed: " + msg
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
