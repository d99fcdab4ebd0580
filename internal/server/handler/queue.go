package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hirewire/resumeq/internal/core"
	"github.com/hirewire/resumeq/internal/jobs"
	"github.com/hirewire/resumeq/internal/server/middleware"
)

// QueueHandler serves the queue entry points plus job inspection and the
// operator transitions.
type QueueHandler struct {
	processor *jobs.Processor
	store     core.JobStore
	notifier  core.Notifier
	logger    *slog.Logger
}

// NewQueueHandler creates a queue handler with its collaborators.
func NewQueueHandler(processor *jobs.Processor, store core.JobStore, notifier core.Notifier, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{
		processor: processor,
		store:     store,
		notifier:  notifier,
		logger:    logger,
	}
}

// processedResponse is the envelope shared by both entry points.
type processedResponse struct {
	Job              *core.Job `json:"job"`
	AutomationStatus *int      `json:"automation_status"`
}

// ProcessNext is the async entry point, invoked by the external scheduler.
// Each call performs at most one claim-and-process cycle. A completed
// attempt is always a 200, whether or not a job existed or succeeded; only
// a store failure produces a 500.
func (h *QueueHandler) ProcessNext(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.processor.ProcessNext(r.Context())
	if err != nil {
		h.logger.Error("queue poll failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
			"stack": fmt.Sprintf("%+v", err),
		})
		return
	}

	if !outcome.Claimed {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No queued jobs"})
		return
	}

	writeJSON(w, http.StatusOK, processedResponse{
		Job:              outcome.Result.Job,
		AutomationStatus: outcome.Result.AutomationStatus,
	})
}

// blockingRequest is the body accepted by the blocking entry point.
type blockingRequest struct {
	FileName       string          `json:"file_name"`
	FileSize       int64           `json:"file_size"`
	Status         string          `json:"status"`
	Source         string          `json:"source"`
	UploadID       *uuid.UUID      `json:"upload_id"`
	FilePath       string          `json:"file_path"`
	WebhookPayload json.RawMessage `json:"webhook_payload"`
}

// SubmitBlocking inserts a job and processes it inline, returning the
// processor's outcome as the HTTP outcome. The caller is waiting on this
// specific job, so a job failure is a 500 to them even though the same row
// processed asynchronously would travel inside a 200 envelope.
func (h *QueueHandler) SubmitBlocking(w http.ResponseWriter, r *http.Request) {
	var req blockingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.FilePath == "" {
		writeError(w, http.StatusBadRequest, "file_path is required")
		return
	}

	source := req.Source
	if source == "" {
		source = "blocking"
	}

	newJob := core.NewJob{
		FileName:       req.FileName,
		FileSize:       req.FileSize,
		FilePath:       req.FilePath,
		Source:         source,
		UploadID:       req.UploadID,
		WebhookPayload: req.WebhookPayload,
	}
	if userID := middleware.UserID(r.Context()); userID != "" {
		newJob.CreatedBy = &userID
	}

	result, err := h.processor.SubmitAndProcess(r.Context(), newJob)
	if err != nil {
		h.logger.Error("blocking job failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := processedResponse{Job: result.Job, AutomationStatus: result.AutomationStatus}
	if result.Job.Status == core.StatusError {
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJob returns a single job row.
func (h *QueueHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	job, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*core.Job{"job": job})
}

// ListJobs returns queue rows filtered by status and source.
func (h *QueueHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := core.JobFilter{
		Status: core.Status(r.URL.Query().Get("status")),
		Source: r.URL.Query().Get("source"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	list, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]core.Job{"jobs": list})
}

// CancelJob is the operator-driven terminal transition.
func (h *QueueHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	job, err := h.store.Cancel(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.logger.Info("job cancelled", "job_id", job.ID, "by", middleware.UserID(r.Context()))
	h.publishChange(r, job.ID)
	writeJSON(w, http.StatusOK, map[string]*core.Job{"job": job})
}

// RetryJob flips a failed job back to queued so it re-enters the claim
// flow. This is a plain store update; the claimer is never involved.
func (h *QueueHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	job, err := h.store.Requeue(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.logger.Info("job requeued", "job_id", job.ID, "by", middleware.UserID(r.Context()))
	h.publishChange(r, job.ID)
	writeJSON(w, http.StatusOK, map[string]*core.Job{"job": job})
}

func (h *QueueHandler) jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *QueueHandler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, core.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("queue store error", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *QueueHandler) publishChange(r *http.Request, id uuid.UUID) {
	if h.notifier == nil {
		return
	}
	event := core.QueueEvent{Event: "queue.updated", JobID: &id}
	if err := h.notifier.Publish(r.Context(), event); err != nil {
		h.logger.Warn("failed to publish queue event", "error", err)
	}
}
