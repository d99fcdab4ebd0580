// Package webhook builds processing payloads and delivers them to the
// configured external resume processor.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hirewire/resumeq/internal/core"
)

// maxResponseBytes bounds how much of the processor's reply is retained on
// the job row.
const maxResponseBytes = 64 * 1024

// Payload is the JSON body sent to the external processor for one job.
type Payload struct {
	FileURL      string `json:"file_url"`
	FileName     string `json:"file_name"`
	FileSize     int64  `json:"file_size"`
	Source       string `json:"source,omitempty"`
	UploadID     string `json:"upload_id,omitempty"`
	ResponseMode string `json:"response_mode"`
	User         string `json:"user"`
}

// BuildPayload assembles the dispatch body for a job. fileURL is the
// publicly resolvable link to the stored file.
func BuildPayload(job *core.Job, fileURL string) ([]byte, error) {
	p := Payload{
		FileURL:      fileURL,
		FileName:     job.FileName,
		FileSize:     job.FileSize,
		Source:       job.Source,
		ResponseMode: "blocking",
		User:         "resumeq-service",
	}
	if job.UploadID != nil {
		p.UploadID = job.UploadID.String()
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	return body, nil
}

type dispatcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewDispatcher creates a WebhookSender with a client tuned for a single
// long-running processing call per job.
func NewDispatcher(logger *slog.Logger) core.WebhookSender {
	return &dispatcher{
		client: newWebhookHTTPClient(),
		logger: logger,
	}
}

// newWebhookHTTPClient creates an HTTP client with generous timeouts.
// Resume parsing on the far side can take a while, so the overall deadline
// is much longer than the dial deadline.
func newWebhookHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   5 * time.Minute,
	}
}

// Send issues the single synchronous POST. Transport-level failures come
// back as errors; any completed HTTP exchange, 2xx or not, comes back as a
// WebhookResult for the caller to classify.
func (d *dispatcher) Send(ctx context.Context, url string, payload []byte) (*core.WebhookResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	d.logger.Info("dispatching webhook", "url", url, "bytes", len(payload))

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook response: %w", err)
	}

	return &core.WebhookResult{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}, nil
}
