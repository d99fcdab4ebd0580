package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hirewire/resumeq/internal/server/middleware"
	"github.com/hirewire/resumeq/internal/storage"
)

// SettingsHandler serves operator updates to queue settings.
type SettingsHandler struct {
	settings storage.SettingsStore
	logger   *slog.Logger
}

// NewSettingsHandler creates a settings handler.
func NewSettingsHandler(settings storage.SettingsStore, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: logger}
}

type webhookSettingRequest struct {
	WebhookURL string `json:"webhook_url"`
}

// UpdateWebhook stores the processing endpoint. An empty value clears the
// stored setting, which makes the processor fall back to the environment
// default or skip dispatch entirely.
func (h *SettingsHandler) UpdateWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	value := strings.TrimSpace(req.WebhookURL)
	if value != "" {
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			writeError(w, http.StatusBadRequest, "webhook_url must be a valid http(s) URL")
			return
		}
	}

	if err := h.settings.Set(r.Context(), storage.SettingWebhookURL, value); err != nil {
		h.logger.Error("failed to store webhook setting", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("webhook endpoint updated", "by", middleware.UserID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"webhook_url": value})
}
