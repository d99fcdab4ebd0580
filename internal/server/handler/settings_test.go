package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirewire/resumeq/internal/storage"
)

// fakeSettings is an in-memory SettingsStore for handler tests.
type fakeSettings struct {
	values map[string]string
	err    error
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: make(map[string]string)}
}

func (f *fakeSettings) Get(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.values[key]
	if !ok {
		return "", storage.ErrSettingNotFound
	}
	return v, nil
}

func (f *fakeSettings) Set(_ context.Context, key, value string) error {
	if f.err != nil {
		return f.err
	}
	f.values[key] = value
	return nil
}

func putWebhook(h *SettingsHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, "/settings/webhook", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.UpdateWebhook(rec, req)
	return rec
}

func TestUpdateWebhook(t *testing.T) {
	settings := newFakeSettings()
	h := NewSettingsHandler(settings, testLogger())

	rec := putWebhook(h, `{"webhook_url":"https://hooks.example.com/resume"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://hooks.example.com/resume", settings.values[storage.SettingWebhookURL])
}

func TestUpdateWebhookClearsWithEmptyValue(t *testing.T) {
	settings := newFakeSettings()
	settings.values[storage.SettingWebhookURL] = "https://old.example.com"
	h := NewSettingsHandler(settings, testLogger())

	rec := putWebhook(h, `{"webhook_url":""}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", settings.values[storage.SettingWebhookURL])
}

func TestUpdateWebhookRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"relative url", `{"webhook_url":"hooks.example.com/resume"}`},
		{"wrong scheme", `{"webhook_url":"ftp://hooks.example.com"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSettingsHandler(newFakeSettings(), testLogger())
			rec := putWebhook(h, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUpdateWebhookStoreFailure(t *testing.T) {
	settings := newFakeSettings()
	settings.err = errors.New("db down")
	h := NewSettingsHandler(settings, testLogger())

	rec := putWebhook(h, `{"webhook_url":"https://hooks.example.com/resume"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
