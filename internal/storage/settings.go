package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hirewire/resumeq/internal/core"
)

// SettingWebhookURL is the app_settings key holding the processing endpoint.
const SettingWebhookURL = "resume_webhook_url"

// SettingsStore reads and writes operator-editable key/value settings.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// ErrSettingNotFound is returned when no value is stored under a key.
var ErrSettingNotFound = errors.New("setting not found")

type settingsStore struct {
	db *sqlx.DB
}

// NewSettingsStore creates a SettingsStore backed by the app_settings table.
func NewSettingsStore(db *sqlx.DB) SettingsStore {
	return &settingsStore{db: db}
}

func (s *settingsStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM app_settings WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSettingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *settingsStore) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO app_settings (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set setting %q: %w", key, err)
	}
	return nil
}

// webhookConfig is a read-through provider for the processing endpoint: the
// stored setting wins, the environment default fills in behind it. It is an
// interface value rather than a module-level singleton so tests can swap it.
type webhookConfig struct {
	settings   SettingsStore
	defaultURL string
}

// NewWebhookConfig builds the webhook endpoint resolver used by the
// processor.
func NewWebhookConfig(settings SettingsStore, defaultURL string) core.WebhookConfig {
	return &webhookConfig{settings: settings, defaultURL: defaultURL}
}

// WebhookURL returns the configured endpoint, or "" when none is set.
// An unreachable settings store falls back to the default rather than
// failing the job.
func (c *webhookConfig) WebhookURL(ctx context.Context) (string, error) {
	value, err := c.settings.Get(ctx, SettingWebhookURL)
	if errors.Is(err, ErrSettingNotFound) {
		return c.defaultURL, nil
	}
	if err != nil {
		return c.defaultURL, err
	}
	if value == "" {
		return c.defaultURL, nil
	}
	return value, nil
}
