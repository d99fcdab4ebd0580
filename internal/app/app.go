// Package app initializes and orchestrates the main components of the
// resume queue service. It wires together the configuration, stores, the
// processing pipeline, the event listener and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/hirewire/resumeq/internal/config"
	"github.com/hirewire/resumeq/internal/db"
	"github.com/hirewire/resumeq/internal/notify"
	"github.com/hirewire/resumeq/internal/server"
	"github.com/hirewire/resumeq/internal/storage"
)

// App holds the main application components.
type App struct {
	ctx      context.Context
	cfg      *config.Config
	server   *server.Server
	listener *notify.Listener
	logger   *slog.Logger
	dbConn   *db.DB
}

// NewApp assembles the application from its wired components and seeds
// operator settings from the optional settings file.
func NewApp(ctx context.Context, cfg *config.Config, dbConn *db.DB, settings storage.SettingsStore, listener *notify.Listener, httpServer *server.Server, logger *slog.Logger) (*App, error) {
	if err := seedSettings(ctx, cfg, settings, logger); err != nil {
		return nil, err
	}

	logger.Info("resume queue service initialized",
		"server_port", cfg.ServerPort,
		"storage_root", cfg.StorageRoot)

	return &App{
		ctx:      ctx,
		cfg:      cfg,
		server:   httpServer,
		listener: listener,
		logger:   logger,
		dbConn:   dbConn,
	}, nil
}

// seedSettings pre-populates app_settings from the YAML settings file.
// Values already stored by an operator are left alone.
func seedSettings(ctx context.Context, cfg *config.Config, settings storage.SettingsStore, logger *slog.Logger) error {
	if cfg.SettingsFile == "" {
		return nil
	}

	fileSettings, err := config.LoadSettingsFile(cfg.SettingsFile)
	if err != nil {
		if errors.Is(err, config.ErrSettingsNotFound) {
			logger.Warn("settings file not found, skipping seed", "path", cfg.SettingsFile)
			return nil
		}
		return fmt.Errorf("failed to load settings file: %w", err)
	}

	if fileSettings.WebhookURL == "" {
		return nil
	}

	_, err = settings.Get(ctx, storage.SettingWebhookURL)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrSettingNotFound) {
		return fmt.Errorf("failed to read stored settings: %w", err)
	}

	logger.Info("seeding webhook endpoint from settings file")
	return settings.Set(ctx, storage.SettingWebhookURL, fileSettings.WebhookURL)
}

// Start runs the HTTP server and the queue event listener until one of
// them fails or the application context is cancelled.
func (a *App) Start() error {
	g, ctx := errgroup.WithContext(a.ctx)

	g.Go(func() error {
		return a.server.Start()
	})
	g.Go(func() error {
		return a.listener.Run(ctx)
	})

	return g.Wait()
}

// Stop shuts down the application cleanly.
func (a *App) Stop() error {
	a.logger.Info("shutting down resume queue service")

	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
	}

	a.logger.Info("closing database connection")
	if err := a.dbConn.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}

	if serverErr != nil {
		return serverErr
	}

	a.logger.Info("resume queue service stopped successfully")
	return nil
}
