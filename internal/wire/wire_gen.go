// Code generated manually. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package wire

import (
	"context"
	"fmt"

	"github.com/hirewire/resumeq/internal/app"
	"github.com/hirewire/resumeq/internal/config"
	"github.com/hirewire/resumeq/internal/db"
	"github.com/hirewire/resumeq/internal/jobs"
	"github.com/hirewire/resumeq/internal/logger"
	"github.com/hirewire/resumeq/internal/notify"
	"github.com/hirewire/resumeq/internal/server"
	"github.com/hirewire/resumeq/internal/storage"
	"github.com/hirewire/resumeq/internal/webhook"
)

// InitializeApp creates and wires all application dependencies.
func InitializeApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logWriter := provideLogWriter(cfg)
	slogLogger := logger.NewLogger(cfg.Logging, logWriter)

	dbConn, dbCleanup, err := db.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB := provideSQLDB(dbConn)
	queueStore := storage.NewQueueStore(sqlDB)
	settingsStore := storage.NewSettingsStore(sqlDB)
	webhookConfig := provideWebhookConfig(settingsStore, cfg)
	fileSource := provideFileSource(cfg)

	notifier := notify.NewNotifier(sqlDB, slogLogger)
	hub := notify.NewHub()
	listener, err := notify.NewListener(&cfg.Database, hub, slogLogger)
	if err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to start queue listener: %w", err)
	}

	sender := webhook.NewDispatcher(slogLogger)
	processor := jobs.NewProcessor(cfg, queueStore, fileSource, sender, webhookConfig, notifier, slogLogger)

	deps := provideServerDeps(processor, queueStore, notifier, settingsStore, fileSource, hub)
	httpServer := server.NewServer(ctx, cfg, deps, slogLogger)

	application, err := app.NewApp(ctx, cfg, dbConn, settingsStore, listener, httpServer, slogLogger)
	if err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to initialize app: %w", err)
	}

	cleanup := func() {
		dbCleanup()
	}

	return application, cleanup, nil
}
