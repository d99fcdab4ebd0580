package wire

import (
	"io"
	"log/slog"
	"os"

	"github.com/google/wire"
	"github.com/jmoiron/sqlx"

	"github.com/hirewire/resumeq/internal/app"
	"github.com/hirewire/resumeq/internal/config"
	"github.com/hirewire/resumeq/internal/core"
	"github.com/hirewire/resumeq/internal/db"
	"github.com/hirewire/resumeq/internal/jobs"
	"github.com/hirewire/resumeq/internal/logger"
	"github.com/hirewire/resumeq/internal/notify"
	"github.com/hirewire/resumeq/internal/server"
	"github.com/hirewire/resumeq/internal/storage"
	"github.com/hirewire/resumeq/internal/webhook"
)

var AppSet = wire.NewSet(
	app.NewApp,
	server.NewServer,
	config.LoadConfig,
	db.NewDatabase,
	storage.NewQueueStore,
	storage.NewSettingsStore,
	jobs.NewProcessor,
	webhook.NewDispatcher,
	notify.NewNotifier,
	notify.NewHub,
	notify.NewListener,
	provideWebhookConfig,
	provideFileSource,
	provideServerDeps,
	provideSQLDB,
	provideLoggerConfig,
	provideLogWriter,
	provideSlogLogger,
	provideDBConfig,
)

func provideWebhookConfig(settings storage.SettingsStore, cfg *config.Config) core.WebhookConfig {
	return storage.NewWebhookConfig(settings, cfg.WebhookURL)
}

func provideFileSource(cfg *config.Config) core.FileSource {
	return storage.NewLocalFileSource(cfg.StorageRoot)
}

func provideServerDeps(processor *jobs.Processor, store core.JobStore, notifier core.Notifier, settings storage.SettingsStore, files core.FileSource, hub *notify.Hub) server.Deps {
	return server.Deps{
		Processor: processor,
		Store:     store,
		Notifier:  notifier,
		Settings:  settings,
		Files:     files,
		Hub:       hub,
	}
}

func provideSQLDB(dbConn *db.DB) *sqlx.DB {
	return dbConn.DB
}

func provideLoggerConfig(cfg *config.Config) logger.Config {
	return cfg.Logging
}

func provideLogWriter(cfg *config.Config) io.Writer {
	switch cfg.Logging.Output {
	case "stderr":
		return os.Stderr
	case "file":
		f, err := os.OpenFile("resumeq.log", os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			return os.Stdout
		}
		return f
	default:
		return os.Stdout
	}
}

func provideSlogLogger(loggerConfig logger.Config, writer io.Writer) *slog.Logger {
	return logger.NewLogger(loggerConfig, writer)
}

func provideDBConfig(cfg *config.Config) *config.DBConfig {
	return &cfg.Database
}
