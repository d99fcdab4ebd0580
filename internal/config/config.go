package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/hirewire/resumeq/internal/logger"
)

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Config holds the application's configuration values.
type Config struct {
	ServerPort string
	Logging    logger.Config
	Database   DBConfig

	// StorageRoot is the directory uploaded resumes are stored under; job
	// file_path values are resolved relative to it.
	StorageRoot string
	// PublicBaseURL is the externally reachable base URL used to build the
	// file link embedded in webhook payloads.
	PublicBaseURL string
	// WebhookURL is the environment fallback for the processing endpoint,
	// used when no value is stored in app_settings.
	WebhookURL string

	// SchedulerSecret authenticates the external poller calling the
	// queue-processing endpoint.
	SchedulerSecret string
	// SessionSecret signs and verifies session tokens for user-facing
	// endpoints.
	SessionSecret string

	// SettingsFile optionally points to a YAML file whose values seed
	// app_settings at startup.
	SettingsFile string
}

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates required fields. It uses the Viper
// library to handle configuration loading and precedence.
func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("LOG_OUTPUT", "stdout")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "resumeq")
	viper.SetDefault("DB_NAME", "resumeq")
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	viper.SetDefault("DB_CONN_MAX_IDLE_TIME", "5m")
	viper.SetDefault("STORAGE_ROOT", "data/uploads")
	viper.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", "error", err)
		}
	}

	if viper.GetString("SCHEDULER_SECRET") == "" {
		return nil, fmt.Errorf("SCHEDULER_SECRET must be set")
	}
	if viper.GetString("SESSION_SECRET") == "" {
		return nil, fmt.Errorf("SESSION_SECRET must be set")
	}
	if viper.GetString("DB_PASSWORD") == "" {
		return nil, fmt.Errorf("DB_PASSWORD must be set")
	}

	return &Config{
		ServerPort: viper.GetString("SERVER_PORT"),
		Logging: logger.Config{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
			Output: viper.GetString("LOG_OUTPUT"),
		},
		Database: DBConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			Username:        viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Database:        viper.GetString("DB_NAME"),
			ConnMaxLifetime: viper.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: viper.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		StorageRoot:     viper.GetString("STORAGE_ROOT"),
		PublicBaseURL:   viper.GetString("PUBLIC_BASE_URL"),
		WebhookURL:      viper.GetString("WEBHOOK_URL"),
		SchedulerSecret: viper.GetString("SCHEDULER_SECRET"),
		SessionSecret:   viper.GetString("SESSION_SECRET"),
		SettingsFile:    viper.GetString("SETTINGS_FILE"),
	}, nil
}

// DSN builds a lib/pq connection string from the DB settings.
func (c *DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.Username, c.Password, c.Database)
}
