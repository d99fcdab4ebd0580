// Package notify publishes lightweight queue-changed events over Postgres
// NOTIFY and fans them out to connected UI listeners. Publishing is
// best-effort by contract: a lost notification never affects job state.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/hirewire/resumeq/internal/core"
)

// Channel is the Postgres notification channel queue events travel on.
const Channel = "resumeq_queue_events"

type pgNotifier struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewNotifier creates a core.Notifier that publishes through pg_notify, so
// every process attached to the database sees queue changes without an
// extra broker.
func NewNotifier(db *sqlx.DB, logger *slog.Logger) core.Notifier {
	return &pgNotifier{db: db, logger: logger}
}

func (n *pgNotifier) Publish(ctx context.Context, event core.QueueEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal queue event: %w", err)
	}

	if _, err := n.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, Channel, string(payload)); err != nil {
		return fmt.Errorf("failed to publish queue event: %w", err)
	}

	n.logger.Debug("published queue event", "event", event.Event)
	return nil
}
