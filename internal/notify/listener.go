package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/hirewire/resumeq/internal/config"
	"github.com/hirewire/resumeq/internal/core"
)

// Listener holds a LISTEN connection on the queue channel and re-broadcasts
// incoming events to the Hub.
type Listener struct {
	pl     *pq.Listener
	hub    *Hub
	logger *slog.Logger
}

// NewListener opens a dedicated listening connection. It reconnects with
// backoff on its own; connection problems are logged through the event
// callback.
func NewListener(cfg *config.DBConfig, hub *Hub, logger *slog.Logger) (*Listener, error) {
	callback := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("queue listener connection event", "type", int(ev), "error", err)
		}
	}

	pl := pq.NewListener(cfg.DSN(), 10*time.Second, time.Minute, callback)
	if err := pl.Listen(Channel); err != nil {
		_ = pl.Close()
		return nil, err
	}

	return &Listener{pl: pl, hub: hub, logger: logger}, nil
}

// Run forwards notifications to the hub until the context is cancelled.
// A periodic ping keeps the connection from going stale behind quiet
// load balancers.
func (l *Listener) Run(ctx context.Context) error {
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	l.logger.Info("queue event listener started", "channel", Channel)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("queue event listener stopping")
			return l.pl.Close()

		case <-ping.C:
			if err := l.pl.Ping(); err != nil {
				l.logger.Warn("queue listener ping failed", "error", err)
			}

		case notification := <-l.pl.Notify:
			// nil notifications signal a reconnect; nothing to forward.
			if notification == nil {
				continue
			}

			var event core.QueueEvent
			if err := json.Unmarshal([]byte(notification.Extra), &event); err != nil {
				l.logger.Warn("dropping malformed queue event", "error", err)
				continue
			}
			l.hub.Broadcast(event)
		}
	}
}
