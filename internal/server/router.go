package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hirewire/resumeq/internal/auth"
	"github.com/hirewire/resumeq/internal/config"
	"github.com/hirewire/resumeq/internal/core"
	"github.com/hirewire/resumeq/internal/jobs"
	"github.com/hirewire/resumeq/internal/notify"
	"github.com/hirewire/resumeq/internal/server/handler"
	"github.com/hirewire/resumeq/internal/server/middleware"
	"github.com/hirewire/resumeq/internal/storage"
)

// Deps bundles the collaborators the router hands to its handlers.
type Deps struct {
	Processor *jobs.Processor
	Store     core.JobStore
	Notifier  core.Notifier
	Settings  storage.SettingsStore
	Files     core.FileSource
	Hub       *notify.Hub
}

// NewRouter creates and configures a new HTTP router with middleware and
// API routes.
func NewRouter(cfg *config.Config, deps Deps, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	signer := auth.NewSigner(cfg.SessionSecret)
	queueHandler := handler.NewQueueHandler(deps.Processor, deps.Store, deps.Notifier, logger)
	settingsHandler := handler.NewSettingsHandler(deps.Settings, logger)
	filesHandler := handler.NewFilesHandler(deps.Files, logger)
	eventsHandler := handler.NewEventsHandler(deps.Hub, logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Entry points hold the request for a full claim+process or
		// insert+process cycle, so no request timeout is applied here;
		// the webhook client's own deadline bounds them.
		r.Group(func(r chi.Router) {
			r.Use(middleware.SchedulerAuth(cfg.SchedulerSecret))
			r.Post("/queue/process", queueHandler.ProcessNext)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionAuth(signer))
			r.Post("/queue/blocking", queueHandler.SubmitBlocking)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionAuth(signer))
			r.Use(chimw.Timeout(60 * time.Second))
			r.Get("/queue/jobs", queueHandler.ListJobs)
			r.Get("/queue/jobs/{id}", queueHandler.GetJob)
			r.Post("/queue/jobs/{id}/cancel", queueHandler.CancelJob)
			r.Post("/queue/jobs/{id}/retry", queueHandler.RetryJob)
			r.Put("/settings/webhook", settingsHandler.UpdateWebhook)
		})

		// The external processor pulls file bytes through this URL; it has
		// no session, so the route stays open.
		r.Get("/files/*", filesHandler.Get)

		r.Get("/queue/events", eventsHandler.Handle)
	})

	return r
}
