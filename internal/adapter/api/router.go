package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/paywatch/paywatch/internal/adapter/api/handler"
	"github.com/paywatch/paywatch/internal/adapter/api/middleware"
	"github.com/paywatch/paywatch/internal/domain"
	"github.com/paywatch/paywatch/internal/pkg/config"
	"github.com/paywatch/paywatch/internal/usecase"
)

// RouterDeps bundles everything the API surface needs. The broker and
// webhook are optional-free: the router always mounts their routes.
type RouterDeps struct {
	Config       *config.Config
	Logger       *slog.Logger
	Repo         domain.EventRepository
	Ingest       *handler.IngestHandler
	Summarize    *usecase.SummarizeUseCase
	Subscription *usecase.SubscriptionUseCase
	Settings     *handler.SettingsHandler
	Broker       *handler.EventBroker
}

// NewRouter creates and configures the main HTTP router for the
// telemetry service.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logging(deps.Logger))

	dashboard := handler.NewDashboardHandler(
		deps.Summarize,
		deps.Subscription,
		deps.Repo,
		deps.Logger,
		deps.Config.ScopeID,
		deps.Config.RecentLimit,
		deps.Config.SubscriptionWindow,
	)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/events", deps.Ingest)
		r.Get("/events", dashboard.RecentEvents)
		r.Get("/events/stream", deps.Broker.ServeHTTP)
		r.Get("/events/{id}", dashboard.EventByID)
		r.Get("/dashboard", dashboard.Summary)
		r.Get("/subscription", dashboard.Subscription)
		r.Get("/settings", deps.Settings.Get)
		r.Post("/settings", deps.Settings.Update)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
