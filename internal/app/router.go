package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/distriflow/distriflow/internal/deliveries"
	"github.com/distriflow/distriflow/internal/masterdata/clients"
	"github.com/distriflow/distriflow/internal/masterdata/zones"
	"github.com/distriflow/distriflow/internal/observability"
	"github.com/distriflow/distriflow/internal/orders"
	"github.com/distriflow/distriflow/internal/ruteros"
	"github.com/distriflow/distriflow/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Pool            *pgxpool.Pool
	OrderHandler    *orders.Handler
	RuteroHandler   *ruteros.Handler
	DeliveryHandler *deliveries.Handler
	ClientHandler   *clients.Handler
	ZoneHandler     *zones.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Warn("healthz ping", slog.Any("error", err))
				http.Error(w, `{"status":"degraded"}`, http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		params.OrderHandler.MountRoutes(r)
		params.RuteroHandler.MountRoutes(r)
		params.DeliveryHandler.MountRoutes(r)
		params.ClientHandler.MountRoutes(r)
		params.ZoneHandler.MountRoutes(r)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
