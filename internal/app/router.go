package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crucible-ti/crucible/internal/access"
	"github.com/crucible-ti/crucible/internal/auth"
	"github.com/crucible-ti/crucible/internal/objects"
	"github.com/crucible-ti/crucible/internal/observability"
	"github.com/crucible-ti/crucible/internal/rbac"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Access         access.Middleware
	AuthHandler    *auth.Handler
	ObjectsHandler *objects.Handler
	AdminHandler   *rbac.Handler
	Metrics        *observability.Metrics
	Pool           *pgxpool.Pool
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Access:  params.Access,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", params.Metrics.Handler())

	r.Mount("/auth", params.AuthHandler.Routes())
	r.Mount("/admin", params.AdminHandler.Routes())
	r.Mount("/api", params.ObjectsHandler.Routes())

	return r
}
