package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/GregMSThompson/dashboard-backend/internal/handlers"
	"github.com/GregMSThompson/dashboard-backend/internal/metrics"
	"github.com/GregMSThompson/dashboard-backend/internal/middleware"
)

// NewRouter mounts the dashboard API. Requests are scoped to the caller's
// Firebase UID when deps.Firebase is set, otherwise to the namespace named
// by header or query.
func NewRouter(deps *handlers.Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.NewLoggerMiddleware(deps.Log).LoggerMiddleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	r.Handle("/metrics", metrics.Handler())

	mw := middleware.NewMiddleware(deps.Firebase, deps.DefaultNamespace)
	scope := mw.HeaderNamespace
	if deps.Firebase != nil {
		scope = mw.FirebaseAuth
	}

	dh := handlers.NewDashboardHandlers(deps)
	evh := handlers.NewEventHandlers(deps)

	dashboard := dh.DashboardRoutes()
	dashboard.Get("/events", evh.Stream)

	r.With(scope, middleware.NamespaceLogger).Mount("/dashboard", dashboard)
	return r
}
