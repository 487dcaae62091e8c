package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups the route handlers the router mounts
type Handlers struct {
	Views     *ViewHandler
	Customers *CustomerHandler
	Logs      *LogHandler
	Activity  *ActivityHandler
	Health    *HealthHandler
}

// NewRouter builds the console HTTP router. gatherer may be nil, in which
// case /metrics is not mounted.
func NewRouter(h Handlers, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.RequestID)
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware)

	// Register routes
	r.Get("/health", h.Health.Health)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/customers/sample", h.Customers.Sample)
	r.Get("/activity", h.Activity.List)

	r.Post("/views", h.Views.CreateView)
	r.Route("/views/{viewID}", func(r chi.Router) {
		r.Delete("/", h.Views.DiscardView)
		r.Get("/dashboard", h.Views.Dashboard)
		r.Get("/notifications", h.Views.Notifications)

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.Customers.List)
			r.Get("/editor", h.Customers.Editor)
			r.Post("/editor", h.Customers.OpenEditor)
			r.Delete("/editor", h.Customers.CloseEditor)
			r.Post("/editor/submit", h.Customers.Submit)
			r.Post("/import", h.Customers.Import)
			r.Delete("/import", h.Customers.ClearImports)
			r.Get("/export", h.Customers.Export)
			r.Delete("/{id}", h.Customers.Delete)
		})

		r.Route("/logs", func(r chi.Router) {
			r.Get("/", h.Logs.List)
			r.Get("/customers", h.Logs.CustomerOptions)
			r.Get("/editor", h.Logs.Editor)
			r.Post("/editor", h.Logs.OpenEditor)
			r.Delete("/editor", h.Logs.CloseEditor)
			r.Post("/editor/submit", h.Logs.Submit)
			r.Delete("/{id}", h.Logs.Delete)
		})
	})

	return r
}
