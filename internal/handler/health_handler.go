package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Checker is a dependency that can report its health
type Checker interface {
	Health(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context) error

// Health calls f(ctx)
func (f CheckerFunc) Health(ctx context.Context) error {
	return f(ctx)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	backend Checker
	feed    Checker
	journal Checker
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler. journal may be nil when
// the activity journal is disabled.
func NewHealthHandler(backend, feed, journal Checker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		backend: backend,
		feed:    feed,
		journal: journal,
		logger:  logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:   "healthy",
		Services: make(map[string]string),
	}

	h.check(ctx, &response, "backend", h.backend)
	h.check(ctx, &response, "notifications", h.feed)
	h.check(ctx, &response, "journal", h.journal)

	// Return appropriate status code
	if response.Status == "healthy" {
		respondSuccess(w, response)
	} else {
		respondJSON(w, http.StatusServiceUnavailable, response)
	}
}

func (h *HealthHandler) check(ctx context.Context, response *HealthResponse, name string, c Checker) {
	if c == nil {
		response.Services[name] = "not_configured"
		return
	}
	if err := c.Health(ctx); err != nil {
		h.logger.Error(name+" health check failed", slog.String("error", err.Error()))
		response.Status = "unhealthy"
		response.Services[name] = "unhealthy"
		return
	}
	response.Services[name] = "healthy"
}
