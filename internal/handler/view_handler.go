package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Raymond9734/crm-console/internal/models"
	"github.com/Raymond9734/crm-console/internal/notify"
	"github.com/Raymond9734/crm-console/internal/view"
)

// ViewHandler handles view session lifecycle, dashboard and notification
// requests
type ViewHandler struct {
	registry *view.Registry
	feed     notify.Feed
	logger   *slog.Logger
}

// NewViewHandler creates a new view handler
func NewViewHandler(registry *view.Registry, feed notify.Feed, logger *slog.Logger) *ViewHandler {
	return &ViewHandler{
		registry: registry,
		feed:     feed,
		logger:   logger,
	}
}

// CreateView handles POST /views
func (h *ViewHandler) CreateView(w http.ResponseWriter, r *http.Request) {
	respondCreated(w, h.registry.Create())
}

// DiscardView handles DELETE /views/{viewID}
func (h *ViewHandler) DiscardView(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Discard(chi.URLParam(r, "viewID")); err != nil {
		handleError(w, err, h.logger)
		return
	}
	respondNoContent(w)
}

// Dashboard handles GET /views/{viewID}/dashboard. A partial summary is
// still returned when one of the collections failed to load.
func (h *ViewHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}

	summary, _ := s.Dashboard(r.Context())
	respondSuccess(w, summary)
}

// Notifications handles GET /views/{viewID}/notifications?max=
func (h *ViewHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}

	max, _ := strconv.Atoi(r.URL.Query().Get("max"))
	items, err := h.feed.Drain(r.Context(), s.ID, max)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, map[string]interface{}{"notifications": items})
}

// lookupSession resolves {viewID} or writes the error response
func lookupSession(w http.ResponseWriter, r *http.Request, registry *view.Registry, logger *slog.Logger) (*view.Session, bool) {
	s, err := registry.Get(chi.URLParam(r, "viewID"))
	if err != nil {
		handleError(w, err, logger)
		return nil, false
	}
	return s, true
}

// parseWindow reads page and limit from the query, keeping current values
// for parameters that are absent
func parseWindow(query url.Values, current models.PageWindow) (models.PageWindow, bool, error) {
	changed := false
	if v := query.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return current, false, models.ErrInvalidInput("page must be a positive integer")
		}
		current.Page = page
		changed = true
	}
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return current, false, models.ErrInvalidInput("limit must be a positive integer")
		}
		current.Limit = limit
		changed = true
	}
	return current, changed, nil
}

// editorRequest selects create mode (empty id) or edit mode
type editorRequest struct {
	ID string `json:"id"`
}
