package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Raymond9734/crm-console/internal/models"
	"github.com/Raymond9734/crm-console/internal/view"
)

// LogHandler handles call log requests of a view
type LogHandler struct {
	registry *view.Registry
	logger   *slog.Logger
}

// NewLogHandler creates a new log handler
func NewLogHandler(registry *view.Registry, logger *slog.Logger) *LogHandler {
	return &LogHandler{
		registry: registry,
		logger:   logger,
	}
}

// List handles GET /views/{viewID}/logs?page=&limit=&q=
func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}

	query := r.URL.Query()
	window, changed, err := parseWindow(query, s.Logs.Window())
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	if changed {
		s.Logs.SetWindow(window)
	}
	if query.Has("q") {
		s.Logs.Search(query.Get("q"))
	}

	listing, err := s.Logs.Listing(r.Context())
	if listing == nil {
		handleError(w, err, h.logger)
		return
	}
	respondSuccess(w, listing)
}

// CustomerOptions handles GET /views/{viewID}/logs/customers
func (h *LogHandler) CustomerOptions(w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}

	customers, _ := s.Logs.CustomerOptions(r.Context())
	respondSuccess(w, map[string]interface{}{"customers": customers})
}

// Editor handles GET /views/{viewID}/logs/editor
func (h *LogHandler) Editor(w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}
	respondSuccess(w, s.Logs.EditorState())
}

// OpenEditor handles POST /views/{viewID}/logs/editor
func (h *LogHandler) OpenEditor(w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}

	var req editorRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
			return
		}
	}

	if req.ID == "" {
		respondSuccess(w, s.Logs.OpenCreate())
		return
	}

	state, err := s.Logs.OpenEdit(req.ID)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	respondSuccess(w, state)
}

// CloseEditor handles DELETE /views/{viewID}/logs/editor
func (h *LogHandler) CloseEditor(w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}
	s.Logs.CancelEdit()
	respondNoContent(w)
}

// Submit handles POST /views/{viewID}/logs/editor/submit
func (h *LogHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}

	var req models.LogInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	if err := s.Logs.Submit(r.Context(), req); err != nil {
		handleError(w, err, h.logger)
		return
	}
	respondSuccess(w, s.Logs.EditorState())
}

// Delete handles DELETE /views/{viewID}/logs/{id}
func (h *LogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}

	if err := s.Logs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, err, h.logger)
		return
	}
	respondNoContent(w)
}
