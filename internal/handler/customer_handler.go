package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Raymond9734/crm-console/internal/models"
	"github.com/Raymond9734/crm-console/internal/spreadsheet"
	"github.com/Raymond9734/crm-console/internal/view"
)

// CustomerHandler handles customer registry requests of a view
type CustomerHandler struct {
	registry       *view.Registry
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(registry *view.Registry, maxUploadBytes int64, logger *slog.Logger) *CustomerHandler {
	return &CustomerHandler{
		registry:       registry,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// List handles GET /views/{viewID}/customers?page=&limit=&q=
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}

	query := r.URL.Query()
	window, changed, err := parseWindow(query, s.Customers.Window())
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	if changed {
		s.Customers.SetWindow(window)
	}
	if query.Has("q") {
		s.Customers.Search(query.Get("q"))
	}

	// A stale listing is still displayed; the failure went out as a notification
	listing, err := s.Customers.Listing(r.Context())
	if listing == nil {
		handleError(w, err, h.logger)
		return
	}
	respondSuccess(w, listing)
}

// Editor handles GET /views/{viewID}/customers/editor
func (h *CustomerHandler) Editor(w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}
	respondSuccess(w, s.Customers.EditorState())
}

// OpenEditor handles POST /views/{viewID}/customers/editor
func (h *CustomerHandler) OpenEditor(w http.ResponseWriter, r *http.Request) {
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
		respondSuccess(w, s.Customers.OpenCreate())
		return
	}

	state, err := s.Customers.OpenEdit(req.ID)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	respondSuccess(w, state)
}

// CloseEditor handles DELETE /views/{viewID}/customers/editor
func (h *CustomerHandler) CloseEditor(w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}
	s.Customers.CancelEdit()
	respondNoContent(w)
}

// Submit handles POST /views/{viewID}/customers/editor/submit
func (h *CustomerHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}

	var req models.CustomerInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	if err := s.Customers.Submit(r.Context(), req); err != nil {
		handleError(w, err, h.logger)
		return
	}
	respondSuccess(w, s.Customers.EditorState())
}

// Delete handles DELETE /views/{viewID}/customers/{id}
func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}

	if err := s.Customers.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, err, h.logger)
		return
	}
	respondNoContent(w)
}

// Import handles POST /views/{viewID}/customers/import (multipart field "file")
func (h *CustomerHandler) Import(w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, models.CodeInvalidFile, "File is too large")
			return
		}
		respondError(w, http.StatusBadRequest, models.CodeInvalidFile, "Expected a multipart upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, models.CodeInvalidFile, "Missing file")
		return
	}
	defer file.Close()

	result, err := s.Customers.Import(r.Context(), header.Filename, file)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	respondSuccess(w, result)
}

// ClearImports handles DELETE /views/{viewID}/customers/import
func (h *CustomerHandler) ClearImports(w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}
	s.Customers.ClearImports()
	respondNoContent(w)
}

// Export handles GET /views/{viewID}/customers/export
func (h *CustomerHandler) Export(w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(w, r, h.registry, h.logger)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if _, err := s.Customers.Export(r.Context(), &buf); err != nil {
		handleError(w, err, h.logger)
		return
	}
	respondAttachment(w, spreadsheet.ContentType, spreadsheet.ExportFileName, &buf)
}

// Sample handles GET /customers/sample
func (h *CustomerHandler) Sample(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := spreadsheet.WriteSample(&buf); err != nil {
		handleError(w, err, h.logger)
		return
	}
	respondAttachment(w, spreadsheet.ContentType, spreadsheet.SampleFileName, &buf)
}
