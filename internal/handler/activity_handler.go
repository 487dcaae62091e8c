package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Raymond9734/crm-console/internal/models"
	"github.com/Raymond9734/crm-console/internal/notify"
	"github.com/Raymond9734/crm-console/internal/repository"
)

// ActivityHandler serves the notification journal
type ActivityHandler struct {
	repo   repository.NotificationRepository
	logger *slog.Logger
}

// NewActivityHandler creates a new activity handler. repo is nil when the
// journal is disabled.
func NewActivityHandler(repo repository.NotificationRepository, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{
		repo:   repo,
		logger: logger,
	}
}

// ActivityResponse is one page of journaled notifications
type ActivityResponse struct {
	Notifications []*notify.Notification  `json:"notifications"`
	Pagination    models.PaginationResult `json:"pagination"`
}

// List handles GET /activity?view_id=&level=&page=&page_size=
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		respondError(w, http.StatusNotFound, models.CodeNotFound, "Activity journal is disabled")
		return
	}

	// Parse query parameters
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))

	level := notify.Level(query.Get("level"))
	if level != "" && !level.IsValid() {
		respondError(w, http.StatusBadRequest, models.CodeInvalidInput, "Invalid level")
		return
	}

	filter := repository.NotificationFilter{
		ViewID:   query.Get("view_id"),
		Level:    level,
		Page:     page,
		PageSize: pageSize,
	}
	models.ValidateAndSetDefaults(&filter.Page, &filter.PageSize)

	items, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, ActivityResponse{
		Notifications: items,
		Pagination:    models.NewPaginationResult(filter.Page, filter.PageSize, total),
	})
}
