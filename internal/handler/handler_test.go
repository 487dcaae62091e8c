package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Raymond9734/crm-console/internal/dashboard"
	"github.com/Raymond9734/crm-console/internal/liststore"
	"github.com/Raymond9734/crm-console/internal/models"
	"github.com/Raymond9734/crm-console/internal/notify"
	"github.com/Raymond9734/crm-console/internal/repository"
	"github.com/Raymond9734/crm-console/internal/spreadsheet"
	"github.com/Raymond9734/crm-console/internal/view"
)

// memoryBackend serves customers and logs from slices
type memoryBackend struct {
	mu        sync.Mutex
	customers []models.Customer
	logs      []models.Log
	listErr   error
	created   []models.CustomerInput
	deleted   []string
}

func (b *memoryBackend) listCustomers(ctx context.Context, w models.PageWindow) ([]models.Customer, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, 0, b.listErr
	}
	return window(b.customers, w), int64(len(b.customers)), nil
}

func (b *memoryBackend) listLogs(ctx context.Context, w models.PageWindow) ([]models.Log, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, 0, b.listErr
	}
	return window(b.logs, w), int64(len(b.logs)), nil
}

func window[T any](items []T, w models.PageWindow) []T {
	w = w.Normalize()
	start := (w.Page - 1) * w.Limit
	if start >= len(items) {
		return []T{}
	}
	end := start + w.Limit
	if end > len(items) {
		end = len(items)
	}
	return append([]T(nil), items[start:end]...)
}

type customerAPI struct{ b *memoryBackend }

func (a customerAPI) Create(ctx context.Context, in models.CustomerInput) error {
	a.b.mu.Lock()
	defer a.b.mu.Unlock()
	a.b.created = append(a.b.created, in)
	a.b.customers = append(a.b.customers, models.Customer{ID: "new", FullName: in.FullName, Email: in.Email, Mobile: in.Mobile})
	return nil
}

func (a customerAPI) Update(ctx context.Context, id string, in models.CustomerInput) error {
	return nil
}

func (a customerAPI) Delete(ctx context.Context, id string) error {
	a.b.mu.Lock()
	defer a.b.mu.Unlock()
	a.b.deleted = append(a.b.deleted, id)
	return nil
}

type logAPI struct{ b *memoryBackend }

func (a logAPI) Create(ctx context.Context, in models.LogInput) error            { return nil }
func (a logAPI) Update(ctx context.Context, id string, in models.LogInput) error { return nil }
func (a logAPI) Delete(ctx context.Context, id string) error {
	return models.ErrUpstream("Log is locked")
}

type testServer struct {
	backend *memoryBackend
	feed    notify.Feed
	handler http.Handler
}

func newTestServer(t *testing.T, journal *ActivityHandler) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	b := &memoryBackend{
		customers: []models.Customer{
			{ID: "c1", FullName: "John Doe", Email: "john@example.com", Mobile: "9876543210"},
			{ID: "c2", FullName: "Jane Roe", Email: "jane@example.com", Mobile: "9123456789"},
			{ID: "c3", FullName: "Max Payne", Email: "max@example.com", Mobile: "9000000003"},
		},
		logs: []models.Log{
			{ID: "l1", Customer: &models.CustomerRef{ID: "c1", FullName: "John Doe"}, Status: models.LogStatusBusy},
			{ID: "l2", Customer: &models.CustomerRef{ID: "c2", FullName: "Jane Roe"}, Status: models.LogStatusCompleted},
		},
	}

	reg := prometheus.NewRegistry()
	metrics := liststore.NewMetrics(reg)
	customers, err := liststore.New[models.Customer]("/coustmer", b.listCustomers, liststore.Options{Metrics: metrics}, logger)
	require.NoError(t, err)
	logs, err := liststore.New[models.Log]("/logs", b.listLogs, liststore.Options{Metrics: metrics}, logger)
	require.NoError(t, err)

	feed := notify.NewMemoryFeed(50)
	registry := view.NewRegistry(view.Deps{
		Customers:   customers,
		Logs:        logs,
		CustomerAPI: customerAPI{b},
		LogAPI:      logAPI{b},
		Dashboard:   dashboard.NewService(customers, logs, logger),
		Notifier:    feed,
		Feed:        feed,
		Logger:      logger,
		Now:         func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) },
	}, time.Hour)

	if journal == nil {
		journal = NewActivityHandler(nil, logger)
	}

	backendCheck := CheckerFunc(func(ctx context.Context) error { return nil })
	router := NewRouter(Handlers{
		Views:     NewViewHandler(registry, feed, logger),
		Customers: NewCustomerHandler(registry, 1<<20, logger),
		Logs:      NewLogHandler(registry, logger),
		Activity:  journal,
		Health:    NewHealthHandler(backendCheck, feed, nil, logger),
	}, reg, logger)

	return &testServer{backend: b, feed: feed, handler: router}
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	return s.do(t, method, path, &buf, "application/json")
}

func (s *testServer) createView(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/views", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var session struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.ID)
	return session.ID
}

type customerListing struct {
	Items      []models.Customer       `json:"items"`
	Search     string                  `json:"search"`
	Stale      bool                    `json:"stale"`
	Pagination models.PaginationResult `json:"pagination"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestCustomerRoutes_ListAndSearch(t *testing.T) {
	s := newTestServer(t, nil)
	viewID := s.createView(t)

	rec := s.do(t, http.MethodGet, "/views/"+viewID+"/customers?page=1&limit=2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listing customerListing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Len(t, listing.Items, 2)
	assert.Equal(t, int64(3), listing.Pagination.TotalCount)
	assert.Equal(t, 2, listing.Pagination.TotalPages)

	rec = s.do(t, http.MethodGet, "/views/"+viewID+"/customers?q=JANE", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Items, 1)
	assert.Equal(t, "Jane Roe", listing.Items[0].FullName)
	assert.Equal(t, "jane", listing.Search)
}

func TestCustomerRoutes_BadRequests(t *testing.T) {
	s := newTestServer(t, nil)
	viewID := s.createView(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "bad page", method: http.MethodGet, path: "/views/" + viewID + "/customers?page=abc", wantStatus: http.StatusBadRequest, wantCode: models.CodeInvalidInput},
		{name: "zero limit", method: http.MethodGet, path: "/views/" + viewID + "/customers?limit=0", wantStatus: http.StatusBadRequest, wantCode: models.CodeInvalidInput},
		{name: "unknown view", method: http.MethodGet, path: "/views/nope/customers", wantStatus: http.StatusNotFound, wantCode: models.CodeNotFound},
		{name: "invalid json", method: http.MethodPost, path: "/views/" + viewID + "/customers/editor/submit", body: "{", wantStatus: http.StatusBadRequest, wantCode: "INVALID_JSON"},
		{name: "editor closed", method: http.MethodPost, path: "/views/" + viewID + "/customers/editor/submit", body: `{"fullname":"A"}`, wantStatus: http.StatusConflict, wantCode: models.CodeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, strings.NewReader(tt.body), "application/json")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestCustomerRoutes_CreateThroughEditor(t *testing.T) {
	s := newTestServer(t, nil)
	viewID := s.createView(t)
	base := "/views/" + viewID + "/customers"

	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, base, nil, "").Code)

	rec := s.doJSON(t, http.MethodPost, base+"/editor", map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mode":"create"`)

	// Duplicate name is caught locally
	rec = s.doJSON(t, http.MethodPost, base+"/editor/submit", models.CustomerInput{FullName: "john doe", Email: "x@example.com", Mobile: "9999999999"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, models.CodeDuplicate, decodeError(t, rec).Code)

	rec = s.doJSON(t, http.MethodPost, base+"/editor/submit", models.CustomerInput{FullName: "Ann Lee", Email: "ann@example.com", Mobile: "+91 98765 43210"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"open":false`)

	s.backend.mu.Lock()
	require.Len(t, s.backend.created, 1)
	assert.Equal(t, "9876543210", s.backend.created[0].Mobile)
	s.backend.mu.Unlock()

	rec = s.do(t, http.MethodGet, "/views/"+viewID+"/notifications", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var feed struct {
		Notifications []notify.Notification `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	require.Len(t, feed.Notifications, 2)
	assert.Equal(t, notify.LevelError, feed.Notifications[0].Level)
	assert.Equal(t, view.MsgCustomerCreated, feed.Notifications[1].Message)
}

func TestCustomerRoutes_Delete(t *testing.T) {
	s := newTestServer(t, nil)
	viewID := s.createView(t)

	rec := s.do(t, http.MethodDelete, "/views/"+viewID+"/customers/c2", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"c2"}, s.backend.deleted)
}

func TestCustomerRoutes_ImportExport(t *testing.T) {
	s := newTestServer(t, nil)
	viewID := s.createView(t)
	base := "/views/" + viewID + "/customers"

	wb := excelize.NewFile()
	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &[]interface{}{"Full Name", "Email", "Mobile"}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A2", &[]interface{}{"Ravi Kumar", "ravi@example.com", "9811122233"}))
	var file bytes.Buffer
	require.NoError(t, wb.Write(&file))
	require.NoError(t, wb.Close())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "customers.xlsx")
	require.NoError(t, err)
	_, err = part.Write(file.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := s.do(t, http.MethodPost, base+"/import", &body, mw.FormDataContentType())
	require.Equal(t, http.StatusOK, rec.Code)

	var result spreadsheet.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Customers, 1)
	assert.Equal(t, "Ravi Kumar", result.Customers[0].FullName)

	rec = s.do(t, http.MethodGet, base+"/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, spreadsheet.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), spreadsheet.ExportFileName)

	exported, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer exported.Close()
	rows, err := exported.GetRows(spreadsheet.ExportSheet)
	require.NoError(t, err)
	// header and the three backend rows; imported rows stay in the view
	require.Len(t, rows, 4)
	for _, row := range rows[1:] {
		assert.NotEqual(t, "Ravi Kumar", row[1])
	}

	rec = s.do(t, http.MethodDelete, base+"/import", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCustomerRoutes_ImportRejectsFileType(t *testing.T) {
	s := newTestServer(t, nil)
	viewID := s.createView(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "customers.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("a,b,c\n"))
	require.NoError(t, mw.Close())

	rec := s.do(t, http.MethodPost, "/views/"+viewID+"/customers/import", &body, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, spreadsheet.MsgInvalidType, decodeError(t, rec).Message)

	rec = s.do(t, http.MethodPost, "/views/"+viewID+"/customers/import", strings.NewReader("x"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCustomerRoutes_ExportEmpty(t *testing.T) {
	s := newTestServer(t, nil)
	s.backend.customers = nil
	viewID := s.createView(t)

	rec := s.do(t, http.MethodGet, "/views/"+viewID+"/customers/export", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "NO_DATA", decodeError(t, rec).Code)
}

func TestSampleWorkbook(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/customers/sample", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), spreadsheet.SampleFileName)
	assert.NotZero(t, rec.Body.Len())
}

func TestLogRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	viewID := s.createView(t)
	base := "/views/" + viewID + "/logs"

	rec := s.do(t, http.MethodGet, base+"?q=completed", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Items []models.Log `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Items, 1)
	assert.Equal(t, "l2", listing.Items[0].ID)

	rec = s.do(t, http.MethodGet, base+"/customers", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Max Payne")

	rec = s.doJSON(t, http.MethodPost, base+"/editor", map[string]string{"id": "l1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"editing_id":"l1"`)

	rec = s.do(t, http.MethodDelete, base+"/editor", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, base+"/l1", nil, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Log is locked", decodeError(t, rec).Message)
}

func TestDashboardRoute(t *testing.T) {
	s := newTestServer(t, nil)
	viewID := s.createView(t)

	rec := s.do(t, http.MethodGet, "/views/"+viewID+"/dashboard", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary dashboard.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.TotalCustomers)
	assert.Equal(t, 2, summary.TotalLogs)
	assert.False(t, summary.Partial)
}

func TestDashboardRoute_Partial(t *testing.T) {
	s := newTestServer(t, nil)
	s.backend.listErr = errors.New("backend down")
	viewID := s.createView(t)

	rec := s.do(t, http.MethodGet, "/views/"+viewID+"/dashboard", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary dashboard.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.True(t, summary.Partial)
	assert.Zero(t, summary.TotalCustomers)
}

func TestViewLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	viewID := s.createView(t)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/views/"+viewID, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/views/"+viewID, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/views/"+viewID+"/dashboard", nil, "").Code)
}

func TestActivityRoute_Disabled(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/activity", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// fakeJournal records the filter it was listed with
type fakeJournal struct {
	filter repository.NotificationFilter
	items  []*notify.Notification
}

func (f *fakeJournal) Create(ctx context.Context, n *notify.Notification) error {
	f.items = append(f.items, n)
	return nil
}

func (f *fakeJournal) List(ctx context.Context, filter repository.NotificationFilter) ([]*notify.Notification, int64, error) {
	f.filter = filter
	return f.items, int64(len(f.items)), nil
}

func TestActivityRoute(t *testing.T) {
	journal := &fakeJournal{}
	n := notify.New("v1", notify.LevelError, "customer.delete", "Failed to delete")
	require.NoError(t, journal.Create(context.Background(), &n))

	s := newTestServer(t, NewActivityHandler(journal, slog.New(slog.NewTextHandler(io.Discard, nil))))

	rec := s.do(t, http.MethodGet, "/activity?view_id=v1&level=error&page=2&page_size=5", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, repository.NotificationFilter{ViewID: "v1", Level: notify.LevelError, Page: 2, PageSize: 5}, journal.filter)

	var resp ActivityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, "Failed to delete", resp.Notifications[0].Message)
	assert.Equal(t, int64(1), resp.Pagination.TotalCount)

	rec = s.do(t, http.MethodGet, "/activity?level=loud", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "not_configured", health.Services["journal"])

	// Load a page so the store has recorded a fetch
	viewID := s.createView(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/views/"+viewID+"/customers", nil, "").Code)

	rec = s.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/coustmer")
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
