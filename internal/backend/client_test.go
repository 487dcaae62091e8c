package backend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raymond9734/crm-console/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client, err := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second, AuthToken: "secret"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{}, slog.Default())
	assert.Error(t, err)
}

func TestCustomerAPI_List(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/coustmer", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"coustmers": []map[string]interface{}{
				{"_id": "c1", "fullname": "John Doe", "email": "john@example.com", "mobile": "9876543210", "createdAt": "2024-05-01T10:00:00Z"},
			},
			"total": 26,
		})
	})

	items, total, err := client.Customers().List(context.Background(), models.PageWindow{Page: 2, Limit: 25})
	require.NoError(t, err)
	assert.Equal(t, int64(26), total)
	require.Len(t, items, 1)
	assert.Equal(t, "John Doe", items[0].FullName)
	assert.Equal(t, 2024, items[0].CreatedAt.Year())
}

func TestCustomerAPI_ListEmptyBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"total": 0})
	})

	items, total, err := client.Customers().List(context.Background(), models.DefaultWindow())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Zero(t, total)
}

func TestCustomerAPI_Writes(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody models.CustomerInput

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	api := client.Customers()
	input := models.CustomerInput{FullName: "Jane", Email: "jane@example.com", Mobile: "9876543210"}

	require.NoError(t, api.Create(context.Background(), input))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/coustmer", gotPath)
	assert.Equal(t, input, gotBody)

	require.NoError(t, api.Update(context.Background(), "c9", input))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/coustmer/c9", gotPath)

	require.NoError(t, api.Delete(context.Background(), "c9"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/coustmer/c9", gotPath)

	err := api.Delete(context.Background(), "")
	assert.True(t, models.HasCode(err, models.CodeInvalidInput))
}

func TestClient_ErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     interface{}
		wantCode string
		wantMsg  string
	}{
		{
			name:     "message field",
			status:   http.StatusBadRequest,
			body:     map[string]string{"message": "Email already registered"},
			wantCode: models.CodeUpstreamError,
			wantMsg:  "Email already registered",
		},
		{
			name:     "error string",
			status:   http.StatusInternalServerError,
			body:     map[string]string{"error": "database down"},
			wantCode: models.CodeUpstreamError,
			wantMsg:  "database down",
		},
		{
			name:     "nested error",
			status:   http.StatusConflict,
			body:     map[string]interface{}{"error": map[string]string{"message": "stale"}},
			wantCode: models.CodeUpstreamError,
			wantMsg:  "stale",
		},
		{
			name:     "no body",
			status:   http.StatusBadGateway,
			body:     map[string]string{},
			wantCode: models.CodeUpstreamError,
			wantMsg:  "Request failed with status code 502",
		},
		{
			name:     "not found",
			status:   http.StatusNotFound,
			body:     map[string]string{"message": "Log not found"},
			wantCode: models.CodeNotFound,
			wantMsg:  "Log not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			err := client.Logs().Create(context.Background(), models.LogInput{Customer: "c1", Status: models.LogStatusBusy})
			require.Error(t, err)
			assert.True(t, models.HasCode(err, tt.wantCode), "got %v", err)
			assert.Equal(t, tt.wantMsg, models.UserMessage(err))
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := New(Config{BaseURL: url, Timeout: time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, _, err = client.Logs().List(context.Background(), models.DefaultWindow())
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeUpstreamUnavailable))
	assert.Error(t, client.Ping(context.Background()))
}

func TestLogAPI_List(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/logs", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"logs": []map[string]interface{}{
				{"_id": "l1", "customer": map[string]string{"_id": "c1", "fullname": "John Doe"}, "status": "busy", "startAt": "2024-05-01T10:00:00Z"},
				{"_id": "l2", "customer": "c2", "status": "completed"},
			},
			"total": 2,
		})
	})

	logs, total, err := client.Logs().List(context.Background(), models.DefaultWindow())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, logs, 2)
	assert.Equal(t, "John Doe", logs[0].CustomerName())
	require.NotNil(t, logs[0].StartAt)
	assert.Nil(t, logs[0].EndsAt)
	assert.Equal(t, "c2", logs[1].CustomerID())
	assert.Equal(t, models.LogStatusCompleted, logs[1].Status)
}
