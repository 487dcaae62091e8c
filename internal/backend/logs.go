package backend

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/Raymond9734/crm-console/internal/models"
)

// LogAPI defines the backend operations on call logs
type LogAPI interface {
	List(ctx context.Context, window models.PageWindow) ([]models.Log, int64, error)
	Create(ctx context.Context, input models.LogInput) error
	Update(ctx context.Context, id string, input models.LogInput) error
	Delete(ctx context.Context, id string) error
}

type logListResponse struct {
	Logs  []models.Log `json:"logs"`
	Total int64        `json:"total"`
}

type logAPI struct {
	client *Client
}

// List fetches one page of logs with customers expanded by the backend
func (a *logAPI) List(ctx context.Context, window models.PageWindow) ([]models.Log, int64, error) {
	var out logListResponse
	err := a.client.do(ctx, http.MethodGet, LogsPath, func(r *resty.Request) {
		r.SetQueryParams(windowParams(window)).SetResult(&out)
	})
	if err != nil {
		return nil, 0, err
	}

	if out.Logs == nil {
		out.Logs = []models.Log{}
	}
	return out.Logs, out.Total, nil
}

// Create adds a log
func (a *logAPI) Create(ctx context.Context, input models.LogInput) error {
	return a.client.do(ctx, http.MethodPost, LogsPath, func(r *resty.Request) {
		r.SetBody(input)
	})
}

// Update replaces the editable fields of a log
func (a *logAPI) Update(ctx context.Context, id string, input models.LogInput) error {
	path, err := itemPath(LogsPath, id)
	if err != nil {
		return err
	}
	return a.client.do(ctx, http.MethodPut, path, func(r *resty.Request) {
		r.SetPathParam("id", id).SetBody(input)
	})
}

// Delete removes a log
func (a *logAPI) Delete(ctx context.Context, id string) error {
	path, err := itemPath(LogsPath, id)
	if err != nil {
		return err
	}
	return a.client.do(ctx, http.MethodDelete, path, func(r *resty.Request) {
		r.SetPathParam("id", id)
	})
}
