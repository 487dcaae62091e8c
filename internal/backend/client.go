// Package backend is the console's data-access layer for the CRM REST
// backend. Every client is built from an explicit Config; nothing in the
// package holds process-wide connection state.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Raymond9734/crm-console/internal/models"
)

// Resource paths exposed by the CRM backend
const (
	CustomersPath = "/coustmer"
	LogsPath      = "/logs"
)

// Config holds the backend connection settings
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	AuthToken string
}

// Client talks to the CRM backend over HTTP
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// New creates a backend client from cfg
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.AuthToken != "" {
		httpClient.SetAuthToken(cfg.AuthToken)
	}

	return &Client{
		http:   httpClient,
		logger: logger,
	}, nil
}

// Customers returns the customer resource API
func (c *Client) Customers() CustomerAPI {
	return &customerAPI{client: c}
}

// Logs returns the call log resource API
func (c *Client) Logs() LogAPI {
	return &logAPI{client: c}
}

// Ping checks that the backend answers a minimal list request
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.Customers().List(ctx, models.PageWindow{Page: 1, Limit: 1})
	return err
}

// errorBody captures the usual shapes of a backend error payload:
// {"message": "..."} or {"error": "..."} or {"error": {"message": "..."}}.
type errorBody struct {
	Message string          `json:"message"`
	Err     json.RawMessage `json:"error"`
}

func (b *errorBody) text() string {
	if b.Message != "" {
		return b.Message
	}
	if len(b.Err) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(b.Err, &s); err == nil {
		return s
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b.Err, &nested); err == nil {
		return nested.Message
	}
	return ""
}

// do executes a prepared request and converts transport failures and error
// statuses into AppErrors.
func (c *Client) do(ctx context.Context, method, path string, prepare func(*resty.Request)) error {
	var apiErr errorBody
	req := c.http.R().
		SetContext(ctx).
		SetError(&apiErr)
	if prepare != nil {
		prepare(req)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Warn("backend request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return models.ErrUnavailable("Network Error", err)
	}

	if resp.IsError() {
		message := apiErr.text()
		if message == "" {
			message = "Request failed with status code " + strconv.Itoa(resp.StatusCode())
		}

		c.logger.Warn("backend returned error",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode()),
			slog.String("message", message),
		)

		if resp.StatusCode() == http.StatusNotFound {
			return models.ErrNotFoundWithMsg(message)
		}
		return models.ErrUpstream(message)
	}

	return nil
}

func windowParams(w models.PageWindow) map[string]string {
	w = w.Normalize()
	return map[string]string{
		"page":  strconv.Itoa(w.Page),
		"limit": strconv.Itoa(w.Limit),
	}
}

func itemPath(base, id string) (string, error) {
	if id == "" {
		return "", models.ErrInvalidInput("id is required")
	}
	return fmt.Sprintf("%s/{id}", base), nil
}
