// Package notify carries user-facing notifications (toasts) from view
// operations to the browser that owns the view.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a notification
type Level string

// Notification levels
const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// IsValid reports whether l is a known level
func (l Level) IsValid() bool {
	switch l {
	case LevelSuccess, LevelError, LevelWarning, LevelInfo:
		return true
	default:
		return false
	}
}

// Notification is a single toast addressed to one view
type Notification struct {
	ID        string    `json:"id"`
	ViewID    string    `json:"view_id"`
	Level     Level     `json:"level"`
	Action    string    `json:"action"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// New builds a notification with a fresh id
func New(viewID string, level Level, action, message string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		ViewID:    viewID,
		Level:     level,
		Action:    action,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

// Notifier delivers notifications
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Feed is a per-view notification queue drained by the browser
type Feed interface {
	Notifier

	// Drain removes and returns up to max pending notifications for a view,
	// oldest first. max < 1 drains everything.
	Drain(ctx context.Context, viewID string, max int) ([]Notification, error)

	// Discard drops every pending notification for a view
	Discard(ctx context.Context, viewID string) error

	// Health checks if the feed is healthy
	Health(ctx context.Context) error

	// Close releases the feed's resources
	Close() error
}

// Toaster sends notifications on behalf of one view. Delivery failures are
// logged and never returned to the caller.
type Toaster struct {
	viewID   string
	notifier Notifier
	logger   *slog.Logger
}

// NewToaster creates a toaster bound to viewID
func NewToaster(viewID string, notifier Notifier, logger *slog.Logger) *Toaster {
	return &Toaster{viewID: viewID, notifier: notifier, logger: logger}
}

// ViewID returns the view this toaster is bound to
func (t *Toaster) ViewID() string {
	return t.viewID
}

// Success sends a success notification
func (t *Toaster) Success(ctx context.Context, action, message string) {
	t.send(ctx, LevelSuccess, action, message)
}

// Error sends an error notification
func (t *Toaster) Error(ctx context.Context, action, message string) {
	t.send(ctx, LevelError, action, message)
}

// Warn sends a warning notification
func (t *Toaster) Warn(ctx context.Context, action, message string) {
	t.send(ctx, LevelWarning, action, message)
}

// Info sends an informational notification
func (t *Toaster) Info(ctx context.Context, action, message string) {
	t.send(ctx, LevelInfo, action, message)
}

func (t *Toaster) send(ctx context.Context, level Level, action, message string) {
	if t == nil || t.notifier == nil {
		return
	}
	n := New(t.viewID, level, action, message)
	if err := t.notifier.Notify(ctx, n); err != nil {
		t.logger.Warn("failed to deliver notification",
			slog.String("view_id", t.viewID),
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}
}

// Fanout delivers to a primary notifier and any number of secondary sinks.
// Only the primary's error is returned; secondary failures are logged.
type Fanout struct {
	primary   Notifier
	secondary []Notifier
	logger    *slog.Logger
}

// NewFanout creates a fanout notifier
func NewFanout(logger *slog.Logger, primary Notifier, secondary ...Notifier) *Fanout {
	return &Fanout{primary: primary, secondary: secondary, logger: logger}
}

// Notify delivers n to every sink
func (f *Fanout) Notify(ctx context.Context, n Notification) error {
	for _, sink := range f.secondary {
		if err := sink.Notify(ctx, n); err != nil {
			f.logger.Warn("secondary notification sink failed",
				slog.String("notification_id", n.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return f.primary.Notify(ctx, n)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify calls f(ctx, n)
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}
