// Package worker writes console notifications to the activity journal in
// the background.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Raymond9734/crm-console/internal/notify"
)

// ErrQueueFull is returned by Notify when the journal backlog is at capacity
var ErrQueueFull = errors.New("journal queue is full")

// JournalStore persists one notification
type JournalStore interface {
	Create(ctx context.Context, n *notify.Notification) error
}

// Config holds journal writer settings
type Config struct {
	QueueSize     int
	MaxRetryCount int
	RetryDelay    time.Duration
}

// JournalWriter queues notifications and writes them to a JournalStore
type JournalWriter struct {
	store      JournalStore
	jobs       chan notify.Notification
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewJournalWriter creates a journal writer. Run must be started for
// queued notifications to be written.
func NewJournalWriter(store JournalStore, cfg Config, logger *slog.Logger) *JournalWriter {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 256
	}
	if cfg.MaxRetryCount < 1 {
		cfg.MaxRetryCount = 3
	}
	return &JournalWriter{
		store:      store,
		jobs:       make(chan notify.Notification, cfg.QueueSize),
		maxRetries: cfg.MaxRetryCount,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

// Notify enqueues n without waiting for the write
func (w *JournalWriter) Notify(ctx context.Context, n notify.Notification) error {
	select {
	case w.jobs <- n:
		return nil
	default:
		w.logger.Warn("journal queue full, dropping notification",
			slog.String("notification_id", n.ID),
			slog.String("view_id", n.ViewID),
		)
		return ErrQueueFull
	}
}

// Run writes queued notifications until ctx is cancelled, then flushes what
// is already queued using flushTimeout as the deadline.
func (w *JournalWriter) Run(ctx context.Context, flushTimeout time.Duration) error {
	w.logger.Info("journal writer started", slog.Int("max_retry_count", w.maxRetries))

	for {
		select {
		case n := <-w.jobs:
			w.Process(ctx, n)

		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			flushed := w.flush(flushCtx)
			cancel()

			w.logger.Info("journal writer stopped", slog.Int("flushed", flushed))
			return ctx.Err()
		}
	}
}

func (w *JournalWriter) flush(ctx context.Context) int {
	count := 0
	for {
		select {
		case n := <-w.jobs:
			if w.Process(ctx, n) == nil {
				count++
			}
		default:
			return count
		}
	}
}

// Process writes one notification, retrying up to the configured count
func (w *JournalWriter) Process(ctx context.Context, n notify.Notification) error {
	var err error
	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		if err = w.store.Create(ctx, &n); err == nil {
			return nil
		}

		w.logger.Warn("journal write failed",
			slog.String("notification_id", n.ID),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", w.maxRetries),
			slog.String("error", err.Error()),
		)

		if attempt == w.maxRetries {
			break
		}

		// Linear backoff between attempts
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * w.retryDelay):
		}
	}

	w.logger.Error("journal write permanently failed",
		slog.String("notification_id", n.ID),
		slog.String("view_id", n.ViewID),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("journal write failed after %d attempts: %w", w.maxRetries, err)
}

// Pending returns the number of queued notifications
func (w *JournalWriter) Pending() int {
	return len(w.jobs)
}
