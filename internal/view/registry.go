package view

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/Raymond9734/crm-console/internal/dashboard"
	"github.com/Raymond9734/crm-console/internal/models"
	"github.com/Raymond9734/crm-console/internal/notify"
)

// MsgViewMissing is returned for an unknown or expired view id
const MsgViewMissing = "View not found"

// Deps are the shared components every view session uses
type Deps struct {
	Customers   Source[models.Customer]
	Logs        Source[models.Log]
	CustomerAPI CustomerWriter
	LogAPI      LogWriter
	Dashboard   *dashboard.Service
	Notifier    notify.Notifier
	Feed        notify.Feed // pending notifications are discarded with the session; may be nil
	Logger      *slog.Logger
	Now         func() time.Time
}

// Session is one mounted console view
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Customers *CustomerView `json:"-"`
	Logs      *LogView      `json:"-"`

	toaster   *notify.Toaster
	dashboard *dashboard.Service
}

// Toaster returns the session's notifier
func (s *Session) Toaster() *notify.Toaster {
	return s.toaster
}

// Dashboard loads the dashboard summary for this session
func (s *Session) Dashboard(ctx context.Context) (dashboard.Summary, error) {
	return s.dashboard.Load(ctx, s.toaster)
}

// Registry owns the live sessions. Sessions idle for longer than the idle
// TTL expire.
type Registry struct {
	sessions *cache.Cache
	deps     Deps
	logger   *slog.Logger
}

// NewRegistry creates a registry
func NewRegistry(deps Deps, idleTTL time.Duration) *Registry {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}

	cleanup := idleTTL / 2
	if cleanup > time.Minute {
		cleanup = time.Minute
	}

	r := &Registry{
		sessions: cache.New(idleTTL, cleanup),
		deps:     deps,
		logger:   deps.Logger,
	}
	r.sessions.OnEvicted(r.evicted)
	return r
}

// Create mounts a new session
func (r *Registry) Create() *Session {
	id := uuid.NewString()
	toaster := notify.NewToaster(id, r.deps.Notifier, r.logger.With(slog.String("view_id", id)))
	logger := r.logger.With(slog.String("view_id", id))

	// Customer edits change the names logs display
	var related []invalidator
	if r.deps.Logs != nil {
		related = append(related, r.deps.Logs)
	}

	s := &Session{
		ID:        id,
		CreatedAt: r.deps.Now().UTC(),
		Customers: newCustomerView(r.deps.Customers, r.deps.CustomerAPI, related, toaster, logger, r.deps.Now),
		Logs:      newLogView(r.deps.Logs, r.deps.Customers, r.deps.LogAPI, toaster, logger),
		toaster:   toaster,
		dashboard: r.deps.Dashboard,
	}

	r.sessions.Set(id, s, cache.DefaultExpiration)
	r.logger.Info("view session created", slog.String("view_id", id))
	return s
}

// Get returns a live session and resets its idle timer
func (r *Registry) Get(id string) (*Session, error) {
	v, ok := r.sessions.Get(id)
	if !ok {
		return nil, models.ErrNotFoundWithMsg(MsgViewMissing)
	}
	s := v.(*Session)
	r.sessions.Set(id, s, cache.DefaultExpiration)
	return s, nil
}

// Discard unmounts a session, dropping its imported rows and pending
// notifications
func (r *Registry) Discard(id string) error {
	if _, ok := r.sessions.Get(id); !ok {
		return models.ErrNotFoundWithMsg(MsgViewMissing)
	}
	r.sessions.Delete(id)
	return nil
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	return r.sessions.ItemCount()
}

func (r *Registry) evicted(id string, _ interface{}) {
	r.logger.Info("view session closed", slog.String("view_id", id))
	if r.deps.Feed == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.deps.Feed.Discard(ctx, id); err != nil {
		r.logger.Warn("failed to discard notifications",
			slog.String("view_id", id),
			slog.String("error", err.Error()),
		)
	}
}
