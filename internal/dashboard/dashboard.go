// Package dashboard derives the console's summary counts from the full
// customer and call log collections.
package dashboard

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Raymond9734/crm-console/internal/liststore"
	"github.com/Raymond9734/crm-console/internal/models"
	"github.com/Raymond9734/crm-console/internal/notify"
)

// MsgFetchFailed is shown when either collection cannot be loaded
const MsgFetchFailed = "Error fetching data"

// Summary holds the dashboard figures
type Summary struct {
	TotalCustomers  int                      `json:"total_customers"`
	TotalLogs       int                      `json:"total_logs"`
	PendingLogs     int                      `json:"pending_logs"`
	CompletedLogs   int                      `json:"completed_logs"`
	ActiveCustomers int                      `json:"active_customers"`
	ByStatus        map[models.LogStatus]int `json:"by_status"`
	GeneratedAt     time.Time                `json:"generated_at"`
	Partial         bool                     `json:"partial"`
}

// Aggregate computes a summary from the two collections. A customer is
// active when at least one of its logs is not completed.
func Aggregate(customers []models.Customer, logs []models.Log) Summary {
	s := Summary{
		TotalCustomers: len(customers),
		TotalLogs:      len(logs),
		ByStatus:       make(map[models.LogStatus]int, len(models.LogStatuses)+1),
	}
	for _, status := range models.LogStatuses {
		s.ByStatus[status] = 0
	}
	s.ByStatus[models.LogStatusCompleted] = 0

	open := make(map[string]struct{})
	for i := range logs {
		status := logs[i].Status
		s.ByStatus[status]++

		switch status {
		case models.LogStatusWaiting:
			s.PendingLogs++
		case models.LogStatusCompleted:
			s.CompletedLogs++
		}

		if status != models.LogStatusCompleted {
			if id := logs[i].CustomerID(); id != "" {
				open[id] = struct{}{}
			}
		}
	}

	for i := range customers {
		if _, ok := open[customers[i].ID]; ok {
			s.ActiveCustomers++
		}
	}

	return s
}

// Source is a list store the dashboard refreshes
type Source[T any] interface {
	Key(window models.PageWindow) liststore.Key
	Refresh(ctx context.Context, key liststore.Key) (*liststore.Page[T], error)
}

// Service loads both collections and aggregates them
type Service struct {
	customers Source[models.Customer]
	logs      Source[models.Log]
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a dashboard service
func NewService(customers Source[models.Customer], logs Source[models.Log], logger *slog.Logger) *Service {
	return &Service{
		customers: customers,
		logs:      logs,
		logger:    logger,
		now:       time.Now,
	}
}

// Load refreshes the capped customer and log collections concurrently and
// aggregates them. When a fetch fails the toaster is notified and the
// summary is built from whatever is available, including stale pages.
func (s *Service) Load(ctx context.Context, toaster *notify.Toaster) (Summary, error) {
	var (
		customers []models.Customer
		logs      []models.Log
	)

	// Step 1: fetch both collections; one failing does not cancel the other
	var g errgroup.Group
	g.Go(func() error {
		page, err := s.customers.Refresh(ctx, s.customers.Key(models.AllWindow()))
		if page != nil {
			customers = page.Items
		}
		return err
	})
	g.Go(func() error {
		page, err := s.logs.Refresh(ctx, s.logs.Key(models.AllWindow()))
		if page != nil {
			logs = page.Items
		}
		return err
	})
	err := g.Wait()

	// Step 2: aggregate what is available
	summary := Aggregate(customers, logs)
	summary.GeneratedAt = s.now().UTC()

	if err != nil {
		summary.Partial = true
		s.logger.Error("failed to load dashboard data", slog.String("error", err.Error()))
		toaster.Error(ctx, "dashboard.load", MsgFetchFailed)
		return summary, err
	}

	return summary, nil
}
