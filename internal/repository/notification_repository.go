package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Raymond9734/crm-console/internal/models"
	"github.com/Raymond9734/crm-console/internal/notify"
)

// NotificationFilter narrows a journal listing
type NotificationFilter struct {
	ViewID   string
	Level    notify.Level
	Page     int
	PageSize int
}

// NotificationRepository defines the interface for the notification journal
type NotificationRepository interface {
	Create(ctx context.Context, n *notify.Notification) error
	List(ctx context.Context, filter NotificationFilter) ([]*notify.Notification, int64, error)
}

// notificationRepository implements NotificationRepository using PostgreSQL
type notificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create inserts a notification
func (r *notificationRepository) Create(ctx context.Context, n *notify.Notification) error {
	query := `
		INSERT INTO console_notifications (id, view_id, level, action, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(
		ctx,
		query,
		n.ID,
		n.ViewID,
		string(n.Level),
		n.Action,
		n.Message,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// List retrieves journaled notifications, newest first
func (r *notificationRepository) List(ctx context.Context, filter NotificationFilter) ([]*notify.Notification, int64, error) {
	// Validate and set defaults
	models.ValidateAndSetDefaults(&filter.Page, &filter.PageSize)

	// Build query with filters
	query := `
		SELECT id, view_id, level, action, message, created_at
		FROM console_notifications
		WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM console_notifications WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter.ViewID != "" {
		query += fmt.Sprintf(" AND view_id = $%d", argPos)
		countQuery += fmt.Sprintf(" AND view_id = $%d", argPos)
		args = append(args, filter.ViewID)
		argPos++
	}

	if filter.Level != "" {
		query += fmt.Sprintf(" AND level = $%d", argPos)
		countQuery += fmt.Sprintf(" AND level = $%d", argPos)
		args = append(args, string(filter.Level))
		argPos++
	}

	// Get total count
	var totalCount int64
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	// Add pagination
	offset := models.CalculateOffset(filter.Page, filter.PageSize)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*notify.Notification{}
	for rows.Next() {
		n := &notify.Notification{}
		var level string
		if err := rows.Scan(&n.ID, &n.ViewID, &level, &n.Action, &n.Message, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Level = notify.Level(level)
		notifications = append(notifications, n)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, totalCount, nil
}
