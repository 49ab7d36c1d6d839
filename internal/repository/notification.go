package repository

import (
	"context"
	"time"

	"shuttle/internal/domain"
)

// NotificationRepository defines the persistence operations for notifications.
type NotificationRepository interface {
	// Create persists a notification.
	Create(ctx context.Context, notification *domain.Notification) error

	// ListByRecipient returns the newest notifications of a recipient.
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*domain.Notification, error)

	// MarkRead sets read_at on a notification owned by the recipient.
	MarkRead(ctx context.Context, id, recipientID string, at time.Time) error
}
