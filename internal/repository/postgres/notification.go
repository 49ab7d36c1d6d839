package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// NotificationRepository is a PostgreSQL implementation of repository.NotificationRepository.
type NotificationRepository struct {
	q Querier
}

// Create persists a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notificacoes (id, recipient_id, trip_id, type, title, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.q.QueryRowContext(ctx, query,
		n.ID,
		n.RecipientID,
		toNullString(n.TripID),
		n.Type,
		n.Title,
		n.Message,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

// ListByRecipient returns the newest notifications of a recipient.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*domain.Notification, error) {
	query := `
		SELECT id, recipient_id, COALESCE(trip_id, ''), type, title, message, read_at, created_at
		FROM notificacoes
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.TripID, &n.Type, &n.Title, &n.Message, &readAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.ReadAt = nullTime(readAt)
		notifications = append(notifications, &n)
	}

	return notifications, rows.Err()
}

// MarkRead sets read_at on a notification owned by the recipient. Already-read
// notifications keep their original read_at.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string, at time.Time) error {
	query := `
		UPDATE notificacoes
		SET read_at = COALESCE(read_at, $1)
		WHERE id = $2 AND recipient_id = $3
	`

	result, err := r.q.ExecContext(ctx, query, at, id, recipientID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Ensure NotificationRepository implements repository.NotificationRepository.
var _ repository.NotificationRepository = (*NotificationRepository)(nil)
