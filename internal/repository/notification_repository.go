package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticketmanager/internal/domain"
)

type notificationRepository struct {
	db DBTX
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(db DBTX) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (recipient_id, message, ticket_id)
        VALUES ($1,$2,$3)
        RETURNING id, is_read, created_at`
	err := r.db.QueryRow(ctx, query, n.RecipientID, n.Message, n.TicketID).
		Scan(&n.ID, &n.Read, &n.CreatedAt)
	return translateError(err)
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	const query = `
        SELECT id, recipient_id, message, ticket_id, is_read, created_at
        FROM notifications WHERE id=$1`
	n, err := scanNotification(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translateError(err)
	}
	return n, nil
}

func (r *notificationRepository) ListUnreadByRecipient(ctx context.Context, recipientID string) ([]domain.Notification, error) {
	const query = `
        SELECT id, recipient_id, message, ticket_id, is_read, created_at
        FROM notifications WHERE recipient_id=$1 AND is_read=FALSE
        ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE notifications SET is_read=TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	if err := row.Scan(&n.ID, &n.RecipientID, &n.Message, &n.TicketID, &n.Read, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}
