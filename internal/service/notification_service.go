package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketmanager/internal/domain"
	"github.com/spec-kit/ticketmanager/internal/repository"
	apperrors "github.com/spec-kit/ticketmanager/pkg/util/errorutil"
)

// NotificationService manages in-app notifications.
type NotificationService struct {
	notifications repository.NotificationRepository
	logger        *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(notifications repository.NotificationRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{notifications: notifications, logger: logger}
}

// Notify stores a notification for recipientID. Errors are logged only.
func (n *NotificationService) Notify(ctx context.Context, recipientID, message string, ticketID *string) {
	if n == nil {
		return
	}
	notification := &domain.Notification{
		RecipientID: recipientID,
		Message:     message,
		TicketID:    ticketID,
	}
	if err := n.notifications.Create(ctx, notification); err != nil {
		fields := []zap.Field{zap.String("recipient_id", recipientID), zap.Error(err)}
		if ticketID != nil {
			fields = append(fields, zap.String("ticket_id", *ticketID))
		}
		n.logger.Error("failed to create notification", fields...)
	}
}

// ListUnread returns the actor's unread notifications, newest first.
func (n *NotificationService) ListUnread(ctx context.Context, actor *domain.Actor) ([]domain.Notification, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	items, err := n.notifications.ListUnreadByRecipient(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// MarkRead flags a notification as read. Only its recipient may do so.
func (n *NotificationService) MarkRead(ctx context.Context, actor *domain.Actor, notificationID string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	notification, err := n.notifications.GetByID(ctx, notificationID)
	if err != nil {
		return mapRepoError(err, "notification", notificationID)
	}
	if notification.RecipientID != actor.ID {
		return apperrors.NewForbidden("you can only mark your own notifications as read")
	}
	if notification.Read {
		return nil
	}
	if err := n.notifications.MarkRead(ctx, notificationID); err != nil {
		return mapRepoError(err, "notification", notificationID)
	}
	return nil
}
