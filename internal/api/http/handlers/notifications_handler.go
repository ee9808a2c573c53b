package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketmanager/internal/api/dto"
	"github.com/spec-kit/ticketmanager/internal/service"
)

// NotificationsHandler serves the caller's in-app notifications.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// ListUnread GET /notifications.
func (h *NotificationsHandler) ListUnread(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	items, err := h.notifications.ListUnread(c.UserContext(), actor)
	if err != nil {
		return err
	}
	resp := make([]dto.NotificationResponse, 0, len(items))
	for _, n := range items {
		resp = append(resp, dto.NotificationResponse{
			ID:        n.ID,
			Message:   n.Message,
			TicketID:  n.TicketID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// MarkRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "notification")
	if err != nil {
		return err
	}
	if err := h.notifications.MarkRead(c.UserContext(), actor, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
