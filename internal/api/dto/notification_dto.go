package dto

import "time"

// NotificationResponse is an in-app notification.
type NotificationResponse struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	TicketID  *string   `json:"ticket_id"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
