package domain

import "time"

// Notification is an in-app message raised by assignment events.
type Notification struct {
	ID          string
	RecipientID string
	Message     string
	TicketID    *string
	Read        bool
	CreatedAt   time.Time
}
