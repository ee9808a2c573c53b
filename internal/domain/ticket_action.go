package domain

import "time"

// ActorType records who performed an audited action.
type ActorType string

const (
	ActorTypeUser   ActorType = "USER"
	ActorTypeSystem ActorType = "SYSTEM"
)

// TicketAction is an immutable audit trail entry.
type TicketAction struct {
	ID          string
	TicketID    string
	ActorType   ActorType
	ActorID     *string
	Description string
	CreatedAt   time.Time
}
