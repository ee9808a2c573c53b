package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketAssignedToUser EventType = "ticket_assigned_to_user"
	EventTicketAssignedToTeam EventType = "ticket_assigned_to_team"
	EventTicketActionAdded    EventType = "ticket_action_added"
)

// Event represents a domain event emitted by the lifecycle engine.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	TicketID  string          `json:"ticket_id"`
	ActorID   *string         `json:"actor_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEvent stamps an id and timestamp and encodes the payload.
func NewEvent(eventType EventType, ticketID string, actorID *string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

// DecodePayload unmarshals the payload into v.
func (e Event) DecodePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// TicketRef identifies the ticket an event is about.
type TicketRef struct {
	TicketNumber string `json:"ticket_number"`
	Title        string `json:"title"`
}

// TicketAssignedToUserPayload payload.
type TicketAssignedToUserPayload struct {
	TicketRef
	AssigneeID string `json:"assignee_id"`
}

// TicketAssignedToTeamPayload payload.
type TicketAssignedToTeamPayload struct {
	TicketRef
	TeamID string `json:"team_id"`
}

// TicketActionAddedPayload payload.
type TicketActionAddedPayload struct {
	TicketRef
	CreatorID   string `json:"creator_id"`
	ActionID    string `json:"action_id"`
	Description string `json:"description"`
}
