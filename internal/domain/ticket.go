package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusPaused     TicketStatus = "PAUSED"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketStatuses lists every reachable status in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusPaused,
	TicketStatusResolved,
	TicketStatusClosed,
}

// Valid reports whether s is one of the defined statuses.
func (s TicketStatus) Valid() bool {
	for _, candidate := range TicketStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityCritical TicketPriority = "CRITICAL"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityLow      TicketPriority = "LOW"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityCritical, TicketPriorityHigh, TicketPriorityMedium, TicketPriorityLow:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
//
// Users and teams are referenced by id only; Actions is populated on read
// from the audit store and ordered by creation time.
type Ticket struct {
	ID                  string
	TicketNumber        string
	Title               string
	Description         string
	Status              TicketStatus
	Priority            TicketPriority
	EstimatedTime       *string
	EstimatedFinishDate *time.Time
	CreatedByID         string
	AssignedToID        *string
	AssignedTeamID      *string
	StatusChangedAt     time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Actions             []TicketAction
}

// IsAssignedTo reports whether the ticket is currently assigned to userID.
func (t *Ticket) IsAssignedTo(userID string) bool {
	return t.AssignedToID != nil && *t.AssignedToID == userID
}

// Clone returns a deep copy safe to mutate independently.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.EstimatedTime = cloneString(t.EstimatedTime)
	c.AssignedToID = cloneString(t.AssignedToID)
	c.AssignedTeamID = cloneString(t.AssignedTeamID)
	if t.EstimatedFinishDate != nil {
		d := *t.EstimatedFinishDate
		c.EstimatedFinishDate = &d
	}
	if t.Actions != nil {
		c.Actions = append([]TicketAction(nil), t.Actions...)
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
