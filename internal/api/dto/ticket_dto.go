package dto

import (
	"time"

	"github.com/spec-kit/ticketmanager/internal/domain"
)

// CreateTicketRequest payload. Dates use the YYYY-MM-DD layout.
type CreateTicketRequest struct {
	Title               string                `json:"title"`
	Description         string                `json:"description"`
	Priority            domain.TicketPriority `json:"priority"`
	EstimatedTime       *string               `json:"estimated_time"`
	EstimatedFinishDate *string               `json:"estimated_finish_date"`
	AssignedToID        *string               `json:"assigned_to_id"`
	AssignedTeamID      *string               `json:"assigned_team_id"`
}

// UpdateTicketRequest payload; omitted fields are left unchanged.
type UpdateTicketRequest struct {
	Title               *string                `json:"title"`
	Description         *string                `json:"description"`
	Priority            *domain.TicketPriority `json:"priority"`
	EstimatedTime       *string                `json:"estimated_time"`
	EstimatedFinishDate *string                `json:"estimated_finish_date"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// PauseTicketRequest payload.
type PauseTicketRequest struct {
	Reason string `json:"reason"`
}

// AddActionRequest payload.
type AddActionRequest struct {
	Description string `json:"description"`
}

// AssignUserRequest payload; a null user_id releases the ticket.
type AssignUserRequest struct {
	UserID *string `json:"user_id"`
}

// AssignTeamRequest payload.
type AssignTeamRequest struct {
	TeamID string `json:"team_id"`
}

// TicketSummary response.
type TicketSummary struct {
	ID              string                `json:"id"`
	TicketNumber    string                `json:"ticket_number"`
	Title           string                `json:"title"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	CreatedByID     string                `json:"created_by_id"`
	AssignedToID    *string               `json:"assigned_to_id"`
	AssignedTeamID  *string               `json:"assigned_team_id"`
	StatusChangedAt time.Time             `json:"status_changed_at"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description         string                 `json:"description"`
	EstimatedTime       *string                `json:"estimated_time"`
	EstimatedFinishDate *string                `json:"estimated_finish_date"`
	Actions             []TicketActionResponse `json:"actions"`
}

// TicketActionResponse is one audit trail entry.
type TicketActionResponse struct {
	ID          string           `json:"id"`
	ActorType   domain.ActorType `json:"actor_type"`
	ActorID     *string          `json:"actor_id"`
	Description string           `json:"description"`
	CreatedAt   time.Time        `json:"created_at"`
}

// TicketListResponse wraps a page of tickets.
type TicketListResponse struct {
	Data   []TicketSummary `json:"data"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// RepairResponse reports the outcome of the unassigned status repair.
type RepairResponse struct {
	Fixed int `json:"fixed"`
}
