package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/ticketmanager/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateTicketNumber is returned when a ticket number is already taken.
	ErrDuplicateTicketNumber = errors.New("ticket number already exists")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// VisibilityScope restricts results to tickets the caller may see.
type VisibilityScope struct {
	UserID  string
	TeamIDs []string
}

// Matches reports whether the ticket belongs to one of the scope's teams,
// is assigned to the scope user, or was created by the scope user.
func (v VisibilityScope) Matches(t *domain.Ticket) bool {
	if t.AssignedTeamID != nil {
		for _, id := range v.TeamIDs {
			if id == *t.AssignedTeamID {
				return true
			}
		}
	}
	return t.IsAssignedTo(v.UserID) || t.CreatedByID == v.UserID
}

// TicketFilter is the conjunction of predicates applied to ticket queries.
// Nil fields are ignored.
type TicketFilter struct {
	Visibility        *VisibilityScope
	AssignedToID      *string
	AssignedTeamID    *string
	Status            *domain.TicketStatus
	CreatedFrom       *time.Time // inclusive
	CreatedBefore     *time.Time // exclusive
	StatusChangedFrom *time.Time // inclusive
}

// Matches evaluates the filter against a single ticket.
func (f TicketFilter) Matches(t *domain.Ticket) bool {
	if f.Visibility != nil && !f.Visibility.Matches(t) {
		return false
	}
	if f.AssignedToID != nil && !t.IsAssignedTo(*f.AssignedToID) {
		return false
	}
	if f.AssignedTeamID != nil && (t.AssignedTeamID == nil || *t.AssignedTeamID != *f.AssignedTeamID) {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedBefore != nil && !t.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	if f.StatusChangedFrom != nil && t.StatusChangedAt.Before(*f.StatusChangedFrom) {
		return false
	}
	return true
}

// Page selects a window of results.
type Page struct {
	Limit  int
	Offset int
}

// Normalize applies defaults and bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// TicketPage is one page of tickets plus the total match count.
type TicketPage struct {
	Items  []domain.Ticket
	Total  int
	Limit  int
	Offset int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetByIDForUpdate loads a ticket and locks it for the rest of the
	// transaction. Outside WithinTx it behaves like GetByID.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter, page Page) (TicketPage, error)
	LatestNumberWithPrefix(ctx context.Context, prefix string) (string, bool, error)
	ListUnassignedNotInStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error)
}

// TicketActionRepository stores the append-only audit trail.
type TicketActionRepository interface {
	Append(ctx context.Context, action *domain.TicketAction) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketAction, error)
}

// NotificationRepository stores in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListUnreadByRecipient(ctx context.Context, recipientID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// UserRepository defines persistence access for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// TeamRepository manages persistence for teams.
type TeamRepository interface {
	Create(ctx context.Context, team *domain.Team) error
	GetByID(ctx context.Context, id string) (*domain.Team, error)
	AddMember(ctx context.Context, teamID, userID string) error
	ListLedBy(ctx context.Context, userID string) ([]domain.Team, error)
}

// Repositories bundles the repositories bound to one connection or transaction.
type Repositories struct {
	Tickets       TicketRepository
	Actions       TicketActionRepository
	Notifications NotificationRepository
	Users         UserRepository
	Teams         TeamRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repos() Repositories
	// WithinTx runs fn against transaction-bound repositories. Every write made
	// through them is committed when fn returns nil and discarded otherwise.
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}
