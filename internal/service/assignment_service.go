package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketmanager/internal/domain"
	"github.com/spec-kit/ticketmanager/internal/events"
	"github.com/spec-kit/ticketmanager/internal/policy"
	"github.com/spec-kit/ticketmanager/internal/repository"
	apperrors "github.com/spec-kit/ticketmanager/pkg/util/errorutil"
)

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	store         repository.Store
	notifications *NotificationService
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	now           func() time.Time
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Store         repository.Store
	Notifications *NotificationService
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Clock         func() time.Time
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	s := &AssignmentService{
		store:         deps.Store,
		notifications: deps.Notifications,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		now:           deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// AssignToUser assigns the ticket to userID, or releases it when userID is
// nil. A released ticket goes back to OPEN. The team assignment is kept so
// the ticket falls back to its team.
func (s *AssignmentService) AssignToUser(ctx context.Context, actor *domain.Actor, ticketID string, userID *string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	var (
		ticket   *domain.Ticket
		assignee *domain.User
	)
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		ticket, err = lockTicket(ctx, repos.Tickets, ticketID)
		if err != nil {
			return err
		}
		if err := policy.Authorize(policy.Request{
			Actor:        actor,
			Ticket:       ticket,
			Action:       policy.ActionAssignUser,
			TargetUserID: userID,
		}); err != nil {
			return err
		}

		if userID != nil {
			assignee, err = activeUser(ctx, repos.Users, *userID)
			if err != nil {
				return err
			}
			ticket.AssignedToID = &assignee.ID
			if err := repos.Tickets.Update(ctx, ticket); err != nil {
				return err
			}
			return appendUserAction(ctx, repos, ticket.ID, actor, "Assigned to user: "+assignee.Name)
		}

		ticket.AssignedToID = nil
		reset := ticket.Status != domain.TicketStatusOpen
		from := ticket.Status
		if reset {
			ticket.Status = domain.TicketStatusOpen
			ticket.StatusChangedAt = s.now()
		}
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if err := appendUserAction(ctx, repos, ticket.ID, actor, "Ticket unassigned"); err != nil {
			return err
		}
		if !reset {
			return nil
		}
		return appendUserAction(ctx, repos, ticket.ID, actor,
			fmt.Sprintf("Status automatically changed from %s to OPEN after unassignment", from))
	})
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}

	if assignee != nil {
		s.notifications.Notify(ctx, assignee.ID,
			fmt.Sprintf("You have been assigned to ticket #%s: %s", ticket.TicketNumber, ticket.Title), &ticket.ID)
		publishEvent(ctx, s.dispatcher, s.logger, events.EventTicketAssignedToUser, ticket.ID, &actor.ID,
			events.TicketAssignedToUserPayload{TicketRef: ticketRef(ticket), AssigneeID: assignee.ID})
	}
	return ticket, nil
}

// AssignToTeam hands the ticket to a team, clearing any user assignment, and
// notifies every team member.
func (s *AssignmentService) AssignToTeam(ctx context.Context, actor *domain.Actor, ticketID, teamID string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	var (
		ticket *domain.Ticket
		team   *domain.Team
	)
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		ticket, err = lockTicket(ctx, repos.Tickets, ticketID)
		if err != nil {
			return err
		}
		if err := policy.Authorize(policy.Request{Actor: actor, Ticket: ticket, Action: policy.ActionAssignTeam}); err != nil {
			return err
		}
		team, err = activeTeam(ctx, repos.Teams, teamID)
		if err != nil {
			return err
		}
		ticket.AssignedTeamID = &team.ID
		ticket.AssignedToID = nil
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		return appendUserAction(ctx, repos, ticket.ID, actor, "Assigned to team: "+team.Name)
	})
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}

	message := fmt.Sprintf("Ticket #%s has been assigned to your team %s: %s", ticket.TicketNumber, team.Name, ticket.Title)
	for _, recipientID := range team.Recipients() {
		s.notifications.Notify(ctx, recipientID, message, &ticket.ID)
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.EventTicketAssignedToTeam, ticket.ID, &actor.ID,
		events.TicketAssignedToTeamPayload{TicketRef: ticketRef(ticket), TeamID: team.ID})
	return ticket, nil
}
