package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketmanager/internal/domain"
	"github.com/spec-kit/ticketmanager/internal/events"
	"github.com/spec-kit/ticketmanager/internal/policy"
	"github.com/spec-kit/ticketmanager/internal/repository"
	apperrors "github.com/spec-kit/ticketmanager/pkg/util/errorutil"
)

const defaultAllocationAttempts = 5

// TicketService coordinates ticket workflows.
type TicketService struct {
	store       repository.Store
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	now         func() time.Time
	maxAttempts int
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
	// MaxAllocationAttempts bounds retries when a ticket number is taken concurrently.
	MaxAllocationAttempts int
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title               string
	Description         string
	Priority            domain.TicketPriority
	EstimatedTime       *string
	EstimatedFinishDate *time.Time
	AssignedToID        *string
	AssignedTeamID      *string
}

// TicketPatch lists editable fields; nil fields are left untouched.
type TicketPatch struct {
	Title               *string
	Description         *string
	Priority            *domain.TicketPriority
	EstimatedTime       *string
	EstimatedFinishDate *time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		store:       deps.Store,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		now:         deps.Clock,
		maxAttempts: deps.MaxAllocationAttempts,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultAllocationAttempts
	}
	return s
}

// CreateTicket opens a new ticket on behalf of actor. Only admins may
// pre-assign a user; anybody may pre-assign a team.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}
	assignedTo := input.AssignedToID
	if !actor.IsAdmin() {
		assignedTo = nil
	}

	var created *domain.Ticket
	for attempt := 1; ; attempt++ {
		err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
			if assignedTo != nil {
				if _, err := activeUser(ctx, repos.Users, *assignedTo); err != nil {
					return err
				}
			}
			if input.AssignedTeamID != nil {
				if _, err := activeTeam(ctx, repos.Teams, *input.AssignedTeamID); err != nil {
					return err
				}
			}

			now := s.now()
			number, err := NextTicketNumber(ctx, repos.Tickets, now)
			if err != nil {
				return err
			}
			ticket := &domain.Ticket{
				TicketNumber:        number,
				Title:               title,
				Description:         strings.TrimSpace(input.Description),
				Status:              domain.TicketStatusOpen,
				Priority:            priority,
				EstimatedTime:       input.EstimatedTime,
				EstimatedFinishDate: input.EstimatedFinishDate,
				CreatedByID:         actor.ID,
				AssignedToID:        assignedTo,
				AssignedTeamID:      input.AssignedTeamID,
				StatusChangedAt:     now,
			}
			if err := repos.Tickets.Create(ctx, ticket); err != nil {
				return err
			}
			if err := appendUserAction(ctx, repos, ticket.ID, actor, "Ticket created"); err != nil {
				return err
			}
			created = ticket
			return nil
		})
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, repository.ErrDuplicateTicketNumber) {
			return nil, mapRepoError(err, "ticket", "")
		}
		s.logger.Warn("ticket number taken, retrying allocation",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.maxAttempts))
		if attempt >= s.maxAttempts {
			return nil, apperrors.NewConflict("could not allocate a unique ticket number", map[string]any{
				"attempts": attempt,
			})
		}
	}
}

// GetTicket returns a ticket with its action history when actor may see it.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.Actor, ticketID string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	repos := s.store.Repos()
	ticket, err := loadTicket(ctx, repos.Tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if scope := BuildTicketFilter(actor, TicketQuery{}).Visibility; scope != nil && !scope.Matches(ticket) {
		return nil, apperrors.NewForbidden("you do not have permission to view this ticket")
	}
	actions, err := repos.Actions.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket.Actions = actions
	return ticket, nil
}

// ListTickets returns one page of the tickets visible to actor that match query.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.Actor, query TicketQuery) (repository.TicketPage, error) {
	if actor == nil {
		return repository.TicketPage{}, apperrors.NewUnauthorized("authentication required")
	}
	if query.Status != nil && !query.Status.Valid() {
		return repository.TicketPage{}, apperrors.NewValidationError("invalid status", map[string]any{"status": *query.Status})
	}
	page, err := s.store.Repos().Tickets.List(ctx, BuildTicketFilter(actor, query), query.Page)
	if err != nil {
		return repository.TicketPage{}, apperrors.MapError(err)
	}
	return page, nil
}

// UpdateTicket applies patch to the ticket's editable fields.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.Actor, ticketID string, patch TicketPatch) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, apperrors.NewValidationError("title cannot be empty", map[string]any{"field": "title"})
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *patch.Priority})
	}

	var updated *domain.Ticket
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		ticket, err := lockTicket(ctx, repos.Tickets, ticketID)
		if err != nil {
			return err
		}
		if err := policy.Authorize(policy.Request{Actor: actor, Ticket: ticket, Action: policy.ActionEdit}); err != nil {
			return err
		}
		if patch.Title != nil {
			ticket.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			ticket.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Priority != nil {
			ticket.Priority = *patch.Priority
		}
		if patch.EstimatedTime != nil {
			ticket.EstimatedTime = patch.EstimatedTime
		}
		if patch.EstimatedFinishDate != nil {
			ticket.EstimatedFinishDate = patch.EstimatedFinishDate
		}
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if err := appendUserAction(ctx, repos, ticket.ID, actor, "Ticket details updated"); err != nil {
			return err
		}
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	return updated, nil
}

// UpdateStatus moves the ticket to target. Requesting the current status
// changes nothing and records no action.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.Actor, ticketID string, target domain.TicketStatus) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !target.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": target})
	}

	var updated *domain.Ticket
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		ticket, err := lockTicket(ctx, repos.Tickets, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status == domain.TicketStatusInProgress && target == domain.TicketStatusPaused {
			return apperrors.NewPreconditionFailed("use pause with a reason to pause an in-progress ticket", map[string]any{
				"status": ticket.Status,
			})
		}
		if err := policy.Authorize(policy.Request{
			Actor:        actor,
			Ticket:       ticket,
			Action:       policy.ActionUpdateStatus,
			TargetStatus: target,
		}); err != nil {
			return err
		}
		updated = ticket
		if ticket.Status == target {
			return nil
		}
		from := ticket.Status
		ticket.Status = target
		ticket.StatusChangedAt = s.now()
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		return appendUserAction(ctx, repos, ticket.ID, actor, fmt.Sprintf("Status updated from %s to %s", from, target))
	})
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	return updated, nil
}

// PauseTicket suspends work on an in-progress ticket, recording the reason.
func (s *TicketService) PauseTicket(ctx context.Context, actor *domain.Actor, ticketID, reason string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	var updated *domain.Ticket
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		ticket, err := lockTicket(ctx, repos.Tickets, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status != domain.TicketStatusInProgress {
			return apperrors.NewPreconditionFailed("only tickets in progress can be paused", map[string]any{
				"status": ticket.Status,
			})
		}
		if err := policy.Authorize(policy.Request{Actor: actor, Ticket: ticket, Action: policy.ActionPause}); err != nil {
			return err
		}
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return apperrors.NewValidationError("a justification is required to pause the ticket", map[string]any{"field": "reason"})
		}
		ticket.Status = domain.TicketStatusPaused
		ticket.StatusChangedAt = s.now()
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if err := appendUserAction(ctx, repos, ticket.ID, actor, "Ticket paused. Reason: "+reason); err != nil {
			return err
		}
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	return updated, nil
}

// AddAction records a work note on an in-progress ticket and emails the
// ticket creator when somebody else wrote it.
func (s *TicketService) AddAction(ctx context.Context, actor *domain.Actor, ticketID, description string) (*domain.TicketAction, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	var (
		ticket *domain.Ticket
		action *domain.TicketAction
	)
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		ticket, err = lockTicket(ctx, repos.Tickets, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status != domain.TicketStatusInProgress {
			return apperrors.NewPreconditionFailed("actions can only be added when ticket is in progress", map[string]any{
				"status": ticket.Status,
			})
		}
		if err := policy.Authorize(policy.Request{Actor: actor, Ticket: ticket, Action: policy.ActionAddAction}); err != nil {
			return err
		}
		description = strings.TrimSpace(description)
		if description == "" {
			return apperrors.NewValidationError("description is required", map[string]any{"field": "description"})
		}
		action = userAction(ticket.ID, actor, description)
		return repos.Actions.Append(ctx, action)
	})
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}

	if ticket.CreatedByID != actor.ID {
		s.publish(ctx, events.EventTicketActionAdded, ticket.ID, &actor.ID, events.TicketActionAddedPayload{
			TicketRef:   ticketRef(ticket),
			CreatorID:   ticket.CreatedByID,
			ActionID:    action.ID,
			Description: action.Description,
		})
	}
	return action, nil
}

// FixUnassignedTicketStatuses resets every ticket without an assignee back to
// OPEN and returns how many were changed. Running it again changes nothing.
func (s *TicketService) FixUnassignedTicketStatuses(ctx context.Context) (int, error) {
	candidates, err := s.store.Repos().Tickets.ListUnassignedNotInStatus(ctx, domain.TicketStatusOpen)
	if err != nil {
		return 0, apperrors.MapError(err)
	}

	fixed := 0
	for _, candidate := range candidates {
		changed := false
		err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
			ticket, err := lockTicket(ctx, repos.Tickets, candidate.ID)
			if err != nil {
				return err
			}
			if ticket.AssignedToID != nil || ticket.Status == domain.TicketStatusOpen {
				return nil
			}
			from := ticket.Status
			ticket.Status = domain.TicketStatusOpen
			ticket.StatusChangedAt = s.now()
			if err := repos.Tickets.Update(ctx, ticket); err != nil {
				return err
			}
			changed = true
			return repos.Actions.Append(ctx, &domain.TicketAction{
				TicketID:    ticket.ID,
				ActorType:   domain.ActorTypeSystem,
				Description: fmt.Sprintf("Status reset from %s to OPEN because the ticket has no assignee", from),
			})
		})
		if err != nil {
			return fixed, mapRepoError(err, "ticket", candidate.ID)
		}
		if changed {
			fixed++
			s.logger.Info("unassigned ticket status reset",
				zap.String("ticket_id", candidate.ID),
				zap.String("ticket_number", candidate.TicketNumber))
		}
	}
	return fixed, nil
}

func (s *TicketService) publish(ctx context.Context, eventType events.EventType, ticketID string, actorID *string, payload any) {
	publishEvent(ctx, s.dispatcher, s.logger, eventType, ticketID, actorID, payload)
}

// publishEvent hands an event to the dispatcher. Failures are logged and
// never reach the caller because the ticket change is already committed.
func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, eventType events.EventType, ticketID string, actorID *string, payload any) {
	if dispatcher == nil {
		return
	}
	event, err := events.NewEvent(eventType, ticketID, actorID, payload)
	if err == nil {
		err = dispatcher.Publish(ctx, event)
	}
	if err != nil {
		logger.Error("failed to publish event",
			zap.String("event_type", string(eventType)),
			zap.String("ticket_id", ticketID),
			zap.Error(err))
	}
}

func ticketRef(ticket *domain.Ticket) events.TicketRef {
	return events.TicketRef{TicketNumber: ticket.TicketNumber, Title: ticket.Title}
}

func loadTicket(ctx context.Context, tickets repository.TicketRepository, ticketID string) (*domain.Ticket, error) {
	ticket, err := tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	return ticket, nil
}

// lockTicket loads a ticket for modification. Callers must be inside
// WithinTx so the row lock lasts until commit.
func lockTicket(ctx context.Context, tickets repository.TicketRepository, ticketID string) (*domain.Ticket, error) {
	ticket, err := tickets.GetByIDForUpdate(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	return ticket, nil
}

func activeUser(ctx context.Context, users repository.UserRepository, userID string) (*domain.User, error) {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "user", userID)
	}
	if !user.Active {
		return nil, apperrors.NewValidationError("user is inactive", map[string]any{"user_id": userID})
	}
	return user, nil
}

func activeTeam(ctx context.Context, teams repository.TeamRepository, teamID string) (*domain.Team, error) {
	team, err := teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, mapRepoError(err, "team", teamID)
	}
	if !team.Active {
		return nil, apperrors.NewValidationError("team is inactive", map[string]any{"team_id": teamID})
	}
	return team, nil
}

func userAction(ticketID string, actor *domain.Actor, description string) *domain.TicketAction {
	actorID := actor.ID
	return &domain.TicketAction{
		TicketID:    ticketID,
		ActorType:   domain.ActorTypeUser,
		ActorID:     &actorID,
		Description: description,
	}
}

func appendUserAction(ctx context.Context, repos repository.Repositories, ticketID string, actor *domain.Actor, description string) error {
	return repos.Actions.Append(ctx, userAction(ticketID, actor, description))
}

// mapRepoError converts repository sentinels to domain errors and passes
// domain errors through unchanged.
func mapRepoError(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, repository.ErrNotFound) {
		details := map[string]any{}
		if id != "" {
			details[resource+"_id"] = id
		}
		return apperrors.NewNotFound(resource, details)
	}
	if errors.Is(err, repository.ErrDuplicateTicketNumber) {
		return apperrors.NewConflict("ticket number already exists", nil)
	}
	return apperrors.MapError(err)
}
