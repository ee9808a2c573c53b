package service

import (
	"time"

	"github.com/spec-kit/ticketmanager/internal/domain"
	"github.com/spec-kit/ticketmanager/internal/repository"
)

// TicketQuery carries the caller supplied ticket list criteria.
// Date bounds are interpreted at day granularity.
type TicketQuery struct {
	AssignedToID      *string
	AssignedToMe      bool
	AssignedTeamID    *string
	CreatedFrom       *time.Time
	CreatedTo         *time.Time
	Status            *domain.TicketStatus
	StatusChangedFrom *time.Time
	Page              repository.Page
}

// BuildTicketFilter turns a query into a store filter. Non-admin callers are
// restricted to tickets of their teams or tickets assigned to or created by
// them.
func BuildTicketFilter(actor *domain.Actor, query TicketQuery) repository.TicketFilter {
	var filter repository.TicketFilter

	if !actor.IsAdmin() {
		scope := repository.VisibilityScope{}
		if actor != nil {
			scope.UserID = actor.ID
			scope.TeamIDs = append([]string(nil), actor.TeamIDs...)
		}
		filter.Visibility = &scope
	}

	switch {
	case query.AssignedToMe && actor != nil:
		id := actor.ID
		filter.AssignedToID = &id
	case query.AssignedToID != nil:
		filter.AssignedToID = query.AssignedToID
	}
	filter.AssignedTeamID = query.AssignedTeamID
	filter.Status = query.Status

	if query.CreatedFrom != nil {
		from := startOfDay(*query.CreatedFrom)
		filter.CreatedFrom = &from
	}
	if query.CreatedTo != nil {
		// end of day inclusive
		before := startOfDay(*query.CreatedTo).AddDate(0, 0, 1)
		filter.CreatedBefore = &before
	}
	if query.StatusChangedFrom != nil {
		from := startOfDay(*query.StatusChangedFrom)
		filter.StatusChangedFrom = &from
	}
	return filter
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
