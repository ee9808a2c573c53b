// Package policy holds the authorization rules for ticket mutations.
//
// Each action is described by an ordered list of rules; a rule is a guard
// predicate plus the reason reported when the guard rejects the request.
// Evaluation stops at the first rejecting rule.
package policy

import (
	"github.com/spec-kit/ticketmanager/internal/domain"
	apperrors "github.com/spec-kit/ticketmanager/pkg/util/errorutil"
)

// Action names a guarded ticket mutation.
type Action string

const (
	ActionEdit         Action = "edit"
	ActionUpdateStatus Action = "update_status"
	ActionPause        Action = "pause"
	ActionAddAction    Action = "add_action"
	ActionAssignUser   Action = "assign_user"
	ActionAssignTeam   Action = "assign_team"
)

// Request is the input to a policy decision.
type Request struct {
	Actor  *domain.Actor
	Ticket *domain.Ticket
	Action Action

	// TargetStatus is the requested status for ActionUpdateStatus.
	TargetStatus domain.TicketStatus
	// TargetUserID is the requested assignee for ActionAssignUser; nil releases the ticket.
	TargetUserID *string
}

// Decision is the outcome of evaluating a Request.
type Decision struct {
	Allowed bool
	Reason  string
}

// Err converts a denial into a Forbidden error.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperrors.NewForbidden(d.Reason)
}

// Guard is a predicate over a Request.
type Guard func(Request) bool

// Rule rejects a request with Reason when Allow returns false.
type Rule struct {
	Allow  Guard
	Reason string
}

// AnyOf passes when at least one guard passes.
func AnyOf(guards ...Guard) Guard {
	return func(r Request) bool {
		for _, g := range guards {
			if g(r) {
				return true
			}
		}
		return false
	}
}

// Not inverts a guard.
func Not(g Guard) Guard {
	return func(r Request) bool { return !g(r) }
}

// IsTeamMember reports whether teamID is set and part of the actor's effective team set.
func IsTeamMember(actor *domain.Actor, teamID *string) bool {
	return actor.InTeam(teamID)
}

// IsReopen reports whether moving from -> to reopens a finished ticket.
func IsReopen(from, to domain.TicketStatus) bool {
	finished := from == domain.TicketStatusResolved || from == domain.TicketStatusClosed
	active := to == domain.TicketStatusOpen || to == domain.TicketStatusInProgress
	return finished && active
}

// IsApproval reports whether a status change is the creator approving a resolution.
func IsApproval(actor *domain.Actor, ticket *domain.Ticket, to domain.TicketStatus) bool {
	if actor == nil || ticket == nil {
		return false
	}
	return ticket.CreatedByID == actor.ID &&
		ticket.Status == domain.TicketStatusResolved &&
		to == domain.TicketStatusClosed
}

var (
	isAdmin Guard = func(r Request) bool { return r.Actor.IsAdmin() }

	isAssignedTeamMember Guard = func(r Request) bool {
		return r.Ticket != nil && IsTeamMember(r.Actor, r.Ticket.AssignedTeamID)
	}

	isClosed Guard = func(r Request) bool {
		return r.Ticket != nil && r.Ticket.Status == domain.TicketStatusClosed
	}

	isApproval Guard = func(r Request) bool {
		return IsApproval(r.Actor, r.Ticket, r.TargetStatus)
	}

	isReopen Guard = func(r Request) bool {
		return r.Ticket != nil && IsReopen(r.Ticket.Status, r.TargetStatus)
	}

	isRelease Guard = func(r Request) bool { return r.TargetUserID == nil }

	isSelfAssignment Guard = func(r Request) bool {
		return r.Actor != nil && r.TargetUserID != nil && *r.TargetUserID == r.Actor.ID
	}

	isCurrentAssignee Guard = func(r Request) bool {
		return r.Actor != nil && r.Ticket != nil && r.Ticket.IsAssignedTo(r.Actor.ID)
	}

	adminOrTeam = AnyOf(isAdmin, isAssignedTeamMember)
)

func closedRequiresAdmin(reason string) Rule {
	return Rule{Allow: AnyOf(Not(isClosed), isAdmin), Reason: reason}
}

var rules = map[Action][]Rule{
	ActionEdit: {
		closedRequiresAdmin("only admins can edit closed tickets"),
		{Allow: adminOrTeam, Reason: "you do not have permission to edit this ticket"},
	},
	ActionUpdateStatus: {
		{Allow: AnyOf(isAdmin, isAssignedTeamMember, isApproval), Reason: "you do not have permission to update this ticket's status"},
		{Allow: AnyOf(Not(isReopen), isAdmin), Reason: "only admins can reopen tickets"},
	},
	ActionPause: {
		{Allow: adminOrTeam, Reason: "you do not have permission to pause this ticket"},
	},
	ActionAddAction: {
		{Allow: adminOrTeam, Reason: "you do not have permission to add actions to this ticket"},
	},
	ActionAssignUser: {
		closedRequiresAdmin("only admins can assign closed tickets"),
		{Allow: AnyOf(isAdmin, isRelease, isSelfAssignment), Reason: "only admins can assign tickets to others"},
		{Allow: AnyOf(isAdmin, Not(isRelease), isCurrentAssignee), Reason: "only admins or the current assignee can unassign a ticket"},
	},
	ActionAssignTeam: {
		closedRequiresAdmin("only admins can assign closed tickets"),
		{Allow: isAdmin, Reason: "only admins can assign tickets to teams"},
	},
}

// Evaluate applies the rules registered for req.Action.
func Evaluate(req Request) Decision {
	if req.Actor == nil {
		return Decision{Reason: "authenticated actor required"}
	}
	actionRules, ok := rules[req.Action]
	if !ok {
		return Decision{Reason: "unknown action"}
	}
	for _, rule := range actionRules {
		if !rule.Allow(req) {
			return Decision{Reason: rule.Reason}
		}
	}
	return Decision{Allowed: true}
}

// Authorize evaluates req and returns a Forbidden error on denial.
func Authorize(req Request) error {
	return Evaluate(req).Err()
}
