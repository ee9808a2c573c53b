package policy

import (
	"testing"

	"github.com/spec-kit/ticketmanager/internal/domain"
	apperrors "github.com/spec-kit/ticketmanager/pkg/util/errorutil"
)

func strPtr(s string) *string { return &s }

var (
	admin    = &domain.Actor{ID: "admin", Role: domain.RoleAdmin}
	member   = &domain.Actor{ID: "member", Role: domain.RoleUser, TeamIDs: []string{"team-1"}}
	creator  = &domain.Actor{ID: "creator", Role: domain.RoleUser}
	outsider = &domain.Actor{ID: "outsider", Role: domain.RoleUser, TeamIDs: []string{"team-2"}}
)

func ticketIn(status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{
		ID:             "t1",
		Status:         status,
		CreatedByID:    "creator",
		AssignedTeamID: strPtr("team-1"),
	}
}

func TestUpdateStatus(t *testing.T) {
	tests := []struct {
		name   string
		actor  *domain.Actor
		from   domain.TicketStatus
		to     domain.TicketStatus
		allow  bool
		reason string
	}{
		{"admin any", admin, domain.TicketStatusOpen, domain.TicketStatusResolved, true, ""},
		{"member progresses", member, domain.TicketStatusOpen, domain.TicketStatusInProgress, true, ""},
		{"outsider denied", outsider, domain.TicketStatusOpen, domain.TicketStatusInProgress, false, "you do not have permission to update this ticket's status"},
		{"creator approves", creator, domain.TicketStatusResolved, domain.TicketStatusClosed, true, ""},
		{"creator cannot resolve", creator, domain.TicketStatusInProgress, domain.TicketStatusResolved, false, "you do not have permission to update this ticket's status"},
		{"creator cannot close open", creator, domain.TicketStatusOpen, domain.TicketStatusClosed, false, "you do not have permission to update this ticket's status"},
		{"member cannot reopen resolved", member, domain.TicketStatusResolved, domain.TicketStatusOpen, false, "only admins can reopen tickets"},
		{"member cannot reopen closed", member, domain.TicketStatusClosed, domain.TicketStatusInProgress, false, "only admins can reopen tickets"},
		{"admin reopens closed", admin, domain.TicketStatusClosed, domain.TicketStatusOpen, true, ""},
		{"member closes resolved", member, domain.TicketStatusResolved, domain.TicketStatusClosed, true, ""},
		{"member pauses closed is not a reopen", member, domain.TicketStatusClosed, domain.TicketStatusPaused, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(Request{
				Actor:        tt.actor,
				Ticket:       ticketIn(tt.from),
				Action:       ActionUpdateStatus,
				TargetStatus: tt.to,
			})
			if d.Allowed != tt.allow {
				t.Fatalf("allowed = %v, want %v (reason %q)", d.Allowed, tt.allow, d.Reason)
			}
			if d.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", d.Reason, tt.reason)
			}
		})
	}
}

func TestApprovalRequiresCreator(t *testing.T) {
	ticket := ticketIn(domain.TicketStatusResolved)
	ticket.AssignedTeamID = nil

	if !IsApproval(creator, ticket, domain.TicketStatusClosed) {
		t.Fatal("expected creator approval")
	}
	if IsApproval(outsider, ticket, domain.TicketStatusClosed) {
		t.Error("outsider must not approve")
	}
	if IsApproval(creator, ticket, domain.TicketStatusPaused) {
		t.Error("approval only targets CLOSED")
	}
}

func TestEditClosedTicket(t *testing.T) {
	err := Authorize(Request{Actor: member, Ticket: ticketIn(domain.TicketStatusClosed), Action: ActionEdit})
	if !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := Authorize(Request{Actor: admin, Ticket: ticketIn(domain.TicketStatusClosed), Action: ActionEdit}); err != nil {
		t.Fatalf("admin edit closed: %v", err)
	}
	if err := Authorize(Request{Actor: member, Ticket: ticketIn(domain.TicketStatusPaused), Action: ActionEdit}); err != nil {
		t.Fatalf("member edit paused: %v", err)
	}
	if err := Authorize(Request{Actor: creator, Ticket: ticketIn(domain.TicketStatusOpen), Action: ActionEdit}); err == nil {
		t.Fatal("creator outside team must not edit")
	}
}

func TestAssignUser(t *testing.T) {
	assigned := ticketIn(domain.TicketStatusInProgress)
	assigned.AssignedToID = strPtr("member")

	tests := []struct {
		name   string
		actor  *domain.Actor
		ticket *domain.Ticket
		target *string
		reason string
	}{
		{"admin assigns other", admin, ticketIn(domain.TicketStatusOpen), strPtr("member"), ""},
		{"self assign", outsider, ticketIn(domain.TicketStatusOpen), strPtr("outsider"), ""},
		{"assign other", member, ticketIn(domain.TicketStatusOpen), strPtr("outsider"), "only admins can assign tickets to others"},
		{"assignee releases", member, assigned, nil, ""},
		{"non assignee releases", outsider, assigned, nil, "only admins or the current assignee can unassign a ticket"},
		{"admin releases", admin, assigned, nil, ""},
		{"closed self assign", member, ticketIn(domain.TicketStatusClosed), strPtr("member"), "only admins can assign closed tickets"},
		{"admin closed", admin, ticketIn(domain.TicketStatusClosed), strPtr("member"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(Request{Actor: tt.actor, Ticket: tt.ticket, Action: ActionAssignUser, TargetUserID: tt.target})
			if d.Allowed != (tt.reason == "") {
				t.Fatalf("allowed = %v, reason %q", d.Allowed, d.Reason)
			}
			if d.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", d.Reason, tt.reason)
			}
		})
	}
}

func TestAssignTeamIsAdminOnly(t *testing.T) {
	if err := Authorize(Request{Actor: admin, Ticket: ticketIn(domain.TicketStatusOpen), Action: ActionAssignTeam}); err != nil {
		t.Fatalf("admin: %v", err)
	}
	d := Evaluate(Request{Actor: member, Ticket: ticketIn(domain.TicketStatusOpen), Action: ActionAssignTeam})
	if d.Allowed || d.Reason != "only admins can assign tickets to teams" {
		t.Fatalf("unexpected decision %+v", d)
	}
	d = Evaluate(Request{Actor: member, Ticket: ticketIn(domain.TicketStatusClosed), Action: ActionAssignTeam})
	if d.Reason != "only admins can assign closed tickets" {
		t.Fatalf("closed check should run first, got %q", d.Reason)
	}
}

func TestPauseAndAddActionRequireTeam(t *testing.T) {
	for _, action := range []Action{ActionPause, ActionAddAction} {
		if err := Authorize(Request{Actor: member, Ticket: ticketIn(domain.TicketStatusInProgress), Action: action}); err != nil {
			t.Errorf("%s member: %v", action, err)
		}
		if err := Authorize(Request{Actor: outsider, Ticket: ticketIn(domain.TicketStatusInProgress), Action: action}); err == nil {
			t.Errorf("%s outsider should be denied", action)
		}
	}
}

func TestEvaluateWithoutActor(t *testing.T) {
	d := Evaluate(Request{Ticket: ticketIn(domain.TicketStatusOpen), Action: ActionEdit})
	if d.Allowed {
		t.Fatal("nil actor must be denied")
	}
	if d := Evaluate(Request{Actor: admin, Action: Action("delete")}); d.Allowed {
		t.Fatal("unknown action must be denied")
	}
}

func TestIsTeamMemberNilTeam(t *testing.T) {
	if IsTeamMember(member, nil) {
		t.Error("nil team never matches")
	}
	if !IsTeamMember(member, strPtr("team-1")) {
		t.Error("expected membership")
	}
}
