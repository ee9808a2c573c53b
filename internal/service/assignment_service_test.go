package service

import (
	"context"
	"sort"
	"testing"

	"github.com/spec-kit/ticketmanager/internal/domain"
	"github.com/spec-kit/ticketmanager/internal/events"
	apperrors "github.com/spec-kit/ticketmanager/pkg/util/errorutil"
)

func (f *fixture) unread(t *testing.T, userID string) []domain.Notification {
	t.Helper()
	items, err := f.notices.ListUnread(context.Background(), &domain.Actor{ID: userID})
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	return items
}

func TestAssignToUserSelfAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.supportTicket(t, domain.TicketStatusOpen)

	assigned, err := f.assignments.AssignToUser(ctx, f.alice, ticket.ID, strPtr("alice"))
	if err != nil {
		t.Fatalf("self assign: %v", err)
	}
	if !assigned.IsAssignedTo("alice") {
		t.Fatalf("ticket not assigned to alice")
	}
	if assigned.AssignedTeamID == nil || *assigned.AssignedTeamID != "support" {
		t.Errorf("team assignment should be kept")
	}

	actions := f.actions(t, ticket.ID)
	if last := actions[len(actions)-1].Description; last != "Assigned to user: Alice" {
		t.Errorf("last action = %q", last)
	}
	notes := f.unread(t, "alice")
	if len(notes) != 1 || notes[0].TicketID == nil || *notes[0].TicketID != ticket.ID {
		t.Fatalf("notifications = %+v", notes)
	}
	if got := len(f.dispatcher.ofType(events.EventTicketAssignedToUser)); got != 1 {
		t.Errorf("assignment events = %d, want 1", got)
	}
}

func TestAssignToUserAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	open := f.supportTicket(t, domain.TicketStatusOpen)
	closed := f.supportTicket(t, domain.TicketStatusClosed)

	tests := []struct {
		name   string
		actor  *domain.Actor
		ticket string
		target *string
		code   string
	}{
		{"non-admin assigns someone else", f.alice, open.ID, strPtr("bob"), apperrors.CodeForbidden},
		{"non-admin on closed ticket", f.alice, closed.ID, strPtr("alice"), apperrors.CodeForbidden},
		{"non-assignee releases", f.bob, open.ID, nil, apperrors.CodeForbidden},
		{"unknown user", f.admin, open.ID, strPtr("ghost"), apperrors.CodeNotFound},
		{"inactive user", f.admin, open.ID, strPtr("gone"), apperrors.CodeValidation},
		{"unknown ticket", f.admin, "missing", strPtr("alice"), apperrors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.assignments.AssignToUser(ctx, tt.actor, tt.ticket, tt.target)
			assertCode(t, err, tt.code)
		})
	}

	if _, err := f.assignments.AssignToUser(ctx, f.admin, closed.ID, strPtr("bob")); err != nil {
		t.Errorf("admin assigns closed ticket: %v", err)
	}
}

func TestUnassignResetsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.supportTicket(t, domain.TicketStatusOpen)
	if _, err := f.assignments.AssignToUser(ctx, f.alice, ticket.ID, strPtr("alice")); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.tickets.UpdateStatus(ctx, f.alice, ticket.ID, domain.TicketStatusInProgress); err != nil {
		t.Fatalf("status: %v", err)
	}
	before := len(f.actions(t, ticket.ID))

	released, err := f.assignments.AssignToUser(ctx, f.alice, ticket.ID, nil)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.AssignedToID != nil {
		t.Errorf("assignee still set")
	}
	if released.Status != domain.TicketStatusOpen {
		t.Errorf("status = %s, want OPEN", released.Status)
	}

	actions := f.actions(t, ticket.ID)
	if got := len(actions) - before; got != 2 {
		t.Fatalf("release appended %d actions, want 2", got)
	}
	if actions[before].Description != "Ticket unassigned" {
		t.Errorf("first release action = %q", actions[before].Description)
	}
}

func TestUnassignOpenTicketWritesOneEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.supportTicket(t, domain.TicketStatusOpen)
	if _, err := f.assignments.AssignToUser(ctx, f.admin, ticket.ID, strPtr("bob")); err != nil {
		t.Fatalf("assign: %v", err)
	}
	before := len(f.actions(t, ticket.ID))

	if _, err := f.assignments.AssignToUser(ctx, f.admin, ticket.ID, nil); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := len(f.actions(t, ticket.ID)) - before; got != 1 {
		t.Errorf("release appended %d actions, want 1", got)
	}
	if got := len(f.dispatcher.ofType(events.EventTicketAssignedToUser)); got != 1 {
		t.Errorf("release must not emit assignment events, got %d total", got)
	}
}

func TestAssignToTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket, err := f.tickets.CreateTicket(ctx, f.admin, TicketCreateInput{Title: "x", AssignedToID: strPtr("carol")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = f.assignments.AssignToTeam(ctx, f.alice, ticket.ID, "support")
	assertCode(t, err, apperrors.CodeForbidden)
	_, err = f.assignments.AssignToTeam(ctx, f.admin, ticket.ID, "nope")
	assertCode(t, err, apperrors.CodeNotFound)
	_, err = f.assignments.AssignToTeam(ctx, f.admin, ticket.ID, "legacy")
	assertCode(t, err, apperrors.CodeValidation)

	assigned, err := f.assignments.AssignToTeam(ctx, f.admin, ticket.ID, "support")
	if err != nil {
		t.Fatalf("assign team: %v", err)
	}
	if assigned.AssignedToID != nil {
		t.Errorf("user assignment should be cleared")
	}
	if assigned.AssignedTeamID == nil || *assigned.AssignedTeamID != "support" {
		t.Errorf("team not set")
	}

	actions := f.actions(t, ticket.ID)
	if last := actions[len(actions)-1].Description; last != "Assigned to team: Support" {
		t.Errorf("last action = %q", last)
	}

	var notified []string
	for _, id := range []string{"alice", "leader", "bob", "carol"} {
		if len(f.unread(t, id)) > 0 {
			notified = append(notified, id)
		}
	}
	sort.Strings(notified)
	if len(notified) != 2 || notified[0] != "alice" || notified[1] != "leader" {
		t.Errorf("notified = %v, want [alice leader]", notified)
	}
	if got := len(f.dispatcher.ofType(events.EventTicketAssignedToTeam)); got != 1 {
		t.Errorf("team events = %d, want 1", got)
	}
}

func TestAssignToTeamClosedTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	closed := f.supportTicket(t, domain.TicketStatusClosed)

	_, err := f.assignments.AssignToTeam(ctx, f.alice, closed.ID, "billing")
	assertCode(t, err, apperrors.CodeForbidden)
	if _, err := f.assignments.AssignToTeam(ctx, f.admin, closed.ID, "billing"); err != nil {
		t.Errorf("admin assigns closed ticket: %v", err)
	}
}
