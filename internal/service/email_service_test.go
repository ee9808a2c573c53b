package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/spec-kit/ticketmanager/internal/config"
	"github.com/spec-kit/ticketmanager/internal/domain"
)

type recordingMailer struct {
	mu     sync.Mutex
	sent   []Email
	failTo string
}

func (m *recordingMailer) Send(_ context.Context, email Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if email.To == m.failTo {
		return errors.New("smtp refused")
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *recordingMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.sent {
		out = append(out, e.To)
	}
	sort.Strings(out)
	return out
}

func newEmailFixture(t *testing.T) (*fixture, *recordingMailer) {
	t.Helper()
	f := newFixture(t)
	mailer := &recordingMailer{}
	emails := NewEmailService(f.store.Repos(), mailer, nil, config.NotificationConfig{EmailFrom: "desk@example.com"})
	emails.RegisterHandlers(f.dispatcher)
	return f, mailer
}

func TestEmailOnUserAssignment(t *testing.T) {
	f, mailer := newEmailFixture(t)
	ticket := f.supportTicket(t, domain.TicketStatusOpen)

	if _, err := f.assignments.AssignToUser(context.Background(), f.admin, ticket.ID, strPtr("alice")); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got := mailer.recipients(); len(got) != 1 || got[0] != "alice@example.com" {
		t.Fatalf("recipients = %v", got)
	}
	if mailer.sent[0].From != "desk@example.com" || mailer.sent[0].Subject != "Ticket Assigned: #"+ticket.TicketNumber {
		t.Errorf("unexpected email %+v", mailer.sent[0])
	}
}

func TestEmailOnTeamAssignmentSkipsFailedRecipient(t *testing.T) {
	f, mailer := newEmailFixture(t)
	mailer.failTo = "alice@example.com"
	ticket := f.supportTicket(t, domain.TicketStatusOpen)

	if _, err := f.assignments.AssignToTeam(context.Background(), f.admin, ticket.ID, "support"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got := mailer.recipients(); len(got) != 1 || got[0] != "leader@example.com" {
		t.Errorf("recipients = %v, want [leader@example.com]", got)
	}
}

func TestEmailOnActionGoesToCreator(t *testing.T) {
	f, mailer := newEmailFixture(t)
	ticket := f.supportTicket(t, domain.TicketStatusInProgress)

	if _, err := f.tickets.AddAction(context.Background(), f.alice, ticket.ID, "swapped the cable"); err != nil {
		t.Fatalf("add action: %v", err)
	}
	if got := mailer.recipients(); len(got) != 1 || got[0] != "bob@example.com" {
		t.Errorf("recipients = %v, want [bob@example.com]", got)
	}
}
