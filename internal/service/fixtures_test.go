package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/ticketmanager/internal/domain"
	"github.com/spec-kit/ticketmanager/internal/events"
	"github.com/spec-kit/ticketmanager/internal/repository"
	"github.com/spec-kit/ticketmanager/internal/repository/memstore"
	apperrors "github.com/spec-kit/ticketmanager/pkg/util/errorutil"
)

var fixedNow = time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC)

// recordingDispatcher delivers synchronously and keeps every event.
type recordingDispatcher struct {
	mu       sync.Mutex
	events   []events.Event
	handlers map[events.EventType][]events.EventHandler
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{handlers: make(map[events.EventType][]events.EventHandler)}
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	d.events = append(d.events, event)
	handlers := append([]events.EventHandler(nil), d.handlers[event.Type]...)
	d.mu.Unlock()
	for _, h := range handlers {
		_ = h(ctx, event)
	}
	return nil
}

func (d *recordingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

func (d *recordingDispatcher) ofType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store       *memstore.Store
	dispatcher  *recordingDispatcher
	tickets     *TicketService
	assignments *AssignmentService
	notices     *NotificationService

	admin    *domain.Actor
	alice    *domain.Actor // member of support
	bob      *domain.Actor // plain user, usually the creator
	carol    *domain.Actor // member of billing
	leader   *domain.Actor // leads support without being a member
	support  *domain.Team
	billing  *domain.Team
	inactive *domain.Team
}

func clock() time.Time { return fixedNow }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, nil)
}

// newFixtureWithStore builds the services on top of wrap(store) when wrap is set.
func newFixtureWithStore(t *testing.T, wrap func(repository.Store) repository.Store) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New(memstore.WithClock(clock))
	repos := store.Repos()

	leaderID := "leader"
	support := &domain.Team{ID: "support", Name: "Support", Active: true, LeaderID: &leaderID}
	billing := &domain.Team{ID: "billing", Name: "Billing", Active: true}
	inactive := &domain.Team{ID: "legacy", Name: "Legacy", Active: false}
	for _, team := range []*domain.Team{support, billing, inactive} {
		if err := repos.Teams.Create(ctx, team); err != nil {
			t.Fatalf("create team: %v", err)
		}
	}

	users := []*domain.User{
		{ID: "admin", Email: "admin@example.com", Name: "Admin", Role: domain.RoleAdmin, Active: true},
		{ID: "alice", Email: "alice@example.com", Name: "Alice", Role: domain.RoleUser, Active: true, TeamIDs: []string{"support"}},
		{ID: "bob", Email: "bob@example.com", Name: "Bob", Role: domain.RoleUser, Active: true},
		{ID: "carol", Email: "carol@example.com", Name: "Carol", Role: domain.RoleUser, Active: true, TeamIDs: []string{"billing"}},
		{ID: "leader", Email: "leader@example.com", Name: "Leader", Role: domain.RoleUser, Active: true},
		{ID: "gone", Email: "gone@example.com", Name: "Gone", Role: domain.RoleUser, Active: false},
	}
	for _, u := range users {
		if err := repos.Users.Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	support, _ = repos.Teams.GetByID(ctx, "support")

	var svcStore repository.Store = store
	if wrap != nil {
		svcStore = wrap(store)
	}
	dispatcher := newRecordingDispatcher()
	notices := NewNotificationService(repos.Notifications, nil)
	return &fixture{
		store:      store,
		dispatcher: dispatcher,
		tickets: NewTicketService(TicketDependencies{
			Store:      svcStore,
			Dispatcher: dispatcher,
			Clock:      clock,
		}),
		assignments: NewAssignmentService(AssignmentDependencies{
			Store:         svcStore,
			Notifications: notices,
			Dispatcher:    dispatcher,
			Clock:         clock,
		}),
		notices:  notices,
		admin:    &domain.Actor{ID: "admin", Role: domain.RoleAdmin},
		alice:    &domain.Actor{ID: "alice", Role: domain.RoleUser, TeamIDs: []string{"support"}},
		bob:      &domain.Actor{ID: "bob", Role: domain.RoleUser},
		carol:    &domain.Actor{ID: "carol", Role: domain.RoleUser, TeamIDs: []string{"billing"}},
		leader:   &domain.Actor{ID: "leader", Role: domain.RoleUser, TeamIDs: []string{"support"}},
		support:  support,
		billing:  billing,
		inactive: inactive,
	}
}

// supportTicket creates a ticket by bob assigned to the support team and
// moves it to status through the admin.
func (f *fixture) supportTicket(t *testing.T, status domain.TicketStatus) *domain.Ticket {
	t.Helper()
	ctx := context.Background()
	team := f.support.ID
	ticket, err := f.tickets.CreateTicket(ctx, f.bob, TicketCreateInput{
		Title:          "VPN drops every hour",
		Description:    "since monday",
		AssignedTeamID: &team,
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if status != domain.TicketStatusOpen {
		ticket, err = f.tickets.UpdateStatus(ctx, f.admin, ticket.ID, status)
		if err != nil {
			t.Fatalf("set status %s: %v", status, err)
		}
	}
	return ticket
}

func (f *fixture) actions(t *testing.T, ticketID string) []domain.TicketAction {
	t.Helper()
	actions, err := f.store.Repos().Actions.ListByTicket(context.Background(), ticketID)
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	return actions
}

func (f *fixture) reload(t *testing.T, ticketID string) *domain.Ticket {
	t.Helper()
	ticket, err := f.store.Repos().Tickets.GetByID(context.Background(), ticketID)
	if err != nil {
		t.Fatalf("reload ticket: %v", err)
	}
	return ticket
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

func strPtr(s string) *string { return &s }
