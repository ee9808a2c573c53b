package worker

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketmanager/internal/config"
	"github.com/spec-kit/ticketmanager/internal/domain"
	"github.com/spec-kit/ticketmanager/internal/events"
	"github.com/spec-kit/ticketmanager/internal/repository/memstore"
	"github.com/spec-kit/ticketmanager/internal/service"
)

type chanMailer struct {
	sent chan service.Email
}

func (m *chanMailer) Send(_ context.Context, email service.Email) error {
	m.sent <- email
	return nil
}

func TestWorkerDeliversQueuedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memstore.New()
	user := &domain.User{ID: "u1", Email: "u1@example.com", Name: "U1", Role: domain.RoleUser, Active: true}
	if err := store.Repos().Users.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	logger := zap.NewNop()
	queue := events.NewInMemoryDispatcher(8, logger)
	mailer := &chanMailer{sent: make(chan service.Email, 1)}
	emails := service.NewEmailService(store.Repos(), mailer, logger, config.NotificationConfig{EmailFrom: "desk@example.com"})

	w := NewNotificationWorker(queue, emails, logger)
	w.Start(ctx)

	event, err := events.NewEvent(events.EventTicketAssignedToUser, "t1", nil, events.TicketAssignedToUserPayload{
		TicketRef:  events.TicketRef{TicketNumber: "2025000001", Title: "x"},
		AssigneeID: "u1",
	})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if err := queue.Publish(ctx, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case email := <-mailer.sent:
		if email.To != "u1@example.com" {
			t.Errorf("to = %q", email.To)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("email not delivered")
	}

	cancel()
	done := make(chan struct{})
	go func() { w.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
