package bootstrap

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketmanager/internal/config"
	"github.com/spec-kit/ticketmanager/internal/domain"
	"github.com/spec-kit/ticketmanager/internal/service"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Auth:    config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, BootstrapAdminEmail: "root@example.com"},
		Events:  config.EventsConfig{Backend: "memory", BufferSize: 8},
		Tickets: config.TicketsConfig{AllocationMaxAttempts: 3},
	}
}

func TestBuildInMemory(t *testing.T) {
	ctx := context.Background()
	c, err := Build(ctx, memoryConfig(), zap.NewNop(), Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()

	if c.Postgres.Enabled() || c.Redis != nil {
		t.Fatalf("expected no external connections")
	}
	admin, err := c.Store.Repos().Users.GetByEmail(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("bootstrap admin missing: %v", err)
	}
	actor, err := c.Resolver.Resolve(ctx, admin.ID)
	if err != nil {
		t.Fatalf("resolve admin: %v", err)
	}
	if !actor.IsAdmin() {
		t.Errorf("bootstrap user is not an admin")
	}

	ticket, err := c.Tickets.CreateTicket(ctx, actor, service.TicketCreateInput{Title: "first"})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if ticket.Status != domain.TicketStatusOpen {
		t.Errorf("status = %s", ticket.Status)
	}
}

func TestBuildSkipsAdminBootstrap(t *testing.T) {
	ctx := context.Background()
	c, err := Build(ctx, memoryConfig(), zap.NewNop(), Options{SkipAdminBootstrap: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()
	if _, err := c.Store.Repos().Users.GetByEmail(ctx, "root@example.com"); err == nil {
		t.Errorf("admin should not be seeded")
	}
}
