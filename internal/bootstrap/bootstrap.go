// Package bootstrap wires storage, the event queue and the services shared
// by the HTTP server and the admin CLI.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketmanager/internal/auth"
	"github.com/spec-kit/ticketmanager/internal/config"
	"github.com/spec-kit/ticketmanager/internal/events"
	"github.com/spec-kit/ticketmanager/internal/persistence"
	"github.com/spec-kit/ticketmanager/internal/repository"
	"github.com/spec-kit/ticketmanager/internal/repository/memstore"
	"github.com/spec-kit/ticketmanager/internal/service"
)

// Options tweaks Build for the calling binary.
type Options struct {
	// SkipMigrations leaves the schema alone even when POSTGRES_RUN_MIGRATIONS is set.
	SkipMigrations bool
	MigrationsDir  string
	// SkipAdminBootstrap ignores AUTH_BOOTSTRAP_ADMIN_EMAIL.
	SkipAdminBootstrap bool
}

// Components holds everything a binary needs after startup.
type Components struct {
	Config   *config.Config
	Postgres *persistence.Postgres
	Redis    *persistence.Redis // nil unless EVENTS_BACKEND=redis
	Store    repository.Store
	Queue    events.Queue

	Tickets       *service.TicketService
	Assignments   *service.AssignmentService
	Notifications *service.NotificationService
	Emails        *service.EmailService
	Directory     *service.DirectoryService

	Tokens   *auth.TokenManager
	Resolver *auth.Resolver
}

// Build connects the backing stores and constructs the services.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Components, error) {
	c := &Components{Config: cfg}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.Postgres = pg

	if pg.Enabled() {
		if cfg.Postgres.RunMigrations && !opts.SkipMigrations {
			dir := opts.MigrationsDir
			if dir == "" {
				dir = persistence.DefaultMigrationsDir
			}
			if _, err := persistence.RunMigrations(ctx, pg.PoolHandle(), dir, logger); err != nil {
				c.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		c.Store = repository.NewPostgresStore(pg.PoolHandle())
	} else {
		c.Store = memstore.New()
	}

	switch cfg.Events.Backend {
	case "redis":
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, true, logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c.Redis = rdb
		c.Queue = events.NewRedisQueue(rdb.Client, cfg.Events.QueueKey, logger)
	default:
		c.Queue = events.NewInMemoryDispatcher(cfg.Events.BufferSize, logger)
	}

	c.Notifications = service.NewNotificationService(c.Store.Repos().Notifications, logger)
	c.Tickets = service.NewTicketService(service.TicketDependencies{
		Store:                 c.Store,
		Dispatcher:            c.Queue,
		Logger:                logger,
		MaxAllocationAttempts: cfg.Tickets.AllocationMaxAttempts,
	})
	c.Assignments = service.NewAssignmentService(service.AssignmentDependencies{
		Store:         c.Store,
		Notifications: c.Notifications,
		Dispatcher:    c.Queue,
		Logger:        logger,
	})
	c.Emails = service.NewEmailService(c.Store.Repos(), service.NewLogMailer(logger), logger, cfg.Notification)
	c.Directory = service.NewDirectoryService(c.Store, logger)

	c.Tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	repos := c.Store.Repos()
	c.Resolver = auth.NewResolver(repos.Users, repos.Teams)

	if email := cfg.Auth.BootstrapAdminEmail; email != "" && !opts.SkipAdminBootstrap {
		admin, created, err := c.Directory.EnsureAdmin(ctx, email)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			logger.Info("bootstrap admin created", zap.String("user_id", admin.ID), zap.String("email", admin.Email))
		}
	}

	return c, nil
}

// Close releases connections. Safe to call on a partially built value.
func (c *Components) Close() {
	if c == nil {
		return
	}
	c.Redis.Close()
	c.Postgres.Close()
}
