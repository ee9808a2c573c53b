package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketmanager/internal/api/http/handlers"
	"github.com/spec-kit/ticketmanager/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	tickets := api.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Post("/maintenance/fix-unassigned-status", auth.RequireAdmin(), cfg.Tickets.FixUnassignedStatuses)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/pause", cfg.Tickets.PauseTicket)
	tickets.Post("/:id/actions", cfg.Tickets.AddAction)
	tickets.Put("/:id/assignee", cfg.Tickets.AssignUser)
	tickets.Put("/:id/team", cfg.Tickets.AssignTeam)

	notifications := api.Group("/notifications")
	notifications.Get("/", cfg.Notifications.ListUnread)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)

	api.Get("/metrics", auth.RequireAdmin(), cfg.Health.Metrics)
}
