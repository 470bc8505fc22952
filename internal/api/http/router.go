package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/shopdesk/jobtickets/internal/api/http/handlers"
	"github.com/shopdesk/jobtickets/internal/auth"
	"github.com/shopdesk/jobtickets/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tenant         *handlers.TenantHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Queue          *handlers.QueueHandler
	Team           *handlers.TeamHandler
	Reports        *handlers.ReportsHandler
	Customers      *handlers.CustomersHandler
	TenantResolver fiber.Handler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	shop := app.Group("", cfg.TenantResolver)
	shop.Get("/tenant", cfg.Tenant.Branding)
	shop.Get("/manifest.json", cfg.Tenant.Manifest)

	authGroup := shop.Group("/auth")
	authGroup.Post("/login", cfg.Auth.LoginWithCode)
	authGroup.Post("/magic/request", cfg.Auth.RequestMagicLink)
	authGroup.Post("/magic/verify", cfg.Auth.VerifyMagicLink)
	authGroup.Get("/magic/verify", cfg.Auth.VerifyMagicLink)

	protected := shop.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole())
	protected.Get("/auth/me", cfg.Auth.Me)
	protected.Post("/auth/logout", cfg.Auth.Logout)

	protected.Get("/service-types", cfg.Tickets.ListServiceTypes)
	protected.Get("/queue", cfg.Queue.Snapshot)

	writers := auth.RequireRole(domain.StaffRoleServiceWriter, domain.StaffRoleManager)
	protected.Post("/tickets", writers, cfg.Tickets.CreateTicket)
	protected.Get("/customers/search", writers, cfg.Customers.Search)

	manager := auth.RequireManager()
	protected.Get("/tickets/completed", manager, cfg.Reports.ListCompleted)
	protected.Post("/tickets/exclude-completed", manager, cfg.Tickets.ExcludeAllCompleted)
	protected.Get("/tickets/:id", cfg.Tickets.GetTicket)
	protected.Post("/tickets/:id/complete", auth.RequireRole(domain.StaffRoleTechnician, domain.StaffRoleManager), cfg.Tickets.CompleteTicket)
	protected.Post("/tickets/:id/exclusion", manager, cfg.Tickets.ToggleExclusion)
	protected.Patch("/tickets/:id", manager, cfg.Tickets.EditCompleted)
	protected.Delete("/tickets/:id", manager, cfg.Tickets.DeleteTicket)
	protected.Get("/tickets/:id/history", manager, cfg.Tickets.History)

	team := protected.Group("/team", manager)
	team.Get("", cfg.Team.List)
	team.Post("", cfg.Team.Create)
	team.Get("/suggest-code", cfg.Team.SuggestCode)
	team.Patch("/:id/code", cfg.Team.UpdateCode)
	team.Patch("/:id/name", cfg.Team.Rename)
	team.Post("/:id/deactivate", cfg.Team.Deactivate)
	team.Post("/:id/activate", cfg.Team.Activate)
	team.Post("/:id/invite", cfg.Auth.InviteStaff)

	reports := protected.Group("/reports", manager)
	reports.Get("/kpis", cfg.Reports.KPIs)
	reports.Get("/export.csv", cfg.Reports.ExportCSV)
}
