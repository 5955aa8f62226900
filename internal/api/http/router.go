package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/http/handlers"
	"github.com/spec-kit/sla-engine/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health           *handlers.HealthHandler
	Slas             *handlers.SlasHandler
	Escalations      *handlers.EscalationsHandler
	Metrics          *handlers.MetricsHandler
	TenantMiddleware *auth.TenantMiddleware
}

// RegisterRoutes wires HTTP routes. Everything except health probes sits
// behind the tenant middleware; handlers read the tenant from the verified
// principal only.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	protected := app.Group("", cfg.TenantMiddleware.Handle)

	protected.Post("/slas", cfg.Slas.CreateDefinition)
	protected.Get("/slas", cfg.Slas.ListDefinitions)
	protected.Get("/slas/:id", cfg.Slas.GetDefinition)
	protected.Put("/slas/:id", cfg.Slas.UpdateDefinition)
	protected.Delete("/slas/:id", cfg.Slas.DeleteDefinition)

	protected.Post("/slas/:slaId/rules", cfg.Slas.CreateRule)
	protected.Get("/slas/:slaId/rules", cfg.Slas.ListRules)
	protected.Put("/rules/:id", cfg.Slas.UpdateRule)
	protected.Delete("/rules/:id", cfg.Slas.DeleteRule)

	protected.Post("/slas/:slaId/status-timeouts", cfg.Slas.CreatePolicy)
	protected.Get("/slas/:slaId/status-timeouts", cfg.Slas.ListPolicies)
	protected.Put("/status-timeouts/:id", cfg.Slas.UpdatePolicy)
	protected.Delete("/status-timeouts/:id", cfg.Slas.DeletePolicy)

	protected.Get("/tickets/:ticketId/escalations", cfg.Escalations.ListForTicket)
	protected.Get("/escalations/pending", cfg.Escalations.ListPending)
	protected.Post("/escalations/:id/acknowledge", cfg.Escalations.Acknowledge)

	protected.Get("/tickets/:ticketId/metrics", cfg.Metrics.GetTicketMetrics)
	protected.Get("/compliance-stats", cfg.Metrics.GetComplianceStats)

	protected.Post("/internal/ticket-events", cfg.Metrics.HandleTicketEvent)
}
