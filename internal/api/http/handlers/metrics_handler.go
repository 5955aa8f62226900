package handlers

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/service"
	apperrors "github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

// MetricsHandler exposes per-ticket metrics, tenant compliance stats and
// the ticket-event intake that drives metric refreshes.
type MetricsHandler struct {
	metrics  *service.MetricsService
	validate *validator.Validate
}

// NewMetricsHandler constructs handler.
func NewMetricsHandler(metrics *service.MetricsService, validate *validator.Validate) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, validate: validate}
}

// GetTicketMetrics GET /tickets/:ticketId/metrics.
func (h *MetricsHandler) GetTicketMetrics(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	metrics, err := h.metrics.GetTicketMetrics(c.Context(), principal.TenantID, c.Params("ticketId"))
	if err != nil {
		return err
	}
	items := make([]dto.MetricResponse, 0, len(metrics))
	for i := range metrics {
		items = append(items, dto.NewMetricResponse(&metrics[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetComplianceStats GET /compliance-stats?start_date=&end_date=.
func (h *MetricsHandler) GetComplianceStats(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}

	from, err := parseDateParam(c.Query("start_date"))
	if err != nil {
		return apperrors.NewValidationError("invalid start_date", map[string]any{"start_date": "expected YYYY-MM-DD or RFC3339"})
	}
	to, err := parseDateParam(c.Query("end_date"))
	if err != nil {
		return apperrors.NewValidationError("invalid end_date", map[string]any{"end_date": "expected YYYY-MM-DD or RFC3339"})
	}
	if from == nil || to == nil {
		return apperrors.NewValidationError("start_date and end_date required", nil)
	}
	if to.Before(*from) {
		return apperrors.NewValidationError("end_date precedes start_date", nil)
	}

	stats, err := h.metrics.GetComplianceStats(c.Context(), principal.TenantID, *from, *to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplianceStatsResponse(stats)})
}

// HandleTicketEvent POST /internal/ticket-events. The platform posts here
// on status changes, tracked-field changes, first response and resolution;
// each event triggers re-resolution and a metric refresh for the ticket.
func (h *MetricsHandler) HandleTicketEvent(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	var req dto.TicketEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validate.Struct(req); err != nil {
		return apperrors.FromValidation(err)
	}

	metric, err := h.metrics.RefreshMetric(c.Context(), principal.TenantID, req.TicketID)
	if err != nil {
		return err
	}
	if metric == nil {
		// No SLA applies; acknowledged without a metric row.
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(fiber.Map{"data": dto.NewMetricResponse(metric)})
}

func parseDateParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.Parse("2006-01-02", value); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
