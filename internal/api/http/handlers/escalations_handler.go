package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/service"
	apperrors "github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

// EscalationsHandler exposes escalation queries and acknowledgement.
type EscalationsHandler struct {
	escalations *service.EscalationService
}

// NewEscalationsHandler constructs handler.
func NewEscalationsHandler(escalations *service.EscalationService) *EscalationsHandler {
	return &EscalationsHandler{escalations: escalations}
}

// ListForTicket GET /tickets/:ticketId/escalations.
func (h *EscalationsHandler) ListForTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	escs, err := h.escalations.ListForTicket(c.Context(), principal.TenantID, c.Params("ticketId"))
	if err != nil {
		return err
	}
	items := make([]dto.EscalationResponse, 0, len(escs))
	for i := range escs {
		items = append(items, dto.NewEscalationResponse(&escs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListPending GET /escalations/pending.
func (h *EscalationsHandler) ListPending(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	escs, err := h.escalations.ListPending(c.Context(), principal.TenantID)
	if err != nil {
		return err
	}
	items := make([]dto.EscalationResponse, 0, len(escs))
	for i := range escs {
		items = append(items, dto.NewEscalationResponse(&escs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Acknowledge POST /escalations/:id/acknowledge.
func (h *EscalationsHandler) Acknowledge(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	esc, err := h.escalations.Acknowledge(c.Context(), principal.TenantID, c.Params("id"), principal.ActorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEscalationResponse(esc)})
}
