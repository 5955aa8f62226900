package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/service"
	apperrors "github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

// SlasHandler manages the SLA catalog endpoints: definitions, match rules
// and status timeout policies.
type SlasHandler struct {
	catalog  *service.CatalogService
	validate *validator.Validate
}

// NewSlasHandler constructs handler.
func NewSlasHandler(catalog *service.CatalogService, validate *validator.Validate) *SlasHandler {
	return &SlasHandler{catalog: catalog, validate: validate}
}

// CreateDefinition POST /slas.
func (h *SlasHandler) CreateDefinition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	var req dto.CreateDefinitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validate.Struct(req); err != nil {
		return apperrors.FromValidation(err)
	}

	def, err := h.catalog.CreateDefinition(c.Context(), principal.TenantID, service.DefinitionInput{
		Name:                       req.Name,
		Level:                      req.Level,
		FirstResponseTargetMinutes: req.FirstResponseTargetMinutes,
		ResolutionTargetMinutes:    req.ResolutionTargetMinutes,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewDefinitionResponse(def)})
}

// ListDefinitions GET /slas.
func (h *SlasHandler) ListDefinitions(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	defs, err := h.catalog.ListDefinitions(c.Context(), principal.TenantID)
	if err != nil {
		return err
	}
	items := make([]dto.DefinitionResponse, 0, len(defs))
	for i := range defs {
		items = append(items, dto.NewDefinitionResponse(&defs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetDefinition GET /slas/:id.
func (h *SlasHandler) GetDefinition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	def, err := h.catalog.GetDefinition(c.Context(), principal.TenantID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDefinitionResponse(def)})
}

// UpdateDefinition PUT /slas/:id.
func (h *SlasHandler) UpdateDefinition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	var req dto.UpdateDefinitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validate.Struct(req); err != nil {
		return apperrors.FromValidation(err)
	}

	def, err := h.catalog.UpdateDefinition(c.Context(), principal.TenantID, c.Params("id"), service.DefinitionInput{
		Name:                       req.Name,
		Level:                      req.Level,
		FirstResponseTargetMinutes: req.FirstResponseTargetMinutes,
		ResolutionTargetMinutes:    req.ResolutionTargetMinutes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDefinitionResponse(def)})
}

// DeleteDefinition DELETE /slas/:id (soft delete).
func (h *SlasHandler) DeleteDefinition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	if err := h.catalog.DeactivateDefinition(c.Context(), principal.TenantID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateRule POST /slas/:slaId/rules.
func (h *SlasHandler) CreateRule(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	var req dto.CreateRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validate.Struct(req); err != nil {
		return apperrors.FromValidation(err)
	}

	rule, err := h.catalog.CreateRule(c.Context(), principal.TenantID, c.Params("slaId"), service.RuleInput{
		FieldName:  req.FieldName,
		FieldValue: req.FieldValue,
		Priority:   req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewRuleResponse(rule)})
}

// ListRules GET /slas/:slaId/rules.
func (h *SlasHandler) ListRules(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	rules, err := h.catalog.ListRules(c.Context(), principal.TenantID, c.Params("slaId"))
	if err != nil {
		return err
	}
	items := make([]dto.RuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, dto.NewRuleResponse(&rules[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateRule PUT /rules/:id.
func (h *SlasHandler) UpdateRule(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	var req dto.UpdateRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validate.Struct(req); err != nil {
		return apperrors.FromValidation(err)
	}

	rule, err := h.catalog.UpdateRule(c.Context(), principal.TenantID, c.Params("id"), service.RuleInput{
		FieldName:  req.FieldName,
		FieldValue: req.FieldValue,
		Priority:   req.Priority,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRuleResponse(rule)})
}

// DeleteRule DELETE /rules/:id (soft delete).
func (h *SlasHandler) DeleteRule(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	if err := h.catalog.DeactivateRule(c.Context(), principal.TenantID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreatePolicy POST /slas/:slaId/status-timeouts.
func (h *SlasHandler) CreatePolicy(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	var req dto.CreatePolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validate.Struct(req); err != nil {
		return apperrors.FromValidation(err)
	}

	policy, err := h.catalog.CreatePolicy(c.Context(), principal.TenantID, c.Params("slaId"), service.PolicyInput{
		StatusValue:    req.StatusValue,
		IsPaused:       req.IsPaused,
		TimeoutMinutes: req.TimeoutMinutes,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewPolicyResponse(policy)})
}

// ListPolicies GET /slas/:slaId/status-timeouts.
func (h *SlasHandler) ListPolicies(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	policies, err := h.catalog.ListPolicies(c.Context(), principal.TenantID, c.Params("slaId"))
	if err != nil {
		return err
	}
	items := make([]dto.PolicyResponse, 0, len(policies))
	for i := range policies {
		items = append(items, dto.NewPolicyResponse(&policies[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdatePolicy PUT /status-timeouts/:id.
func (h *SlasHandler) UpdatePolicy(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	var req dto.UpdatePolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validate.Struct(req); err != nil {
		return apperrors.FromValidation(err)
	}

	policy, err := h.catalog.UpdatePolicy(c.Context(), principal.TenantID, c.Params("id"), service.PolicyInput{
		StatusValue:    req.StatusValue,
		IsPaused:       req.IsPaused,
		TimeoutMinutes: req.TimeoutMinutes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPolicyResponse(policy)})
}

// DeletePolicy DELETE /status-timeouts/:id (soft delete).
func (h *SlasHandler) DeletePolicy(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant required")
	}
	if err := h.catalog.DeactivatePolicy(c.Context(), principal.TenantID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
