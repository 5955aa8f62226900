package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/engine"
	"github.com/spec-kit/sla-engine/internal/repository"
	apperrors "github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

// CatalogService manages SLA definitions, match rules and status policies.
// Administrators write the catalog through this service; the sweep and the
// metrics refresh only read it.
type CatalogService struct {
	definitions repository.SlaDefinitionRepository
	rules       repository.SlaRuleRepository
	policies    repository.StatusPolicyRepository
}

// CatalogDependencies bundles repositories for the catalog service.
type CatalogDependencies struct {
	DefinitionRepo repository.SlaDefinitionRepository
	RuleRepo       repository.SlaRuleRepository
	PolicyRepo     repository.StatusPolicyRepository
}

// NewCatalogService constructs the service.
func NewCatalogService(deps CatalogDependencies) *CatalogService {
	return &CatalogService{
		definitions: deps.DefinitionRepo,
		rules:       deps.RuleRepo,
		policies:    deps.PolicyRepo,
	}
}

// DefinitionInput describes SLA definition create/update payloads.
type DefinitionInput struct {
	Name                       string
	Level                      int
	FirstResponseTargetMinutes int
	ResolutionTargetMinutes    int
}

// RuleInput describes match-rule create/update payloads.
type RuleInput struct {
	FieldName  string
	FieldValue string
	Priority   int
}

// PolicyInput describes status-policy create/update payloads.
type PolicyInput struct {
	StatusValue    string
	IsPaused       bool
	TimeoutMinutes *int
}

// CreateDefinition registers a new service level for a tenant.
func (s *CatalogService) CreateDefinition(ctx context.Context, tenantID string, input DefinitionInput) (*domain.SlaDefinition, error) {
	def := &domain.SlaDefinition{
		ID:                         uuid.NewString(),
		TenantID:                   tenantID,
		Name:                       input.Name,
		Level:                      input.Level,
		FirstResponseTargetMinutes: input.FirstResponseTargetMinutes,
		ResolutionTargetMinutes:    input.ResolutionTargetMinutes,
		IsActive:                   true,
	}
	if err := s.definitions.Create(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

// UpdateDefinition edits a service level in place.
func (s *CatalogService) UpdateDefinition(ctx context.Context, tenantID, id string, input DefinitionInput) (*domain.SlaDefinition, error) {
	def, err := s.definitions.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, mapCatalogErr(err, "sla definition")
	}
	def.Name = input.Name
	def.Level = input.Level
	def.FirstResponseTargetMinutes = input.FirstResponseTargetMinutes
	def.ResolutionTargetMinutes = input.ResolutionTargetMinutes
	if err := s.definitions.Update(ctx, def); err != nil {
		return nil, mapCatalogErr(err, "sla definition")
	}
	return def, nil
}

// GetDefinition fetches one service level.
func (s *CatalogService) GetDefinition(ctx context.Context, tenantID, id string) (*domain.SlaDefinition, error) {
	def, err := s.definitions.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, mapCatalogErr(err, "sla definition")
	}
	return def, nil
}

// ListDefinitions returns the tenant's active service levels.
func (s *CatalogService) ListDefinitions(ctx context.Context, tenantID string) ([]domain.SlaDefinition, error) {
	return s.definitions.ListActive(ctx, tenantID)
}

// DeactivateDefinition soft-deletes a service level. Rows are never hard
// deleted so historical metrics keep their referent.
func (s *CatalogService) DeactivateDefinition(ctx context.Context, tenantID, id string) error {
	return mapCatalogErr(s.definitions.Deactivate(ctx, tenantID, id), "sla definition")
}

// CreateRule attaches a match rule to a definition.
func (s *CatalogService) CreateRule(ctx context.Context, tenantID, definitionID string, input RuleInput) (*domain.SlaRule, error) {
	def, err := s.definitions.GetByID(ctx, tenantID, definitionID)
	if err != nil {
		return nil, mapCatalogErr(err, "sla definition")
	}
	if !def.IsActive {
		return nil, apperrors.NewValidationError("sla definition is inactive", map[string]any{"sla_definition_id": definitionID})
	}
	rule := &domain.SlaRule{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		SlaDefinitionID: def.ID,
		FieldName:       input.FieldName,
		FieldValue:      input.FieldValue,
		Priority:        input.Priority,
		IsActive:        true,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// UpdateRule edits a match rule in place.
func (s *CatalogService) UpdateRule(ctx context.Context, tenantID, id string, input RuleInput) (*domain.SlaRule, error) {
	rule, err := s.rules.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, mapCatalogErr(err, "sla rule")
	}
	rule.FieldName = input.FieldName
	rule.FieldValue = input.FieldValue
	rule.Priority = input.Priority
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, mapCatalogErr(err, "sla rule")
	}
	return rule, nil
}

// ListRules returns the active rules of one definition.
func (s *CatalogService) ListRules(ctx context.Context, tenantID, definitionID string) ([]domain.SlaRule, error) {
	if _, err := s.definitions.GetByID(ctx, tenantID, definitionID); err != nil {
		return nil, mapCatalogErr(err, "sla definition")
	}
	return s.rules.ListActiveByDefinition(ctx, tenantID, definitionID)
}

// DeactivateRule soft-deletes a match rule.
func (s *CatalogService) DeactivateRule(ctx context.Context, tenantID, id string) error {
	return mapCatalogErr(s.rules.Deactivate(ctx, tenantID, id), "sla rule")
}

// CreatePolicy attaches a status timeout policy to a definition.
func (s *CatalogService) CreatePolicy(ctx context.Context, tenantID, definitionID string, input PolicyInput) (*domain.StatusTimeoutPolicy, error) {
	def, err := s.definitions.GetByID(ctx, tenantID, definitionID)
	if err != nil {
		return nil, mapCatalogErr(err, "sla definition")
	}
	if !def.IsActive {
		return nil, apperrors.NewValidationError("sla definition is inactive", map[string]any{"sla_definition_id": definitionID})
	}
	policy := &domain.StatusTimeoutPolicy{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		SlaDefinitionID: def.ID,
		StatusValue:     input.StatusValue,
		IsPaused:        input.IsPaused,
		TimeoutMinutes:  input.TimeoutMinutes,
		IsActive:        true,
	}
	if err := s.policies.Create(ctx, policy); err != nil {
		return nil, err
	}
	return policy, nil
}

// UpdatePolicy edits a status policy in place.
func (s *CatalogService) UpdatePolicy(ctx context.Context, tenantID, id string, input PolicyInput) (*domain.StatusTimeoutPolicy, error) {
	policy, err := s.policies.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, mapCatalogErr(err, "status timeout policy")
	}
	policy.StatusValue = input.StatusValue
	policy.IsPaused = input.IsPaused
	policy.TimeoutMinutes = input.TimeoutMinutes
	if err := s.policies.Update(ctx, policy); err != nil {
		return nil, mapCatalogErr(err, "status timeout policy")
	}
	return policy, nil
}

// ListPolicies returns the active status policies of one definition.
func (s *CatalogService) ListPolicies(ctx context.Context, tenantID, definitionID string) ([]domain.StatusTimeoutPolicy, error) {
	if _, err := s.definitions.GetByID(ctx, tenantID, definitionID); err != nil {
		return nil, mapCatalogErr(err, "sla definition")
	}
	return s.policies.ListActiveByDefinition(ctx, tenantID, definitionID)
}

// DeactivatePolicy soft-deletes a status policy.
func (s *CatalogService) DeactivatePolicy(ctx context.Context, tenantID, id string) error {
	return mapCatalogErr(s.policies.Deactivate(ctx, tenantID, id), "status timeout policy")
}

// ListActiveTenants returns every tenant with at least one active SLA
// definition; the sweep iterates over exactly this set.
func (s *CatalogService) ListActiveTenants(ctx context.Context) ([]string, error) {
	return s.definitions.ListActiveTenants(ctx)
}

// LoadRuleSet snapshots the tenant's active catalog for rule resolution.
func (s *CatalogService) LoadRuleSet(ctx context.Context, tenantID string) (engine.RuleSet, error) {
	definitions, err := s.definitions.ListActive(ctx, tenantID)
	if err != nil {
		return engine.RuleSet{}, err
	}
	rules, err := s.rules.ListActive(ctx, tenantID)
	if err != nil {
		return engine.RuleSet{}, err
	}
	policies, err := s.policies.ListActive(ctx, tenantID)
	if err != nil {
		return engine.RuleSet{}, err
	}
	return engine.RuleSet{Definitions: definitions, Rules: rules, Policies: policies}, nil
}

func mapCatalogErr(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, nil)
	}
	return err
}
