package dto

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// CreateDefinitionRequest payload.
type CreateDefinitionRequest struct {
	Name                       string `json:"name" validate:"required,min=1,max=120"`
	Level                      int    `json:"level" validate:"gte=0"`
	FirstResponseTargetMinutes int    `json:"first_response_target_minutes" validate:"required,gt=0"`
	ResolutionTargetMinutes    int    `json:"resolution_target_minutes" validate:"required,gt=0"`
}

// UpdateDefinitionRequest payload.
type UpdateDefinitionRequest = CreateDefinitionRequest

// DefinitionResponse response.
type DefinitionResponse struct {
	ID                         string    `json:"id"`
	Name                       string    `json:"name"`
	Level                      int       `json:"level"`
	FirstResponseTargetMinutes int       `json:"first_response_target_minutes"`
	ResolutionTargetMinutes    int       `json:"resolution_target_minutes"`
	IsActive                   bool      `json:"is_active"`
	CreatedAt                  time.Time `json:"created_at"`
	UpdatedAt                  time.Time `json:"updated_at"`
}

// NewDefinitionResponse maps the domain entity.
func NewDefinitionResponse(def *domain.SlaDefinition) DefinitionResponse {
	return DefinitionResponse{
		ID:                         def.ID,
		Name:                       def.Name,
		Level:                      def.Level,
		FirstResponseTargetMinutes: def.FirstResponseTargetMinutes,
		ResolutionTargetMinutes:    def.ResolutionTargetMinutes,
		IsActive:                   def.IsActive,
		CreatedAt:                  def.CreatedAt,
		UpdatedAt:                  def.UpdatedAt,
	}
}

// CreateRuleRequest payload.
type CreateRuleRequest struct {
	FieldName  string `json:"field_name" validate:"required,min=1,max=64"`
	FieldValue string `json:"field_value" validate:"required,min=1,max=255"`
	Priority   int    `json:"priority" validate:"gte=0"`
}

// UpdateRuleRequest payload.
type UpdateRuleRequest = CreateRuleRequest

// RuleResponse response.
type RuleResponse struct {
	ID              string    `json:"id"`
	SlaDefinitionID string    `json:"sla_definition_id"`
	FieldName       string    `json:"field_name"`
	FieldValue      string    `json:"field_value"`
	Priority        int       `json:"priority"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewRuleResponse maps the domain entity.
func NewRuleResponse(rule *domain.SlaRule) RuleResponse {
	return RuleResponse{
		ID:              rule.ID,
		SlaDefinitionID: rule.SlaDefinitionID,
		FieldName:       rule.FieldName,
		FieldValue:      rule.FieldValue,
		Priority:        rule.Priority,
		IsActive:        rule.IsActive,
		CreatedAt:       rule.CreatedAt,
		UpdatedAt:       rule.UpdatedAt,
	}
}

// CreatePolicyRequest payload.
type CreatePolicyRequest struct {
	StatusValue    string `json:"status_value" validate:"required,min=1,max=64"`
	IsPaused       bool   `json:"is_paused"`
	TimeoutMinutes *int   `json:"timeout_minutes" validate:"omitempty,gt=0"`
}

// UpdatePolicyRequest payload.
type UpdatePolicyRequest = CreatePolicyRequest

// PolicyResponse response.
type PolicyResponse struct {
	ID              string    `json:"id"`
	SlaDefinitionID string    `json:"sla_definition_id"`
	StatusValue     string    `json:"status_value"`
	IsPaused        bool      `json:"is_paused"`
	TimeoutMinutes  *int      `json:"timeout_minutes"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewPolicyResponse maps the domain entity.
func NewPolicyResponse(policy *domain.StatusTimeoutPolicy) PolicyResponse {
	return PolicyResponse{
		ID:              policy.ID,
		SlaDefinitionID: policy.SlaDefinitionID,
		StatusValue:     policy.StatusValue,
		IsPaused:        policy.IsPaused,
		TimeoutMinutes:  policy.TimeoutMinutes,
		IsActive:        policy.IsActive,
		CreatedAt:       policy.CreatedAt,
		UpdatedAt:       policy.UpdatedAt,
	}
}
