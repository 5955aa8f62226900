package events

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventEscalationCreated      EventType = "escalation_created"
	EventEscalationAcknowledged EventType = "escalation_acknowledged"
	EventMetricSuperseded       EventType = "metric_superseded"
	EventMetricFinalized        EventType = "metric_finalized"
)

// Event represents a domain event emitted by the engine.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TenantID  string      `json:"tenant_id"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// EscalationCreatedPayload payload.
type EscalationCreatedPayload struct {
	EscalationID    string    `json:"escalation_id"`
	SlaDefinitionID string    `json:"sla_definition_id"`
	Level           int       `json:"level"`
	EscalatedAt     time.Time `json:"escalated_at"`
}

// EscalationAcknowledgedPayload payload.
type EscalationAcknowledgedPayload struct {
	EscalationID   string    `json:"escalation_id"`
	AcknowledgedBy string    `json:"acknowledged_by"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
}

// MetricSupersededPayload payload.
type MetricSupersededPayload struct {
	MetricID  string  `json:"metric_id"`
	OldRuleID string  `json:"old_rule_id"`
	NewRuleID *string `json:"new_rule_id,omitempty"`
}

// MetricFinalizedPayload payload.
type MetricFinalizedPayload struct {
	MetricID          string              `json:"metric_id"`
	ResolutionMet     *bool               `json:"resolution_met"`
	OverallCompliance *bool               `json:"overall_compliance"`
	FinalStatus       domain.TicketStatus `json:"final_status"`
}
