package dto

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// EscalationResponse response.
type EscalationResponse struct {
	ID              string                  `json:"id"`
	TicketID        string                  `json:"ticket_id"`
	SlaDefinitionID string                  `json:"sla_definition_id"`
	Level           int                     `json:"level"`
	EscalatedAt     time.Time               `json:"escalated_at"`
	Status          domain.EscalationStatus `json:"status"`
	AcknowledgedAt  *time.Time              `json:"acknowledged_at"`
	AcknowledgedBy  *string                 `json:"acknowledged_by"`
}

// NewEscalationResponse maps the domain entity.
func NewEscalationResponse(esc *domain.Escalation) EscalationResponse {
	return EscalationResponse{
		ID:              esc.ID,
		TicketID:        esc.TicketID,
		SlaDefinitionID: esc.SlaDefinitionID,
		Level:           esc.Level,
		EscalatedAt:     esc.EscalatedAt,
		Status:          esc.Status,
		AcknowledgedAt:  esc.AcknowledgedAt,
		AcknowledgedBy:  esc.AcknowledgedBy,
	}
}
