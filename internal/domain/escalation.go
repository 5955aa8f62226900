package domain

import "time"

// EscalationStatus enumerates escalation lifecycle states.
type EscalationStatus string

const (
	EscalationStatusPending      EscalationStatus = "PENDING"
	EscalationStatusAcknowledged EscalationStatus = "ACKNOWLEDGED"
)

// Escalation records a raised SLA breach at a given level. At most one
// pending row may exist per (ticket, level); the store enforces this with a
// partial unique index.
type Escalation struct {
	ID              string
	TenantID        string
	TicketID        string
	SlaDefinitionID string
	Level           int
	EscalatedAt     time.Time
	Status          EscalationStatus
	AcknowledgedAt  *time.Time
	AcknowledgedBy  *string
}
