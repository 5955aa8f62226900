package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen        TicketStatus = "OPEN"
	TicketStatusInProgress  TicketStatus = "IN_PROGRESS"
	TicketStatusPendingUser TicketStatus = "PENDING_USER"
	TicketStatusResolved    TicketStatus = "RESOLVED"
	TicketStatusClosed      TicketStatus = "CLOSED"
	TicketStatusCancelled   TicketStatus = "CANCELLED"
)

// IsTerminal reports whether the status ends the ticket lifecycle.
func (s TicketStatus) IsTerminal() bool {
	switch s {
	case TicketStatusResolved, TicketStatusClosed, TicketStatusCancelled:
		return true
	}
	return false
}

// TicketSnapshot is the engine's read-only view of a ticket. The platform
// owns the ticket itself; the engine only needs the fields rules can match
// on and the milestone timestamps the clocks stop at.
type TicketSnapshot struct {
	ID              string
	TenantID        string
	Status          TicketStatus
	Fields          map[string]string
	CreatedAt       time.Time
	FirstResponseAt *time.Time
	ResolvedAt      *time.Time
}

// FieldValue returns the value a rule's fieldName resolves to on this
// snapshot. Status is always matchable even if the adapter omitted it from
// the field map.
func (t TicketSnapshot) FieldValue(name string) (string, bool) {
	if v, ok := t.Fields[name]; ok {
		return v, true
	}
	if name == "status" {
		return string(t.Status), true
	}
	return "", false
}

// StatusChange is one entry of a ticket's ordered status-change log.
type StatusChange struct {
	Status    string
	EnteredAt time.Time
}

// StatusInterval is a contiguous span the ticket spent in one status.
// ExitedAt is nil for the interval still open at observation time.
type StatusInterval struct {
	Status    string
	EnteredAt time.Time
	ExitedAt  *time.Time
}
