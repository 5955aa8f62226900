package domain

import "time"

// SlaDefinition is a named service level with time targets.
// Lower Level values are more stringent (e.g. Gold=1, Silver=2).
type SlaDefinition struct {
	ID                         string
	TenantID                   string
	Name                       string
	Level                      int
	FirstResponseTargetMinutes int
	ResolutionTargetMinutes    int
	IsActive                   bool
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// FirstResponseTarget returns the response target as a duration.
func (d SlaDefinition) FirstResponseTarget() time.Duration {
	return time.Duration(d.FirstResponseTargetMinutes) * time.Minute
}

// ResolutionTarget returns the resolution target as a duration.
func (d SlaDefinition) ResolutionTarget() time.Duration {
	return time.Duration(d.ResolutionTargetMinutes) * time.Minute
}

// SlaRule binds an SlaDefinition to tickets whose field matches a value.
// Lower Priority values are evaluated first.
type SlaRule struct {
	ID              string
	TenantID        string
	SlaDefinitionID string
	FieldName       string
	FieldValue      string
	Priority        int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StatusTimeoutPolicy controls clock behavior while a ticket sits in a status.
// TimeoutMinutes, when set, is a secondary per-status limit independent of the
// overall resolution target.
type StatusTimeoutPolicy struct {
	ID              string
	TenantID        string
	SlaDefinitionID string
	StatusValue     string
	IsPaused        bool
	TimeoutMinutes  *int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
