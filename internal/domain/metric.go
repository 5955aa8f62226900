package domain

import "time"

// SlaMetric tracks per-ticket compliance against the rule that governed it.
// Nullable fields stay nil until the corresponding milestone happens; nil
// means "not yet determined", never "failed". When the winning rule changes
// mid-lifecycle the row is marked superseded and a fresh row is created for
// the new rule.
type SlaMetric struct {
	ID                   string
	TenantID             string
	TicketID             string
	SlaRuleID            string
	FirstResponseMinutes *int
	FirstResponseMet     *bool
	ResolutionMinutes    *int
	ResolutionMet        *bool
	TotalIdleMinutes     int
	OverallCompliance    *bool
	Superseded           bool
	SupersededAt         *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// AggregateStats summarizes tenant-wide compliance over a date range.
// Percentage and average fields are nil when no metric contributes to them.
type AggregateStats struct {
	TotalTickets            int
	ResponseCompliance      *float64
	ResolutionCompliance    *float64
	OverallCompliance       *float64
	AvgFirstResponseMinutes *float64
	AvgResolutionMinutes    *float64
	AvgIdleMinutes          *float64
}
