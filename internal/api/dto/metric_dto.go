package dto

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// MetricResponse response.
type MetricResponse struct {
	ID                   string     `json:"id"`
	TicketID             string     `json:"ticket_id"`
	SlaRuleID            string     `json:"sla_rule_id"`
	FirstResponseMinutes *int       `json:"first_response_minutes"`
	FirstResponseMet     *bool      `json:"first_response_met"`
	ResolutionMinutes    *int       `json:"resolution_minutes"`
	ResolutionMet        *bool      `json:"resolution_met"`
	TotalIdleMinutes     int        `json:"total_idle_minutes"`
	OverallCompliance    *bool      `json:"overall_compliance"`
	Superseded           bool       `json:"superseded"`
	SupersededAt         *time.Time `json:"superseded_at"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// NewMetricResponse maps the domain entity.
func NewMetricResponse(metric *domain.SlaMetric) MetricResponse {
	return MetricResponse{
		ID:                   metric.ID,
		TicketID:             metric.TicketID,
		SlaRuleID:            metric.SlaRuleID,
		FirstResponseMinutes: metric.FirstResponseMinutes,
		FirstResponseMet:     metric.FirstResponseMet,
		ResolutionMinutes:    metric.ResolutionMinutes,
		ResolutionMet:        metric.ResolutionMet,
		TotalIdleMinutes:     metric.TotalIdleMinutes,
		OverallCompliance:    metric.OverallCompliance,
		Superseded:           metric.Superseded,
		SupersededAt:         metric.SupersededAt,
		CreatedAt:            metric.CreatedAt,
		UpdatedAt:            metric.UpdatedAt,
	}
}

// ComplianceStatsResponse response.
type ComplianceStatsResponse struct {
	TotalTickets            int      `json:"total_tickets"`
	ResponseCompliance      *float64 `json:"response_compliance"`
	ResolutionCompliance    *float64 `json:"resolution_compliance"`
	OverallCompliance       *float64 `json:"overall_compliance"`
	AvgFirstResponseMinutes *float64 `json:"avg_first_response_minutes"`
	AvgResolutionMinutes    *float64 `json:"avg_resolution_minutes"`
	AvgIdleMinutes          *float64 `json:"avg_idle_minutes"`
}

// NewComplianceStatsResponse maps the aggregate.
func NewComplianceStatsResponse(stats *domain.AggregateStats) ComplianceStatsResponse {
	return ComplianceStatsResponse{
		TotalTickets:            stats.TotalTickets,
		ResponseCompliance:      stats.ResponseCompliance,
		ResolutionCompliance:    stats.ResolutionCompliance,
		OverallCompliance:       stats.OverallCompliance,
		AvgFirstResponseMinutes: stats.AvgFirstResponseMinutes,
		AvgResolutionMinutes:    stats.AvgResolutionMinutes,
		AvgIdleMinutes:          stats.AvgIdleMinutes,
	}
}

// TicketEventRequest is posted by the platform when a ticket changes in a
// way the engine must react to.
type TicketEventRequest struct {
	TicketID string `json:"ticket_id" validate:"required"`
	Event    string `json:"event" validate:"required,oneof=status_changed field_changed first_response resolved"`
}
