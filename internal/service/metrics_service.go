package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/engine"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	apperrors "github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

// MetricsService maintains per-ticket SlaMetric rows and serves tenant-wide
// compliance aggregation.
type MetricsService struct {
	metrics    repository.SlaMetricRepository
	tickets    repository.TicketStore
	catalog    *CatalogService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// MetricsDependencies bundles collaborators for the metrics service.
type MetricsDependencies struct {
	MetricRepo  repository.SlaMetricRepository
	TicketStore repository.TicketStore
	Catalog     *CatalogService
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Now         func() time.Time
}

// NewMetricsService constructs the service.
func NewMetricsService(deps MetricsDependencies) *MetricsService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &MetricsService{
		metrics:    deps.MetricRepo,
		tickets:    deps.TicketStore,
		catalog:    deps.Catalog,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        now,
	}
}

// RefreshMetric recomputes the ticket's metric row from the latest clock
// output. When the winning rule changed since the last refresh the old row
// is marked superseded and a fresh row is bound to the new rule; numbers
// from different rules never overwrite each other. Returns nil when no SLA
// applies and none applied before.
func (s *MetricsService) RefreshMetric(ctx context.Context, tenantID, ticketID string) (*domain.SlaMetric, error) {
	snapshot, err := s.tickets.GetSnapshot(ctx, tenantID, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, err
	}

	set, err := s.catalog.LoadRuleSet(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	resolved, applicable := engine.Resolve(*snapshot, set)

	existing, err := s.metrics.GetActiveByTicket(ctx, tenantID, ticketID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		existing = nil
	}

	if !applicable {
		if existing != nil {
			if err := s.supersede(ctx, existing, nil); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	metric := existing
	if existing != nil && existing.SlaRuleID != resolved.Rule.ID {
		if err := s.supersede(ctx, existing, &resolved.Rule.ID); err != nil {
			return nil, err
		}
		metric = nil
	}

	wasFinal := metric != nil && metric.ResolutionMet != nil

	history, err := s.tickets.GetStatusHistory(ctx, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	clock := engine.Compute(resolved, *snapshot, history, s.now())

	if metric == nil {
		metric = &domain.SlaMetric{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			TicketID:  ticketID,
			SlaRuleID: resolved.Rule.ID,
		}
		s.fill(metric, resolved, snapshot, history, clock)
		if err := s.metrics.Create(ctx, metric); err != nil {
			return nil, err
		}
	} else {
		s.fill(metric, resolved, snapshot, history, clock)
		if err := s.metrics.Update(ctx, metric); err != nil {
			return nil, err
		}
	}

	if !wasFinal && metric.ResolutionMet != nil {
		s.publish(ctx, events.EventMetricFinalized, tenantID, ticketID, events.MetricFinalizedPayload{
			MetricID:          metric.ID,
			ResolutionMet:     metric.ResolutionMet,
			OverallCompliance: metric.OverallCompliance,
			FinalStatus:       snapshot.Status,
		})
	}
	return metric, nil
}

func (s *MetricsService) fill(metric *domain.SlaMetric, resolved *engine.ResolvedSla, snapshot *domain.TicketSnapshot, history []domain.StatusChange, clock engine.ClockResult) {
	metric.FirstResponseMinutes = nil
	metric.FirstResponseMet = nil
	if snapshot.FirstResponseAt != nil {
		minutes := int(clock.Response.Elapsed.Minutes())
		met := clock.Response.Elapsed <= clock.Response.Target
		metric.FirstResponseMinutes = &minutes
		metric.FirstResponseMet = &met
	}

	metric.ResolutionMinutes = nil
	metric.ResolutionMet = nil
	idle := clock.Paused
	if snapshot.ResolvedAt != nil {
		minutes := int(clock.Resolution.Elapsed.Minutes())
		metric.ResolutionMinutes = &minutes
		// Idle stops accruing once the ticket is resolved.
		frozen := engine.Compute(resolved, *snapshot, history, *snapshot.ResolvedAt)
		idle = frozen.Paused
		if snapshot.Status.IsTerminal() {
			met := clock.Resolution.Elapsed <= clock.Resolution.Target
			metric.ResolutionMet = &met
		}
	}
	metric.TotalIdleMinutes = int(idle.Minutes())

	metric.OverallCompliance = nil
	if metric.FirstResponseMet != nil && metric.ResolutionMet != nil {
		overall := *metric.FirstResponseMet && *metric.ResolutionMet
		metric.OverallCompliance = &overall
	}
}

func (s *MetricsService) supersede(ctx context.Context, metric *domain.SlaMetric, newRuleID *string) error {
	if err := s.metrics.Supersede(ctx, metric.TenantID, metric.ID, s.now()); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	s.publish(ctx, events.EventMetricSuperseded, metric.TenantID, metric.TicketID, events.MetricSupersededPayload{
		MetricID:  metric.ID,
		OldRuleID: metric.SlaRuleID,
		NewRuleID: newRuleID,
	})
	return nil
}

func (s *MetricsService) publish(ctx context.Context, eventType events.EventType, tenantID, ticketID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TenantID:  tenantID,
		TicketID:  ticketID,
		Timestamp: s.now(),
		Payload:   payload,
	}); err != nil {
		s.logger.Warn("publish metric event", zap.Error(err))
	}
}

// GetTicketMetrics returns all metric rows for a ticket, superseded ones
// included, oldest first.
func (s *MetricsService) GetTicketMetrics(ctx context.Context, tenantID, ticketID string) ([]domain.SlaMetric, error) {
	return s.metrics.ListByTicket(ctx, tenantID, ticketID)
}

// GetComplianceStats aggregates non-superseded metrics created inside the
// date range. An empty result set yields zero counts and nil rates, never a
// division error.
func (s *MetricsService) GetComplianceStats(ctx context.Context, tenantID string, from, to time.Time) (*domain.AggregateStats, error) {
	totals, err := s.metrics.GetComplianceTotals(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}

	stats := &domain.AggregateStats{TotalTickets: totals.Total}
	stats.ResponseCompliance = ratio(totals.ResponseMet, totals.ResponseEvaluated)
	stats.ResolutionCompliance = ratio(totals.ResolutionMet, totals.ResolutionEvaluated)
	stats.OverallCompliance = ratio(totals.OverallMet, totals.OverallEvaluated)
	stats.AvgFirstResponseMinutes = mean(totals.ResponseMinutesSum, totals.ResponseSamples)
	stats.AvgResolutionMinutes = mean(totals.ResolutionMinutesSum, totals.ResolutionSamples)
	if totals.Total > 0 {
		stats.AvgIdleMinutes = mean(totals.IdleMinutesSum, totals.Total)
	}
	return stats, nil
}

func ratio(met, evaluated int) *float64 {
	if evaluated == 0 {
		return nil
	}
	r := float64(met) / float64(evaluated) * 100
	return &r
}

func mean(sum int64, samples int) *float64 {
	if samples == 0 {
		return nil
	}
	m := float64(sum) / float64(samples)
	return &m
}
