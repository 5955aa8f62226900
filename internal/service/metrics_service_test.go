package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	apperrors "github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

var metricStart = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

type fakeDefinitionRepo struct {
	definitions []domain.SlaDefinition
}

func (r *fakeDefinitionRepo) Create(context.Context, *domain.SlaDefinition) error { return nil }
func (r *fakeDefinitionRepo) Update(context.Context, *domain.SlaDefinition) error { return nil }
func (r *fakeDefinitionRepo) GetByID(context.Context, string, string) (*domain.SlaDefinition, error) {
	return nil, pgx.ErrNoRows
}
func (r *fakeDefinitionRepo) ListActive(_ context.Context, tenantID string) ([]domain.SlaDefinition, error) {
	var out []domain.SlaDefinition
	for _, def := range r.definitions {
		if def.TenantID == tenantID && def.IsActive {
			out = append(out, def)
		}
	}
	return out, nil
}
func (r *fakeDefinitionRepo) Deactivate(context.Context, string, string) error { return nil }
func (r *fakeDefinitionRepo) ListActiveTenants(context.Context) ([]string, error) {
	return nil, nil
}

type fakeRuleRepo struct {
	rules []domain.SlaRule
}

func (r *fakeRuleRepo) Create(context.Context, *domain.SlaRule) error { return nil }
func (r *fakeRuleRepo) Update(context.Context, *domain.SlaRule) error { return nil }
func (r *fakeRuleRepo) GetByID(context.Context, string, string) (*domain.SlaRule, error) {
	return nil, pgx.ErrNoRows
}
func (r *fakeRuleRepo) ListActiveByDefinition(context.Context, string, string) ([]domain.SlaRule, error) {
	return nil, nil
}
func (r *fakeRuleRepo) ListActive(_ context.Context, tenantID string) ([]domain.SlaRule, error) {
	var out []domain.SlaRule
	for _, rule := range r.rules {
		if rule.TenantID == tenantID && rule.IsActive {
			out = append(out, rule)
		}
	}
	return out, nil
}
func (r *fakeRuleRepo) Deactivate(context.Context, string, string) error { return nil }

type fakePolicyRepo struct {
	policies []domain.StatusTimeoutPolicy
}

func (r *fakePolicyRepo) Create(context.Context, *domain.StatusTimeoutPolicy) error { return nil }
func (r *fakePolicyRepo) Update(context.Context, *domain.StatusTimeoutPolicy) error { return nil }
func (r *fakePolicyRepo) GetByID(context.Context, string, string) (*domain.StatusTimeoutPolicy, error) {
	return nil, pgx.ErrNoRows
}
func (r *fakePolicyRepo) ListActiveByDefinition(context.Context, string, string) ([]domain.StatusTimeoutPolicy, error) {
	return nil, nil
}
func (r *fakePolicyRepo) ListActive(_ context.Context, tenantID string) ([]domain.StatusTimeoutPolicy, error) {
	var out []domain.StatusTimeoutPolicy
	for _, policy := range r.policies {
		if policy.TenantID == tenantID && policy.IsActive {
			out = append(out, policy)
		}
	}
	return out, nil
}
func (r *fakePolicyRepo) Deactivate(context.Context, string, string) error { return nil }

type fakeTicketStore struct {
	tickets map[string]*domain.TicketSnapshot
	history map[string][]domain.StatusChange
}

func (s *fakeTicketStore) ListOpenTickets(context.Context, string) ([]domain.TicketSnapshot, error) {
	return nil, nil
}

func (s *fakeTicketStore) GetSnapshot(_ context.Context, tenantID, ticketID string) (*domain.TicketSnapshot, error) {
	t, ok := s.tickets[ticketID]
	if !ok || t.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	snapshot := *t
	return &snapshot, nil
}

func (s *fakeTicketStore) GetStatusHistory(_ context.Context, _, ticketID string) ([]domain.StatusChange, error) {
	return s.history[ticketID], nil
}

type fakeMetricRepo struct {
	rows   []*domain.SlaMetric
	totals *repository.ComplianceTotals
}

func (r *fakeMetricRepo) Create(_ context.Context, metric *domain.SlaMetric) error {
	stored := *metric
	r.rows = append(r.rows, &stored)
	return nil
}

func (r *fakeMetricRepo) Update(_ context.Context, metric *domain.SlaMetric) error {
	for i, row := range r.rows {
		if row.ID == metric.ID && !row.Superseded {
			stored := *metric
			r.rows[i] = &stored
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeMetricRepo) GetActiveByTicket(_ context.Context, tenantID, ticketID string) (*domain.SlaMetric, error) {
	for _, row := range r.rows {
		if row.TenantID == tenantID && row.TicketID == ticketID && !row.Superseded {
			metric := *row
			return &metric, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeMetricRepo) ListByTicket(_ context.Context, tenantID, ticketID string) ([]domain.SlaMetric, error) {
	var out []domain.SlaMetric
	for _, row := range r.rows {
		if row.TenantID == tenantID && row.TicketID == ticketID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (r *fakeMetricRepo) Supersede(_ context.Context, tenantID, id string, at time.Time) error {
	for _, row := range r.rows {
		if row.TenantID == tenantID && row.ID == id && !row.Superseded {
			row.Superseded = true
			row.SupersededAt = &at
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeMetricRepo) GetComplianceTotals(context.Context, string, time.Time, time.Time) (*repository.ComplianceTotals, error) {
	if r.totals != nil {
		return r.totals, nil
	}
	return &repository.ComplianceTotals{}, nil
}

type metricsFixture struct {
	service    *MetricsService
	metrics    *fakeMetricRepo
	tickets    *fakeTicketStore
	rules      *fakeRuleRepo
	superseded *int
	finalized  *int
	now        *time.Time
}

func newMetricsFixture(t *testing.T) *metricsFixture {
	t.Helper()

	definitions := &fakeDefinitionRepo{definitions: []domain.SlaDefinition{
		{
			ID:                         "def-gold",
			TenantID:                   "tenant-1",
			Name:                       "Gold",
			Level:                      1,
			FirstResponseTargetMinutes: 30,
			ResolutionTargetMinutes:    120,
			IsActive:                   true,
		},
		{
			ID:                         "def-silver",
			TenantID:                   "tenant-1",
			Name:                       "Silver",
			Level:                      2,
			FirstResponseTargetMinutes: 60,
			ResolutionTargetMinutes:    480,
			IsActive:                   true,
		},
	}}
	rules := &fakeRuleRepo{rules: []domain.SlaRule{
		{
			ID:              "rule-critical",
			TenantID:        "tenant-1",
			SlaDefinitionID: "def-gold",
			FieldName:       "priority",
			FieldValue:      "critical",
			Priority:        10,
			IsActive:        true,
		},
		{
			ID:              "rule-low",
			TenantID:        "tenant-1",
			SlaDefinitionID: "def-silver",
			FieldName:       "priority",
			FieldValue:      "low",
			Priority:        20,
			IsActive:        true,
		},
	}}

	tickets := &fakeTicketStore{
		tickets: map[string]*domain.TicketSnapshot{"ticket-1": {
			ID:        "ticket-1",
			TenantID:  "tenant-1",
			Status:    domain.TicketStatusOpen,
			Fields:    map[string]string{"priority": "low"},
			CreatedAt: metricStart,
		}},
		history: map[string][]domain.StatusChange{},
	}

	metrics := &fakeMetricRepo{}
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	superseded, finalized := 0, 0
	dispatcher.Subscribe(events.EventMetricSuperseded, func(context.Context, events.Event) error {
		superseded++
		return nil
	})
	dispatcher.Subscribe(events.EventMetricFinalized, func(context.Context, events.Event) error {
		finalized++
		return nil
	})

	now := metricStart.Add(10 * time.Minute)
	svc := NewMetricsService(MetricsDependencies{
		MetricRepo:  metrics,
		TicketStore: tickets,
		Catalog: NewCatalogService(CatalogDependencies{
			DefinitionRepo: definitions,
			RuleRepo:       rules,
			PolicyRepo:     &fakePolicyRepo{},
		}),
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		Now:        func() time.Time { return now },
	})
	return &metricsFixture{
		service:    svc,
		metrics:    metrics,
		tickets:    tickets,
		rules:      rules,
		superseded: &superseded,
		finalized:  &finalized,
		now:        &now,
	}
}

func TestRefreshMetricCreatesOpenRow(t *testing.T) {
	f := newMetricsFixture(t)

	metric, err := f.service.RefreshMetric(context.Background(), "tenant-1", "ticket-1")
	require.NoError(t, err)
	require.NotNil(t, metric)
	assert.Equal(t, "rule-low", metric.SlaRuleID)
	assert.Nil(t, metric.FirstResponseMinutes)
	assert.Nil(t, metric.FirstResponseMet)
	assert.Nil(t, metric.ResolutionMet)
	assert.Nil(t, metric.OverallCompliance)
	assert.False(t, metric.Superseded)
	assert.Equal(t, 0, *f.finalized)
}

func TestRefreshMetricRecordsFirstResponse(t *testing.T) {
	f := newMetricsFixture(t)
	firstResponse := metricStart.Add(45 * time.Minute)
	f.tickets.tickets["ticket-1"].FirstResponseAt = &firstResponse
	*f.now = metricStart.Add(50 * time.Minute)

	metric, err := f.service.RefreshMetric(context.Background(), "tenant-1", "ticket-1")
	require.NoError(t, err)
	require.NotNil(t, metric.FirstResponseMinutes)
	assert.Equal(t, 45, *metric.FirstResponseMinutes)
	require.NotNil(t, metric.FirstResponseMet)
	assert.True(t, *metric.FirstResponseMet)
	assert.Nil(t, metric.ResolutionMet)
	assert.Nil(t, metric.OverallCompliance)
}

func TestRefreshMetricFinalizesOnResolution(t *testing.T) {
	f := newMetricsFixture(t)
	ticket := f.tickets.tickets["ticket-1"]
	firstResponse := metricStart.Add(20 * time.Minute)
	resolvedAt := metricStart.Add(3 * time.Hour)
	ticket.FirstResponseAt = &firstResponse
	ticket.ResolvedAt = &resolvedAt
	ticket.Status = domain.TicketStatusResolved
	f.tickets.history["ticket-1"] = []domain.StatusChange{
		{Status: "OPEN", EnteredAt: metricStart},
		{Status: "RESOLVED", EnteredAt: resolvedAt},
	}
	*f.now = metricStart.Add(4 * time.Hour)

	metric, err := f.service.RefreshMetric(context.Background(), "tenant-1", "ticket-1")
	require.NoError(t, err)
	require.NotNil(t, metric.ResolutionMinutes)
	assert.Equal(t, 180, *metric.ResolutionMinutes)
	require.NotNil(t, metric.ResolutionMet)
	assert.True(t, *metric.ResolutionMet)
	require.NotNil(t, metric.OverallCompliance)
	assert.True(t, *metric.OverallCompliance)
	assert.Equal(t, 1, *f.finalized)

	// A second refresh of an already-final row does not republish.
	_, err = f.service.RefreshMetric(context.Background(), "tenant-1", "ticket-1")
	require.NoError(t, err)
	assert.Equal(t, 1, *f.finalized)
}

func TestRefreshMetricSupersedesOnRuleChange(t *testing.T) {
	f := newMetricsFixture(t)

	first, err := f.service.RefreshMetric(context.Background(), "tenant-1", "ticket-1")
	require.NoError(t, err)
	assert.Equal(t, "rule-low", first.SlaRuleID)

	f.tickets.tickets["ticket-1"].Fields["priority"] = "critical"
	second, err := f.service.RefreshMetric(context.Background(), "tenant-1", "ticket-1")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "rule-critical", second.SlaRuleID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, *f.superseded)

	rows, err := f.metrics.ListByTicket(context.Background(), "tenant-1", "ticket-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		if row.ID == first.ID {
			assert.True(t, row.Superseded)
			require.NotNil(t, row.SupersededAt)
		} else {
			assert.False(t, row.Superseded)
		}
	}
}

func TestRefreshMetricSupersedesWhenNoRuleApplies(t *testing.T) {
	f := newMetricsFixture(t)

	first, err := f.service.RefreshMetric(context.Background(), "tenant-1", "ticket-1")
	require.NoError(t, err)
	require.NotNil(t, first)

	for i := range f.rules.rules {
		f.rules.rules[i].IsActive = false
	}
	metric, err := f.service.RefreshMetric(context.Background(), "tenant-1", "ticket-1")
	require.NoError(t, err)
	assert.Nil(t, metric)
	assert.Equal(t, 1, *f.superseded)

	_, err = f.metrics.GetActiveByTicket(context.Background(), "tenant-1", "ticket-1")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestRefreshMetricUnknownTicket(t *testing.T) {
	f := newMetricsFixture(t)

	_, err := f.service.RefreshMetric(context.Background(), "tenant-1", "missing")
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestComplianceStatsEmptyRange(t *testing.T) {
	f := newMetricsFixture(t)

	stats, err := f.service.GetComplianceStats(context.Background(), "tenant-1", metricStart, metricStart.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalTickets)
	assert.Nil(t, stats.ResponseCompliance)
	assert.Nil(t, stats.ResolutionCompliance)
	assert.Nil(t, stats.OverallCompliance)
	assert.Nil(t, stats.AvgFirstResponseMinutes)
	assert.Nil(t, stats.AvgResolutionMinutes)
	assert.Nil(t, stats.AvgIdleMinutes)
}

func TestComplianceStatsDerivesRates(t *testing.T) {
	f := newMetricsFixture(t)
	f.metrics.totals = &repository.ComplianceTotals{
		Total:                10,
		ResponseEvaluated:    8,
		ResponseMet:          6,
		ResolutionEvaluated:  4,
		ResolutionMet:        3,
		OverallEvaluated:     4,
		OverallMet:           2,
		ResponseMinutesSum:   400,
		ResponseSamples:      8,
		ResolutionMinutesSum: 1200,
		ResolutionSamples:    4,
		IdleMinutesSum:       250,
	}

	stats, err := f.service.GetComplianceStats(context.Background(), "tenant-1", metricStart, metricStart.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalTickets)
	require.NotNil(t, stats.ResponseCompliance)
	assert.InDelta(t, 75.0, *stats.ResponseCompliance, 0.001)
	require.NotNil(t, stats.ResolutionCompliance)
	assert.InDelta(t, 75.0, *stats.ResolutionCompliance, 0.001)
	require.NotNil(t, stats.OverallCompliance)
	assert.InDelta(t, 50.0, *stats.OverallCompliance, 0.001)
	require.NotNil(t, stats.AvgFirstResponseMinutes)
	assert.InDelta(t, 50.0, *stats.AvgFirstResponseMinutes, 0.001)
	require.NotNil(t, stats.AvgResolutionMinutes)
	assert.InDelta(t, 300.0, *stats.AvgResolutionMinutes, 0.001)
	require.NotNil(t, stats.AvgIdleMinutes)
	assert.InDelta(t, 25.0, *stats.AvgIdleMinutes, 0.001)
}
