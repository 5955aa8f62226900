package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// ComplianceTotals carries raw counts and sums for a tenant/date-range
// aggregation. Percentages and averages are derived in the service so the
// zero-set case never divides.
type ComplianceTotals struct {
	Total                int
	ResponseEvaluated    int
	ResponseMet          int
	ResolutionEvaluated  int
	ResolutionMet        int
	OverallEvaluated     int
	OverallMet           int
	ResponseMinutesSum   int64
	ResponseSamples      int
	ResolutionMinutesSum int64
	ResolutionSamples    int
	IdleMinutesSum       int64
}

// SlaMetricRepository encapsulates per-ticket compliance persistence. The
// engine is the only writer of this table.
type SlaMetricRepository interface {
	Create(ctx context.Context, metric *domain.SlaMetric) error
	Update(ctx context.Context, metric *domain.SlaMetric) error
	GetActiveByTicket(ctx context.Context, tenantID, ticketID string) (*domain.SlaMetric, error)
	ListByTicket(ctx context.Context, tenantID, ticketID string) ([]domain.SlaMetric, error)
	Supersede(ctx context.Context, tenantID, id string, at time.Time) error
	GetComplianceTotals(ctx context.Context, tenantID string, from, to time.Time) (*ComplianceTotals, error)
}

type slaMetricRepository struct {
	pool *pgxpool.Pool
}

// NewSlaMetricRepository instantiates repository.
func NewSlaMetricRepository(pool *pgxpool.Pool) SlaMetricRepository {
	return &slaMetricRepository{pool: pool}
}

func (r *slaMetricRepository) Create(ctx context.Context, metric *domain.SlaMetric) error {
	const query = `
        INSERT INTO sla_metrics (id, tenant_id, ticket_id, sla_rule_id, first_response_minutes, first_response_met,
            resolution_minutes, resolution_met, total_idle_minutes, overall_compliance, superseded)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,FALSE)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		metric.ID,
		metric.TenantID,
		metric.TicketID,
		metric.SlaRuleID,
		metric.FirstResponseMinutes,
		metric.FirstResponseMet,
		metric.ResolutionMinutes,
		metric.ResolutionMet,
		metric.TotalIdleMinutes,
		metric.OverallCompliance,
	).Scan(&metric.CreatedAt, &metric.UpdatedAt)
}

func (r *slaMetricRepository) Update(ctx context.Context, metric *domain.SlaMetric) error {
	const query = `
        UPDATE sla_metrics SET first_response_minutes=$1, first_response_met=$2, resolution_minutes=$3,
            resolution_met=$4, total_idle_minutes=$5, overall_compliance=$6, updated_at=NOW()
        WHERE tenant_id=$7 AND id=$8 AND superseded=FALSE`
	cmd, err := r.pool.Exec(ctx, query,
		metric.FirstResponseMinutes,
		metric.FirstResponseMet,
		metric.ResolutionMinutes,
		metric.ResolutionMet,
		metric.TotalIdleMinutes,
		metric.OverallCompliance,
		metric.TenantID,
		metric.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaMetricRepository) GetActiveByTicket(ctx context.Context, tenantID, ticketID string) (*domain.SlaMetric, error) {
	const query = `
        SELECT id, tenant_id, ticket_id, sla_rule_id, first_response_minutes, first_response_met,
               resolution_minutes, resolution_met, total_idle_minutes, overall_compliance,
               superseded, superseded_at, created_at, updated_at
        FROM sla_metrics WHERE tenant_id=$1 AND ticket_id=$2 AND superseded=FALSE`
	var metric domain.SlaMetric
	if err := r.pool.QueryRow(ctx, query, tenantID, ticketID).Scan(
		&metric.ID,
		&metric.TenantID,
		&metric.TicketID,
		&metric.SlaRuleID,
		&metric.FirstResponseMinutes,
		&metric.FirstResponseMet,
		&metric.ResolutionMinutes,
		&metric.ResolutionMet,
		&metric.TotalIdleMinutes,
		&metric.OverallCompliance,
		&metric.Superseded,
		&metric.SupersededAt,
		&metric.CreatedAt,
		&metric.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &metric, nil
}

func (r *slaMetricRepository) ListByTicket(ctx context.Context, tenantID, ticketID string) ([]domain.SlaMetric, error) {
	const query = `
        SELECT id, tenant_id, ticket_id, sla_rule_id, first_response_minutes, first_response_met,
               resolution_minutes, resolution_met, total_idle_minutes, overall_compliance,
               superseded, superseded_at, created_at, updated_at
        FROM sla_metrics WHERE tenant_id=$1 AND ticket_id=$2 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SlaMetric
	for rows.Next() {
		var metric domain.SlaMetric
		if err := rows.Scan(
			&metric.ID,
			&metric.TenantID,
			&metric.TicketID,
			&metric.SlaRuleID,
			&metric.FirstResponseMinutes,
			&metric.FirstResponseMet,
			&metric.ResolutionMinutes,
			&metric.ResolutionMet,
			&metric.TotalIdleMinutes,
			&metric.OverallCompliance,
			&metric.Superseded,
			&metric.SupersededAt,
			&metric.CreatedAt,
			&metric.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, metric)
	}
	return result, rows.Err()
}

func (r *slaMetricRepository) Supersede(ctx context.Context, tenantID, id string, at time.Time) error {
	const query = `
        UPDATE sla_metrics SET superseded=TRUE, superseded_at=$1, updated_at=NOW()
        WHERE tenant_id=$2 AND id=$3 AND superseded=FALSE`
	cmd, err := r.pool.Exec(ctx, query, at, tenantID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaMetricRepository) GetComplianceTotals(ctx context.Context, tenantID string, from, to time.Time) (*ComplianceTotals, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(first_response_met),
               COUNT(*) FILTER (WHERE first_response_met),
               COUNT(resolution_met),
               COUNT(*) FILTER (WHERE resolution_met),
               COUNT(overall_compliance),
               COUNT(*) FILTER (WHERE overall_compliance),
               COALESCE(SUM(first_response_minutes), 0),
               COUNT(first_response_minutes),
               COALESCE(SUM(resolution_minutes), 0),
               COUNT(resolution_minutes),
               COALESCE(SUM(total_idle_minutes), 0)
        FROM sla_metrics
        WHERE tenant_id=$1 AND superseded=FALSE AND created_at >= $2 AND created_at <= $3`
	var totals ComplianceTotals
	if err := r.pool.QueryRow(ctx, query, tenantID, from, to).Scan(
		&totals.Total,
		&totals.ResponseEvaluated,
		&totals.ResponseMet,
		&totals.ResolutionEvaluated,
		&totals.ResolutionMet,
		&totals.OverallEvaluated,
		&totals.OverallMet,
		&totals.ResponseMinutesSum,
		&totals.ResponseSamples,
		&totals.ResolutionMinutesSum,
		&totals.ResolutionSamples,
		&totals.IdleMinutesSum,
	); err != nil {
		return nil, err
	}
	return &totals, nil
}
