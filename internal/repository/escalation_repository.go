package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// EscalationRepository encapsulates escalation persistence. The engine is
// the only writer of this table.
type EscalationRepository interface {
	// CreatePendingIfAbsent inserts a pending escalation unless a pending or
	// acknowledged row already exists for the same (ticket, level). Returns
	// true when a row was inserted. Losing a concurrent race is reported as
	// created=false, not an error.
	CreatePendingIfAbsent(ctx context.Context, esc *domain.Escalation) (bool, error)
	// Acknowledge flips a pending escalation to acknowledged. Acknowledging
	// an already-acknowledged row is a no-op returning the stored row with
	// changed=false; the first acknowledgement's actor and timestamp win.
	Acknowledge(ctx context.Context, tenantID, id, userID string) (esc *domain.Escalation, changed bool, err error)
	GetByID(ctx context.Context, tenantID, id string) (*domain.Escalation, error)
	ListByTicket(ctx context.Context, tenantID, ticketID string) ([]domain.Escalation, error)
	ListPending(ctx context.Context, tenantID string) ([]domain.Escalation, error)
}

type escalationRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationRepository instantiates repository.
func NewEscalationRepository(pool *pgxpool.Pool) EscalationRepository {
	return &escalationRepository{pool: pool}
}

func (r *escalationRepository) CreatePendingIfAbsent(ctx context.Context, esc *domain.Escalation) (bool, error) {
	// Acknowledged rows block re-creation at the same level; the partial
	// unique index on pending rows closes the concurrent-insert race.
	const existsQuery = `
        SELECT EXISTS (
            SELECT 1 FROM escalations
            WHERE tenant_id=$1 AND ticket_id=$2 AND level=$3
              AND status IN ('PENDING','ACKNOWLEDGED'))`
	var exists bool
	if err := r.pool.QueryRow(ctx, existsQuery, esc.TenantID, esc.TicketID, esc.Level).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	const insertQuery = `
        INSERT INTO escalations (id, tenant_id, ticket_id, sla_definition_id, level, escalated_at, status)
        VALUES ($1,$2,$3,$4,$5,$6,'PENDING')
        ON CONFLICT (tenant_id, ticket_id, level) WHERE status='PENDING' DO NOTHING`
	cmd, err := r.pool.Exec(ctx, insertQuery,
		esc.ID,
		esc.TenantID,
		esc.TicketID,
		esc.SlaDefinitionID,
		esc.Level,
		esc.EscalatedAt,
	)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 0 {
		return false, nil
	}
	esc.Status = domain.EscalationStatusPending
	return true, nil
}

func (r *escalationRepository) Acknowledge(ctx context.Context, tenantID, id, userID string) (*domain.Escalation, bool, error) {
	const query = `
        UPDATE escalations SET status='ACKNOWLEDGED', acknowledged_at=NOW(), acknowledged_by=$1, updated_at=NOW()
        WHERE tenant_id=$2 AND id=$3 AND status='PENDING'`
	cmd, err := r.pool.Exec(ctx, query, userID, tenantID, id)
	if err != nil {
		return nil, false, err
	}
	esc, err := r.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, false, err
	}
	return esc, cmd.RowsAffected() > 0, nil
}

func (r *escalationRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Escalation, error) {
	const query = `
        SELECT id, tenant_id, ticket_id, sla_definition_id, level, escalated_at, status, acknowledged_at, acknowledged_by
        FROM escalations WHERE tenant_id=$1 AND id=$2`
	var esc domain.Escalation
	if err := r.pool.QueryRow(ctx, query, tenantID, id).Scan(
		&esc.ID,
		&esc.TenantID,
		&esc.TicketID,
		&esc.SlaDefinitionID,
		&esc.Level,
		&esc.EscalatedAt,
		&esc.Status,
		&esc.AcknowledgedAt,
		&esc.AcknowledgedBy,
	); err != nil {
		return nil, err
	}
	return &esc, nil
}

func (r *escalationRepository) ListByTicket(ctx context.Context, tenantID, ticketID string) ([]domain.Escalation, error) {
	const query = `
        SELECT id, tenant_id, ticket_id, sla_definition_id, level, escalated_at, status, acknowledged_at, acknowledged_by
        FROM escalations WHERE tenant_id=$1 AND ticket_id=$2 ORDER BY escalated_at ASC, level ASC`
	rows, err := r.pool.Query(ctx, query, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEscalations(rows)
}

func (r *escalationRepository) ListPending(ctx context.Context, tenantID string) ([]domain.Escalation, error) {
	const query = `
        SELECT id, tenant_id, ticket_id, sla_definition_id, level, escalated_at, status, acknowledged_at, acknowledged_by
        FROM escalations WHERE tenant_id=$1 AND status='PENDING' ORDER BY escalated_at ASC`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEscalations(rows)
}

func scanEscalations(rows pgx.Rows) ([]domain.Escalation, error) {
	var result []domain.Escalation
	for rows.Next() {
		var esc domain.Escalation
		if err := rows.Scan(
			&esc.ID,
			&esc.TenantID,
			&esc.TicketID,
			&esc.SlaDefinitionID,
			&esc.Level,
			&esc.EscalatedAt,
			&esc.Status,
			&esc.AcknowledgedAt,
			&esc.AcknowledgedBy,
		); err != nil {
			return nil, err
		}
		result = append(result, esc)
	}
	return result, rows.Err()
}
