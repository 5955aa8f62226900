package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// StatusPolicyRepository encapsulates per-status clock policy persistence.
type StatusPolicyRepository interface {
	Create(ctx context.Context, policy *domain.StatusTimeoutPolicy) error
	Update(ctx context.Context, policy *domain.StatusTimeoutPolicy) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.StatusTimeoutPolicy, error)
	ListActiveByDefinition(ctx context.Context, tenantID, definitionID string) ([]domain.StatusTimeoutPolicy, error)
	ListActive(ctx context.Context, tenantID string) ([]domain.StatusTimeoutPolicy, error)
	Deactivate(ctx context.Context, tenantID, id string) error
}

type statusPolicyRepository struct {
	pool *pgxpool.Pool
}

// NewStatusPolicyRepository instantiates repository.
func NewStatusPolicyRepository(pool *pgxpool.Pool) StatusPolicyRepository {
	return &statusPolicyRepository{pool: pool}
}

func (r *statusPolicyRepository) Create(ctx context.Context, policy *domain.StatusTimeoutPolicy) error {
	const query = `
        INSERT INTO status_timeout_policies (id, tenant_id, sla_definition_id, status_value, is_paused, timeout_minutes, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		policy.ID,
		policy.TenantID,
		policy.SlaDefinitionID,
		policy.StatusValue,
		policy.IsPaused,
		policy.TimeoutMinutes,
		policy.IsActive,
	).Scan(&policy.CreatedAt, &policy.UpdatedAt)
}

func (r *statusPolicyRepository) Update(ctx context.Context, policy *domain.StatusTimeoutPolicy) error {
	const query = `
        UPDATE status_timeout_policies SET status_value=$1, is_paused=$2, timeout_minutes=$3, is_active=$4, updated_at=NOW()
        WHERE tenant_id=$5 AND id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		policy.StatusValue,
		policy.IsPaused,
		policy.TimeoutMinutes,
		policy.IsActive,
		policy.TenantID,
		policy.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *statusPolicyRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.StatusTimeoutPolicy, error) {
	const query = `
        SELECT id, tenant_id, sla_definition_id, status_value, is_paused, timeout_minutes, is_active, created_at, updated_at
        FROM status_timeout_policies WHERE tenant_id=$1 AND id=$2`
	var policy domain.StatusTimeoutPolicy
	if err := r.pool.QueryRow(ctx, query, tenantID, id).Scan(
		&policy.ID,
		&policy.TenantID,
		&policy.SlaDefinitionID,
		&policy.StatusValue,
		&policy.IsPaused,
		&policy.TimeoutMinutes,
		&policy.IsActive,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *statusPolicyRepository) ListActiveByDefinition(ctx context.Context, tenantID, definitionID string) ([]domain.StatusTimeoutPolicy, error) {
	const query = `
        SELECT id, tenant_id, sla_definition_id, status_value, is_paused, timeout_minutes, is_active, created_at, updated_at
        FROM status_timeout_policies
        WHERE tenant_id=$1 AND sla_definition_id=$2 AND is_active=TRUE
        ORDER BY status_value ASC`
	rows, err := r.pool.Query(ctx, query, tenantID, definitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPolicies(rows)
}

func (r *statusPolicyRepository) ListActive(ctx context.Context, tenantID string) ([]domain.StatusTimeoutPolicy, error) {
	const query = `
        SELECT p.id, p.tenant_id, p.sla_definition_id, p.status_value, p.is_paused, p.timeout_minutes, p.is_active, p.created_at, p.updated_at
        FROM status_timeout_policies p
        JOIN sla_definitions d ON d.tenant_id = p.tenant_id AND d.id = p.sla_definition_id
        WHERE p.tenant_id=$1 AND p.is_active=TRUE AND d.is_active=TRUE
        ORDER BY p.sla_definition_id ASC, p.status_value ASC`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPolicies(rows)
}

func (r *statusPolicyRepository) Deactivate(ctx context.Context, tenantID, id string) error {
	const query = `UPDATE status_timeout_policies SET is_active=FALSE, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`
	cmd, err := r.pool.Exec(ctx, query, tenantID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanPolicies(rows pgx.Rows) ([]domain.StatusTimeoutPolicy, error) {
	var result []domain.StatusTimeoutPolicy
	for rows.Next() {
		var policy domain.StatusTimeoutPolicy
		if err := rows.Scan(
			&policy.ID,
			&policy.TenantID,
			&policy.SlaDefinitionID,
			&policy.StatusValue,
			&policy.IsPaused,
			&policy.TimeoutMinutes,
			&policy.IsActive,
			&policy.CreatedAt,
			&policy.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, policy)
	}
	return result, rows.Err()
}
