package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// SlaRuleRepository encapsulates match-rule persistence.
type SlaRuleRepository interface {
	Create(ctx context.Context, rule *domain.SlaRule) error
	Update(ctx context.Context, rule *domain.SlaRule) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.SlaRule, error)
	ListActiveByDefinition(ctx context.Context, tenantID, definitionID string) ([]domain.SlaRule, error)
	ListActive(ctx context.Context, tenantID string) ([]domain.SlaRule, error)
	Deactivate(ctx context.Context, tenantID, id string) error
}

type slaRuleRepository struct {
	pool *pgxpool.Pool
}

// NewSlaRuleRepository instantiates repository.
func NewSlaRuleRepository(pool *pgxpool.Pool) SlaRuleRepository {
	return &slaRuleRepository{pool: pool}
}

func (r *slaRuleRepository) Create(ctx context.Context, rule *domain.SlaRule) error {
	const query = `
        INSERT INTO sla_rules (id, tenant_id, sla_definition_id, field_name, field_value, priority, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		rule.ID,
		rule.TenantID,
		rule.SlaDefinitionID,
		rule.FieldName,
		rule.FieldValue,
		rule.Priority,
		rule.IsActive,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
}

func (r *slaRuleRepository) Update(ctx context.Context, rule *domain.SlaRule) error {
	const query = `
        UPDATE sla_rules SET field_name=$1, field_value=$2, priority=$3, is_active=$4, updated_at=NOW()
        WHERE tenant_id=$5 AND id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		rule.FieldName,
		rule.FieldValue,
		rule.Priority,
		rule.IsActive,
		rule.TenantID,
		rule.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaRuleRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.SlaRule, error) {
	const query = `
        SELECT id, tenant_id, sla_definition_id, field_name, field_value, priority, is_active, created_at, updated_at
        FROM sla_rules WHERE tenant_id=$1 AND id=$2`
	var rule domain.SlaRule
	if err := r.pool.QueryRow(ctx, query, tenantID, id).Scan(
		&rule.ID,
		&rule.TenantID,
		&rule.SlaDefinitionID,
		&rule.FieldName,
		&rule.FieldValue,
		&rule.Priority,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *slaRuleRepository) ListActiveByDefinition(ctx context.Context, tenantID, definitionID string) ([]domain.SlaRule, error) {
	const query = `
        SELECT id, tenant_id, sla_definition_id, field_name, field_value, priority, is_active, created_at, updated_at
        FROM sla_rules WHERE tenant_id=$1 AND sla_definition_id=$2 AND is_active=TRUE
        ORDER BY priority ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, tenantID, definitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func (r *slaRuleRepository) ListActive(ctx context.Context, tenantID string) ([]domain.SlaRule, error) {
	const query = `
        SELECT r.id, r.tenant_id, r.sla_definition_id, r.field_name, r.field_value, r.priority, r.is_active, r.created_at, r.updated_at
        FROM sla_rules r
        JOIN sla_definitions d ON d.tenant_id = r.tenant_id AND d.id = r.sla_definition_id
        WHERE r.tenant_id=$1 AND r.is_active=TRUE AND d.is_active=TRUE
        ORDER BY r.priority ASC, r.id ASC`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func (r *slaRuleRepository) Deactivate(ctx context.Context, tenantID, id string) error {
	const query = `UPDATE sla_rules SET is_active=FALSE, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`
	cmd, err := r.pool.Exec(ctx, query, tenantID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanRules(rows pgx.Rows) ([]domain.SlaRule, error) {
	var result []domain.SlaRule
	for rows.Next() {
		var rule domain.SlaRule
		if err := rows.Scan(
			&rule.ID,
			&rule.TenantID,
			&rule.SlaDefinitionID,
			&rule.FieldName,
			&rule.FieldValue,
			&rule.Priority,
			&rule.IsActive,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}
