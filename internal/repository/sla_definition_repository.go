package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// SlaDefinitionRepository encapsulates SLA definition persistence. Every
// method is tenant-scoped; no query may cross tenants.
type SlaDefinitionRepository interface {
	Create(ctx context.Context, def *domain.SlaDefinition) error
	Update(ctx context.Context, def *domain.SlaDefinition) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.SlaDefinition, error)
	ListActive(ctx context.Context, tenantID string) ([]domain.SlaDefinition, error)
	Deactivate(ctx context.Context, tenantID, id string) error
	ListActiveTenants(ctx context.Context) ([]string, error)
}

type slaDefinitionRepository struct {
	pool *pgxpool.Pool
}

// NewSlaDefinitionRepository instantiates repository.
func NewSlaDefinitionRepository(pool *pgxpool.Pool) SlaDefinitionRepository {
	return &slaDefinitionRepository{pool: pool}
}

func (r *slaDefinitionRepository) Create(ctx context.Context, def *domain.SlaDefinition) error {
	const query = `
        INSERT INTO sla_definitions (id, tenant_id, name, level, first_response_target_minutes, resolution_target_minutes, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		def.ID,
		def.TenantID,
		def.Name,
		def.Level,
		def.FirstResponseTargetMinutes,
		def.ResolutionTargetMinutes,
		def.IsActive,
	).Scan(&def.CreatedAt, &def.UpdatedAt)
}

func (r *slaDefinitionRepository) Update(ctx context.Context, def *domain.SlaDefinition) error {
	const query = `
        UPDATE sla_definitions SET name=$1, level=$2, first_response_target_minutes=$3,
            resolution_target_minutes=$4, is_active=$5, updated_at=NOW()
        WHERE tenant_id=$6 AND id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		def.Name,
		def.Level,
		def.FirstResponseTargetMinutes,
		def.ResolutionTargetMinutes,
		def.IsActive,
		def.TenantID,
		def.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaDefinitionRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.SlaDefinition, error) {
	const query = `
        SELECT id, tenant_id, name, level, first_response_target_minutes, resolution_target_minutes,
               is_active, created_at, updated_at
        FROM sla_definitions WHERE tenant_id=$1 AND id=$2`
	var def domain.SlaDefinition
	if err := r.pool.QueryRow(ctx, query, tenantID, id).Scan(
		&def.ID,
		&def.TenantID,
		&def.Name,
		&def.Level,
		&def.FirstResponseTargetMinutes,
		&def.ResolutionTargetMinutes,
		&def.IsActive,
		&def.CreatedAt,
		&def.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *slaDefinitionRepository) ListActive(ctx context.Context, tenantID string) ([]domain.SlaDefinition, error) {
	const query = `
        SELECT id, tenant_id, name, level, first_response_target_minutes, resolution_target_minutes,
               is_active, created_at, updated_at
        FROM sla_definitions WHERE tenant_id=$1 AND is_active=TRUE ORDER BY level ASC, name ASC`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SlaDefinition
	for rows.Next() {
		var def domain.SlaDefinition
		if err := rows.Scan(
			&def.ID,
			&def.TenantID,
			&def.Name,
			&def.Level,
			&def.FirstResponseTargetMinutes,
			&def.ResolutionTargetMinutes,
			&def.IsActive,
			&def.CreatedAt,
			&def.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, def)
	}
	return result, rows.Err()
}

func (r *slaDefinitionRepository) Deactivate(ctx context.Context, tenantID, id string) error {
	const query = `UPDATE sla_definitions SET is_active=FALSE, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`
	cmd, err := r.pool.Exec(ctx, query, tenantID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaDefinitionRepository) ListActiveTenants(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT tenant_id FROM sla_definitions WHERE is_active=TRUE ORDER BY tenant_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var tenant string
		if err := rows.Scan(&tenant); err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}
