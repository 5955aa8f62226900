package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// TicketStore is the engine's read-only window onto the platform's ticket
// tables. The engine never writes through it.
type TicketStore interface {
	ListOpenTickets(ctx context.Context, tenantID string) ([]domain.TicketSnapshot, error)
	GetSnapshot(ctx context.Context, tenantID, ticketID string) (*domain.TicketSnapshot, error)
	GetStatusHistory(ctx context.Context, tenantID, ticketID string) ([]domain.StatusChange, error)
}

type ticketStore struct {
	pool *pgxpool.Pool
}

// NewTicketStore builds the pgx-backed adapter over the platform schema.
func NewTicketStore(pool *pgxpool.Pool) TicketStore {
	return &ticketStore{pool: pool}
}

const ticketSnapshotColumns = `
        id, tenant_id, status, priority, category, created_at, first_response_at, resolved_at`

func (s *ticketStore) ListOpenTickets(ctx context.Context, tenantID string) ([]domain.TicketSnapshot, error) {
	const query = `
        SELECT ` + ticketSnapshotColumns + `
        FROM tickets
        WHERE tenant_id=$1 AND status NOT IN ('RESOLVED','CLOSED','CANCELLED')
        ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketSnapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *snapshot)
	}
	return result, rows.Err()
}

func (s *ticketStore) GetSnapshot(ctx context.Context, tenantID, ticketID string) (*domain.TicketSnapshot, error) {
	const query = `
        SELECT ` + ticketSnapshotColumns + `
        FROM tickets WHERE tenant_id=$1 AND id=$2`
	return scanSnapshot(s.pool.QueryRow(ctx, query, tenantID, ticketID).Scan)
}

func (s *ticketStore) GetStatusHistory(ctx context.Context, tenantID, ticketID string) ([]domain.StatusChange, error) {
	const query = `
        SELECT new_value, created_at
        FROM ticket_history
        WHERE tenant_id=$1 AND ticket_id=$2 AND change_type='status'
        ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StatusChange
	for rows.Next() {
		var change domain.StatusChange
		if err := rows.Scan(&change.Status, &change.EnteredAt); err != nil {
			return nil, err
		}
		result = append(result, change)
	}
	return result, rows.Err()
}

func scanSnapshot(scan func(dest ...any) error) (*domain.TicketSnapshot, error) {
	var (
		snapshot domain.TicketSnapshot
		priority string
		category *string
	)
	if err := scan(
		&snapshot.ID,
		&snapshot.TenantID,
		&snapshot.Status,
		&priority,
		&category,
		&snapshot.CreatedAt,
		&snapshot.FirstResponseAt,
		&snapshot.ResolvedAt,
	); err != nil {
		return nil, err
	}
	snapshot.Fields = map[string]string{
		"status":   string(snapshot.Status),
		"priority": priority,
	}
	if category != nil {
		snapshot.Fields["category"] = *category
	}
	return &snapshot, nil
}
