package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	apperrors "github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

// EscalationService exposes escalation queries and the acknowledgement
// operation. Escalation rows are created only by the sweep.
type EscalationService struct {
	escalations repository.EscalationRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// NewEscalationService constructs the service.
func NewEscalationService(escalations repository.EscalationRepository, dispatcher events.Dispatcher, logger *zap.Logger) *EscalationService {
	return &EscalationService{escalations: escalations, dispatcher: dispatcher, logger: logger}
}

// Acknowledge marks an escalation handled. Concurrent or repeated calls
// converge: the first acknowledgement's actor and timestamp are kept and
// later calls return the stored row unchanged.
func (s *EscalationService) Acknowledge(ctx context.Context, tenantID, escalationID, userID string) (*domain.Escalation, error) {
	esc, changed, err := s.escalations.Acknowledge(ctx, tenantID, escalationID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("escalation", map[string]any{"id": escalationID})
		}
		return nil, err
	}
	if changed && s.dispatcher != nil {
		ackAt := time.Now()
		if esc.AcknowledgedAt != nil {
			ackAt = *esc.AcknowledgedAt
		}
		if err := s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventEscalationAcknowledged,
			TenantID:  tenantID,
			TicketID:  esc.TicketID,
			Timestamp: ackAt,
			Payload: events.EscalationAcknowledgedPayload{
				EscalationID:   esc.ID,
				AcknowledgedBy: userID,
				AcknowledgedAt: ackAt,
			},
		}); err != nil {
			s.logger.Warn("publish acknowledgement event", zap.Error(err))
		}
	}
	return esc, nil
}

// ListForTicket returns every escalation raised for a ticket.
func (s *EscalationService) ListForTicket(ctx context.Context, tenantID, ticketID string) ([]domain.Escalation, error) {
	return s.escalations.ListByTicket(ctx, tenantID, ticketID)
}

// ListPending returns the tenant's unacknowledged escalations.
func (s *EscalationService) ListPending(ctx context.Context, tenantID string) ([]domain.Escalation, error) {
	return s.escalations.ListPending(ctx, tenantID)
}
