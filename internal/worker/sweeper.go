// Package worker runs the engine's background sweep: one recurring pass per
// tenant that evaluates every open ticket with an applicable SLA and raises
// escalations for crossed thresholds.
package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/engine"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/service"
)

// Locker serializes sweep passes per tenant. Acquire returns false when the
// lock is already held, which makes an overlapping sweep skip the tenant
// instead of racing the previous pass.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Sweeper is the escalation scheduler. The sweep is idempotent by
// construction: every write goes through CreatePendingIfAbsent, so a ticket
// that fails transiently is simply retried on the next cycle.
type Sweeper struct {
	sweepCfg config.SweepConfig
	escCfg   config.EscalationConfig

	catalog     *service.CatalogService
	tickets     repository.TicketStore
	escalations repository.EscalationRepository
	locker      Locker
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// SweeperDependencies bundles collaborators for the sweeper.
type SweeperDependencies struct {
	SweepConfig      config.SweepConfig
	EscalationConfig config.EscalationConfig
	Catalog          *service.CatalogService
	TicketStore      repository.TicketStore
	EscalationRepo   repository.EscalationRepository
	Locker           Locker
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
	Metrics          *observability.Metrics
	Now              func() time.Time
}

// NewSweeper constructs the sweeper.
func NewSweeper(deps SweeperDependencies) *Sweeper {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		sweepCfg:    deps.SweepConfig,
		escCfg:      deps.EscalationConfig,
		catalog:     deps.Catalog,
		tickets:     deps.TicketStore,
		escalations: deps.EscalationRepo,
		locker:      deps.Locker,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		now:         now,
	}
}

// Run executes sweep cycles until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepCfg.Interval())
	defer ticker.Stop()

	s.logger.Info("sweeper started", zap.Duration("interval", s.sweepCfg.Interval()))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle sweeps every tenant with an active catalog, in parallel. Tenants
// share no mutable state, so cross-tenant parallelism is unconditional.
func (s *Sweeper) RunCycle(ctx context.Context) {
	tenants, err := s.catalog.ListActiveTenants(ctx)
	if err != nil {
		s.logger.Error("list tenants", zap.Error(err))
		return
	}

	var g errgroup.Group
	for _, tenantID := range tenants {
		tenantID := tenantID
		g.Go(func() error {
			s.sweepTenantLocked(ctx, tenantID)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Sweeper) sweepTenantLocked(ctx context.Context, tenantID string) {
	lockKey := "sla:sweep:" + tenantID
	if s.locker != nil {
		held, err := s.locker.Acquire(ctx, lockKey, s.sweepCfg.LockTTL())
		if err != nil {
			s.logger.Warn("sweep lock acquire", zap.String("tenant_id", tenantID), zap.Error(err))
			return
		}
		if !held {
			// A previous cycle is still working on this tenant.
			s.logger.Debug("sweep skipped, lock held", zap.String("tenant_id", tenantID))
			return
		}
		defer func() {
			if err := s.locker.Release(ctx, lockKey); err != nil {
				s.logger.Warn("sweep lock release", zap.String("tenant_id", tenantID), zap.Error(err))
			}
		}()
	}

	budgetCtx, cancel := context.WithTimeout(ctx, s.sweepCfg.TenantBudget())
	defer cancel()
	s.SweepTenant(budgetCtx, tenantID)
}

// SweepTenant evaluates one tenant's open tickets against their resolved
// SLAs and raises any due escalations. Tickets not reached inside the
// wall-clock budget are deferred to the next cycle, never dropped.
func (s *Sweeper) SweepTenant(ctx context.Context, tenantID string) {
	set, err := s.catalog.LoadRuleSet(ctx, tenantID)
	if err != nil {
		s.logger.Error("load rule set", zap.String("tenant_id", tenantID), zap.Error(err))
		return
	}
	if len(set.Definitions) == 0 {
		return
	}

	tickets, err := s.tickets.ListOpenTickets(ctx, tenantID)
	if err != nil {
		s.logger.Error("list open tickets", zap.String("tenant_id", tenantID), zap.Error(err))
		return
	}

	workers := s.sweepCfg.Workers
	if workers <= 0 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for _, ticket := range tickets {
		if ctx.Err() != nil {
			s.metrics.RecordSweep(tenantID, observability.SweepTicketsDeferred, 1)
			continue
		}
		ticket := ticket
		g.Go(func() error {
			s.evaluateTicket(ctx, tenantID, ticket, set)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Sweeper) evaluateTicket(ctx context.Context, tenantID string, ticket domain.TicketSnapshot, set engine.RuleSet) {
	if ctx.Err() != nil {
		s.metrics.RecordSweep(tenantID, observability.SweepTicketsDeferred, 1)
		return
	}
	s.metrics.RecordSweep(tenantID, observability.SweepTicketsEvaluated, 1)

	resolved, ok := engine.Resolve(ticket, set)
	if !ok {
		return
	}

	history, err := s.tickets.GetStatusHistory(ctx, tenantID, ticket.ID)
	if err != nil {
		s.metrics.RecordSweep(tenantID, observability.SweepStoreErrors, 1)
		s.logger.Warn("status history", zap.String("tenant_id", tenantID), zap.String("ticket_id", ticket.ID), zap.Error(err))
		return
	}

	clock := engine.Compute(resolved, ticket, history, s.now())
	for _, level := range s.dueLevels(resolved, clock) {
		s.ensureEscalation(ctx, tenantID, ticket.ID, resolved.Definition.ID, level)
	}
}

// dueLevels returns the escalation levels the ticket has crossed, ascending.
// Level n of the resolution clock fires at n * LevelMultiplier * target
// active time, so one long-running breach cascades upward over successive
// sweeps. A breached first-response clock that is still waiting for a
// response raises level 1, as does a per-status timeout; both are
// independent of the overall resolution clock.
func (s *Sweeper) dueLevels(resolved *engine.ResolvedSla, clock engine.ClockResult) []int {
	maxLevel := s.escCfg.MaxLevel
	if maxLevel <= 0 {
		maxLevel = 1
	}
	multiplier := s.escCfg.LevelMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}

	var due []int
	target := resolved.Definition.ResolutionTarget()
	for level := 1; level <= maxLevel; level++ {
		threshold := time.Duration(float64(target) * float64(level) * multiplier)
		if clock.Resolution.Elapsed >= threshold {
			due = append(due, level)
		}
	}

	levelOneDue := clock.Response.Breached && !clock.Response.Stopped
	if !levelOneDue {
		if policy, ok := resolved.Policies[clock.CurrentStatus]; ok && policy.TimeoutMinutes != nil {
			timeout := time.Duration(*policy.TimeoutMinutes) * time.Minute
			levelOneDue = clock.CurrentActive >= timeout
		}
	}
	if levelOneDue && (len(due) == 0 || due[0] != 1) {
		due = append([]int{1}, due...)
	}
	return due
}

func (s *Sweeper) ensureEscalation(ctx context.Context, tenantID, ticketID, definitionID string, level int) {
	esc := &domain.Escalation{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		TicketID:        ticketID,
		SlaDefinitionID: definitionID,
		Level:           level,
		EscalatedAt:     s.now(),
	}
	created, err := s.escalations.CreatePendingIfAbsent(ctx, esc)
	if err != nil {
		// Transient store failure: the sweep is idempotent, the next cycle
		// retries this ticket.
		s.metrics.RecordSweep(tenantID, observability.SweepStoreErrors, 1)
		s.logger.Warn("escalation write failed",
			zap.String("tenant_id", tenantID),
			zap.String("ticket_id", ticketID),
			zap.Int("level", level),
			zap.Error(err))
		return
	}
	if !created {
		return
	}

	s.metrics.RecordSweep(tenantID, observability.SweepEscalationsCreated, 1)
	s.logger.Info("escalation created",
		zap.String("tenant_id", tenantID),
		zap.String("ticket_id", ticketID),
		zap.Int("level", level))

	if s.dispatcher == nil {
		return
	}
	// Published only after the row is durably written; a dispatch failure
	// is logged downstream and never rolls the escalation back.
	if err := s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventEscalationCreated,
		TenantID:  tenantID,
		TicketID:  ticketID,
		Timestamp: esc.EscalatedAt,
		Payload: events.EscalationCreatedPayload{
			EscalationID:    esc.ID,
			SlaDefinitionID: definitionID,
			Level:           level,
			EscalatedAt:     esc.EscalatedAt,
		},
	}); err != nil {
		s.metrics.RecordSweep(tenantID, observability.SweepDispatchFailures, 1)
		s.logger.Warn("escalation event publish failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}
