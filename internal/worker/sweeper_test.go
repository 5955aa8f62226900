package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/service"
)

const testTenant = "tenant-1"

var sweepStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

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
	seen := map[string]bool{}
	var out []string
	for _, def := range r.definitions {
		if def.IsActive && !seen[def.TenantID] {
			seen[def.TenantID] = true
			out = append(out, def.TenantID)
		}
	}
	return out, nil
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
	tickets []domain.TicketSnapshot
	history map[string][]domain.StatusChange
}

func (s *fakeTicketStore) ListOpenTickets(_ context.Context, tenantID string) ([]domain.TicketSnapshot, error) {
	var out []domain.TicketSnapshot
	for _, t := range s.tickets {
		if t.TenantID == tenantID && !t.Status.IsTerminal() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeTicketStore) GetSnapshot(_ context.Context, tenantID, ticketID string) (*domain.TicketSnapshot, error) {
	for _, t := range s.tickets {
		if t.TenantID == tenantID && t.ID == ticketID {
			snapshot := t
			return &snapshot, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeTicketStore) GetStatusHistory(_ context.Context, _, ticketID string) ([]domain.StatusChange, error) {
	return s.history[ticketID], nil
}

// fakeEscalationRepo mimics the partial unique index in memory.
type fakeEscalationRepo struct {
	mu       sync.Mutex
	rows     map[string]*domain.Escalation
	failNext int
}

func newFakeEscalationRepo() *fakeEscalationRepo {
	return &fakeEscalationRepo{rows: make(map[string]*domain.Escalation)}
}

func escKey(tenantID, ticketID string, level int) string {
	return tenantID + "|" + ticketID + "|" + string(rune('0'+level))
}

func (r *fakeEscalationRepo) CreatePendingIfAbsent(_ context.Context, esc *domain.Escalation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext > 0 {
		r.failNext--
		return false, errors.New("connection reset")
	}
	key := escKey(esc.TenantID, esc.TicketID, esc.Level)
	if _, ok := r.rows[key]; ok {
		return false, nil
	}
	stored := *esc
	stored.Status = domain.EscalationStatusPending
	r.rows[key] = &stored
	return true, nil
}

func (r *fakeEscalationRepo) Acknowledge(_ context.Context, tenantID, id, userID string) (*domain.Escalation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, esc := range r.rows {
		if esc.TenantID == tenantID && esc.ID == id {
			if esc.Status == domain.EscalationStatusAcknowledged {
				return esc, false, nil
			}
			esc.Status = domain.EscalationStatusAcknowledged
			esc.AcknowledgedBy = &userID
			return esc, true, nil
		}
	}
	return nil, false, pgx.ErrNoRows
}

func (r *fakeEscalationRepo) GetByID(context.Context, string, string) (*domain.Escalation, error) {
	return nil, pgx.ErrNoRows
}

func (r *fakeEscalationRepo) ListByTicket(_ context.Context, tenantID, ticketID string) ([]domain.Escalation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Escalation
	for _, esc := range r.rows {
		if esc.TenantID == tenantID && esc.TicketID == ticketID {
			out = append(out, *esc)
		}
	}
	return out, nil
}

func (r *fakeEscalationRepo) ListPending(_ context.Context, tenantID string) ([]domain.Escalation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Escalation
	for _, esc := range r.rows {
		if esc.TenantID == tenantID && esc.Status == domain.EscalationStatusPending {
			out = append(out, *esc)
		}
	}
	return out, nil
}

type fakeLocker struct {
	held     bool
	acquired int
	released int
}

func (l *fakeLocker) Acquire(context.Context, string, time.Duration) (bool, error) {
	l.acquired++
	return !l.held, nil
}

func (l *fakeLocker) Release(context.Context, string) error {
	l.released++
	return nil
}

type sweepFixture struct {
	sweeper     *Sweeper
	escalations *fakeEscalationRepo
	tickets     *fakeTicketStore
	metrics     *observability.Metrics
	created     *int
}

func newSweepFixture(t *testing.T, definitions *fakeDefinitionRepo, rules *fakeRuleRepo, policies *fakePolicyRepo, tickets *fakeTicketStore, locker Locker, now time.Time) *sweepFixture {
	t.Helper()

	escalations := newFakeEscalationRepo()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	created := 0
	dispatcher.Subscribe(events.EventEscalationCreated, func(context.Context, events.Event) error {
		created++
		return nil
	})

	catalog := service.NewCatalogService(service.CatalogDependencies{
		DefinitionRepo: definitions,
		RuleRepo:       rules,
		PolicyRepo:     policies,
	})
	sweeper := NewSweeper(SweeperDependencies{
		SweepConfig:      config.SweepConfig{IntervalSeconds: 60, TenantBudgetSeconds: 60, Workers: 2, LockTTLSeconds: 90},
		EscalationConfig: config.EscalationConfig{MaxLevel: 3, LevelMultiplier: 1},
		Catalog:          catalog,
		TicketStore:      tickets,
		EscalationRepo:   escalations,
		Locker:           locker,
		Dispatcher:       dispatcher,
		Logger:           zap.NewNop(),
		Metrics:          metrics,
		Now:              func() time.Time { return now },
	})
	return &sweepFixture{
		sweeper:     sweeper,
		escalations: escalations,
		tickets:     tickets,
		metrics:     metrics,
		created:     &created,
	}
}

func standardCatalog() (*fakeDefinitionRepo, *fakeRuleRepo, *fakePolicyRepo) {
	definitions := &fakeDefinitionRepo{definitions: []domain.SlaDefinition{{
		ID:                         "def-1",
		TenantID:                   testTenant,
		Name:                       "Gold",
		Level:                      1,
		FirstResponseTargetMinutes: 30,
		ResolutionTargetMinutes:    60,
		IsActive:                   true,
	}}}
	rules := &fakeRuleRepo{rules: []domain.SlaRule{{
		ID:              "rule-1",
		TenantID:        testTenant,
		SlaDefinitionID: "def-1",
		FieldName:       "priority",
		FieldValue:      "high",
		Priority:        10,
		IsActive:        true,
	}}}
	return definitions, rules, &fakePolicyRepo{}
}

func openTicket(id string, created time.Time) domain.TicketSnapshot {
	return domain.TicketSnapshot{
		ID:        id,
		TenantID:  testTenant,
		Status:    domain.TicketStatusOpen,
		Fields:    map[string]string{"priority": "high"},
		CreatedAt: created,
	}
}

func TestSweepCreatesEscalationOnBreach(t *testing.T) {
	definitions, rules, policies := standardCatalog()
	tickets := &fakeTicketStore{
		tickets: []domain.TicketSnapshot{openTicket("ticket-1", sweepStart.Add(-90 * time.Minute))},
		history: map[string][]domain.StatusChange{},
	}
	f := newSweepFixture(t, definitions, rules, policies, tickets, nil, sweepStart)

	f.sweeper.RunCycle(context.Background())

	pending, err := f.escalations.ListPending(context.Background(), testTenant)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ticket-1", pending[0].TicketID)
	assert.Equal(t, 1, pending[0].Level)
	assert.Equal(t, "def-1", pending[0].SlaDefinitionID)
	assert.Equal(t, 1, *f.created)
	assert.Equal(t, int64(1), f.metrics.SweepCount(testTenant, observability.SweepTicketsEvaluated))
	assert.Equal(t, int64(1), f.metrics.SweepCount(testTenant, observability.SweepEscalationsCreated))
}

func TestSweepEscalatesOnResponseBreach(t *testing.T) {
	// A missed first-response target escalates even when the resolution
	// clock has plenty of headroom.
	definitions := &fakeDefinitionRepo{definitions: []domain.SlaDefinition{{
		ID:                         "def-1",
		TenantID:                   testTenant,
		Name:                       "Gold",
		Level:                      1,
		FirstResponseTargetMinutes: 60,
		ResolutionTargetMinutes:    240,
		IsActive:                   true,
	}}}
	rules := &fakeRuleRepo{rules: []domain.SlaRule{{
		ID:              "rule-1",
		TenantID:        testTenant,
		SlaDefinitionID: "def-1",
		FieldName:       "priority",
		FieldValue:      "high",
		Priority:        10,
		IsActive:        true,
	}}}
	tickets := &fakeTicketStore{
		tickets: []domain.TicketSnapshot{openTicket("ticket-1", sweepStart.Add(-61 * time.Minute))},
		history: map[string][]domain.StatusChange{},
	}
	f := newSweepFixture(t, definitions, rules, &fakePolicyRepo{}, tickets, nil, sweepStart)

	f.sweeper.RunCycle(context.Background())

	pending, err := f.escalations.ListPending(context.Background(), testTenant)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Level)
	assert.Equal(t, "ticket-1", pending[0].TicketID)

	// The next cycle finds the pending row and creates nothing new.
	f.sweeper.RunCycle(context.Background())
	pending, err = f.escalations.ListPending(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, 1, *f.created)
}

func TestSweepIgnoresRespondedTicket(t *testing.T) {
	// Once a response landed the response clock is stopped; a late response
	// alone never escalates afterwards, and the resolution clock is the only
	// remaining trigger.
	definitions := &fakeDefinitionRepo{definitions: []domain.SlaDefinition{{
		ID:                         "def-1",
		TenantID:                   testTenant,
		Name:                       "Gold",
		Level:                      1,
		FirstResponseTargetMinutes: 60,
		ResolutionTargetMinutes:    240,
		IsActive:                   true,
	}}}
	rules := &fakeRuleRepo{rules: []domain.SlaRule{{
		ID:              "rule-1",
		TenantID:        testTenant,
		SlaDefinitionID: "def-1",
		FieldName:       "priority",
		FieldValue:      "high",
		Priority:        10,
		IsActive:        true,
	}}}
	ticket := openTicket("ticket-1", sweepStart.Add(-90 * time.Minute))
	firstResponse := sweepStart.Add(-20 * time.Minute)
	ticket.FirstResponseAt = &firstResponse
	tickets := &fakeTicketStore{
		tickets: []domain.TicketSnapshot{ticket},
		history: map[string][]domain.StatusChange{},
	}
	f := newSweepFixture(t, definitions, rules, &fakePolicyRepo{}, tickets, nil, sweepStart)

	f.sweeper.RunCycle(context.Background())

	pending, err := f.escalations.ListPending(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSweepIsIdempotentAcrossCycles(t *testing.T) {
	definitions, rules, policies := standardCatalog()
	tickets := &fakeTicketStore{
		tickets: []domain.TicketSnapshot{openTicket("ticket-1", sweepStart.Add(-90 * time.Minute))},
		history: map[string][]domain.StatusChange{},
	}
	f := newSweepFixture(t, definitions, rules, policies, tickets, nil, sweepStart)

	f.sweeper.RunCycle(context.Background())
	f.sweeper.RunCycle(context.Background())

	pending, err := f.escalations.ListPending(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, 1, *f.created)
	assert.Equal(t, int64(2), f.metrics.SweepCount(testTenant, observability.SweepTicketsEvaluated))
}

func TestSweepCascadesLevelsOnLongBreach(t *testing.T) {
	definitions, rules, policies := standardCatalog()
	// 150 active minutes against a 60 minute target crosses levels 1 and 2
	// but not 3.
	tickets := &fakeTicketStore{
		tickets: []domain.TicketSnapshot{openTicket("ticket-1", sweepStart.Add(-150 * time.Minute))},
		history: map[string][]domain.StatusChange{},
	}
	f := newSweepFixture(t, definitions, rules, policies, tickets, nil, sweepStart)

	f.sweeper.RunCycle(context.Background())

	pending, err := f.escalations.ListPending(context.Background(), testTenant)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	levels := map[int]bool{}
	for _, esc := range pending {
		levels[esc.Level] = true
	}
	assert.True(t, levels[1])
	assert.True(t, levels[2])
}

func TestSweepHonorsPausedStatus(t *testing.T) {
	definitions, rules, _ := standardCatalog()
	policies := &fakePolicyRepo{policies: []domain.StatusTimeoutPolicy{{
		ID:              "pol-1",
		TenantID:        testTenant,
		SlaDefinitionID: "def-1",
		StatusValue:     "PENDING_USER",
		IsPaused:        true,
		IsActive:        true,
	}}}

	createdAt := sweepStart.Add(-90 * time.Minute)
	ticket := openTicket("ticket-1", createdAt)
	ticket.Status = domain.TicketStatusPendingUser
	tickets := &fakeTicketStore{
		tickets: []domain.TicketSnapshot{ticket},
		history: map[string][]domain.StatusChange{"ticket-1": {
			{Status: "OPEN", EnteredAt: createdAt},
			{Status: "PENDING_USER", EnteredAt: createdAt.Add(20 * time.Minute)},
		}},
	}
	f := newSweepFixture(t, definitions, rules, policies, tickets, nil, sweepStart)

	f.sweeper.RunCycle(context.Background())

	// Only 20 active minutes have elapsed, under both targets.
	pending, err := f.escalations.ListPending(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSweepRaisesStatusTimeout(t *testing.T) {
	definitions, rules, _ := standardCatalog()
	timeout := 20
	policies := &fakePolicyRepo{policies: []domain.StatusTimeoutPolicy{{
		ID:              "pol-1",
		TenantID:        testTenant,
		SlaDefinitionID: "def-1",
		StatusValue:     "IN_PROGRESS",
		TimeoutMinutes:  &timeout,
		IsActive:        true,
	}}}

	createdAt := sweepStart.Add(-40 * time.Minute)
	ticket := openTicket("ticket-1", createdAt)
	ticket.Status = domain.TicketStatusInProgress
	firstResponse := createdAt.Add(5 * time.Minute)
	ticket.FirstResponseAt = &firstResponse
	tickets := &fakeTicketStore{
		tickets: []domain.TicketSnapshot{ticket},
		history: map[string][]domain.StatusChange{"ticket-1": {
			{Status: "OPEN", EnteredAt: createdAt},
			{Status: "IN_PROGRESS", EnteredAt: createdAt.Add(10 * time.Minute)},
		}},
	}
	f := newSweepFixture(t, definitions, rules, policies, tickets, nil, sweepStart)

	f.sweeper.RunCycle(context.Background())

	// 40 active minutes is short of the 60 minute resolution target, but the
	// ticket has sat 30 minutes in IN_PROGRESS against a 20 minute timeout.
	pending, err := f.escalations.ListPending(context.Background(), testTenant)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Level)
}

func TestSweepRetriesAfterTransientStoreError(t *testing.T) {
	definitions, rules, policies := standardCatalog()
	tickets := &fakeTicketStore{
		tickets: []domain.TicketSnapshot{openTicket("ticket-1", sweepStart.Add(-90 * time.Minute))},
		history: map[string][]domain.StatusChange{},
	}
	f := newSweepFixture(t, definitions, rules, policies, tickets, nil, sweepStart)
	f.escalations.failNext = 1

	f.sweeper.RunCycle(context.Background())
	pending, err := f.escalations.ListPending(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, int64(1), f.metrics.SweepCount(testTenant, observability.SweepStoreErrors))
	assert.Equal(t, 0, *f.created)

	f.sweeper.RunCycle(context.Background())
	pending, err = f.escalations.ListPending(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, 1, *f.created)
}

func TestSweepSkipsTicketsWithoutMatchingRule(t *testing.T) {
	definitions, rules, policies := standardCatalog()
	ticket := openTicket("ticket-1", sweepStart.Add(-500*time.Minute))
	ticket.Fields = map[string]string{"priority": "low"}
	tickets := &fakeTicketStore{
		tickets: []domain.TicketSnapshot{ticket},
		history: map[string][]domain.StatusChange{},
	}
	f := newSweepFixture(t, definitions, rules, policies, tickets, nil, sweepStart)

	f.sweeper.RunCycle(context.Background())

	pending, err := f.escalations.ListPending(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, int64(1), f.metrics.SweepCount(testTenant, observability.SweepTicketsEvaluated))
}

func TestSweepSkipsTenantWhenLockHeld(t *testing.T) {
	definitions, rules, policies := standardCatalog()
	tickets := &fakeTicketStore{
		tickets: []domain.TicketSnapshot{openTicket("ticket-1", sweepStart.Add(-90 * time.Minute))},
		history: map[string][]domain.StatusChange{},
	}
	locker := &fakeLocker{held: true}
	f := newSweepFixture(t, definitions, rules, policies, tickets, locker, sweepStart)

	f.sweeper.RunCycle(context.Background())

	pending, err := f.escalations.ListPending(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 0, locker.released)
}

func TestSweepReleasesLockAfterPass(t *testing.T) {
	definitions, rules, policies := standardCatalog()
	tickets := &fakeTicketStore{
		tickets: []domain.TicketSnapshot{openTicket("ticket-1", sweepStart.Add(-90 * time.Minute))},
		history: map[string][]domain.StatusChange{},
	}
	locker := &fakeLocker{}
	f := newSweepFixture(t, definitions, rules, policies, tickets, locker, sweepStart)

	f.sweeper.RunCycle(context.Background())

	pending, err := f.escalations.ListPending(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)
}

func TestAcknowledgedEscalationBlocksRecreation(t *testing.T) {
	definitions, rules, policies := standardCatalog()
	tickets := &fakeTicketStore{
		tickets: []domain.TicketSnapshot{openTicket("ticket-1", sweepStart.Add(-90 * time.Minute))},
		history: map[string][]domain.StatusChange{},
	}
	f := newSweepFixture(t, definitions, rules, policies, tickets, nil, sweepStart)

	f.sweeper.RunCycle(context.Background())
	pending, err := f.escalations.ListPending(context.Background(), testTenant)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, changed, err := f.escalations.Acknowledge(context.Background(), testTenant, pending[0].ID, "user-1")
	require.NoError(t, err)
	require.True(t, changed)

	f.sweeper.RunCycle(context.Background())
	all, err := f.escalations.ListByTicket(context.Background(), testTenant, "ticket-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, 1, *f.created)
}
