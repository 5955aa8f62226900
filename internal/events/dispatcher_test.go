package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func testEvent(eventType EventType) Event {
	return Event{
		ID:        "evt-1",
		Type:      eventType,
		TenantID:  "tenant-1",
		TicketID:  "ticket-1",
		Timestamp: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublishDeliversToAllHandlers(t *testing.T) {
	dispatcher := NewInMemoryDispatcher(zap.NewNop())

	var first, second int
	dispatcher.Subscribe(EventEscalationCreated, func(ctx context.Context, e Event) error {
		first++
		return nil
	})
	dispatcher.Subscribe(EventEscalationCreated, func(ctx context.Context, e Event) error {
		second++
		return nil
	})

	err := dispatcher.Publish(context.Background(), testEvent(EventEscalationCreated))

	require.NoError(t, err)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestPublishLogsFailedHandlerAndContinues(t *testing.T) {
	core, observed := observer.New(zap.WarnLevel)
	dispatcher := NewInMemoryDispatcher(zap.New(core))

	var reached bool
	dispatcher.Subscribe(EventMetricFinalized, func(ctx context.Context, e Event) error {
		return errors.New("listener unavailable")
	})
	dispatcher.Subscribe(EventMetricFinalized, func(ctx context.Context, e Event) error {
		reached = true
		return nil
	})

	err := dispatcher.Publish(context.Background(), testEvent(EventMetricFinalized))

	require.NoError(t, err)
	assert.True(t, reached)

	entries := observed.FilterMessage("event handler failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, string(EventMetricFinalized), fields["event_type"])
	assert.Equal(t, "tenant-1", fields["tenant_id"])
}

func TestPublishIgnoresUnsubscribedType(t *testing.T) {
	dispatcher := NewInMemoryDispatcher(nil)

	var called bool
	dispatcher.Subscribe(EventEscalationAcknowledged, func(ctx context.Context, e Event) error {
		called = true
		return nil
	})

	err := dispatcher.Publish(context.Background(), testEvent(EventMetricSuperseded))

	require.NoError(t, err)
	assert.False(t, called)
}
