package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/events"
)

// AlertDispatcher is the external notification collaborator. Delivery
// failure never invalidates the escalation record that triggered it.
type AlertDispatcher interface {
	SendEscalationAlert(ctx context.Context, tenantID string, payload events.EscalationCreatedPayload, ticketID string) error
}

// NotificationService forwards escalation events to the alert dispatcher.
// Dispatch runs fire-and-log under a bounded timeout so a slow or failing
// notification channel cannot stall the sweep.
type NotificationService struct {
	dispatcher events.Dispatcher
	alerts     AlertDispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, alerts AlertDispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		alerts:     alerts,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventEscalationCreated, n.handleEscalationCreated)
	n.dispatcher.Subscribe(events.EventEscalationAcknowledged, n.handleEscalationAcknowledged)
}

func (n *NotificationService) handleEscalationCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.EscalationCreatedPayload)
	if !ok {
		n.logger.Warn("unexpected escalation payload", zap.String("event_id", event.ID))
		return nil
	}
	n.logger.Info("EscalationCreated",
		zap.String("tenant_id", event.TenantID),
		zap.String("ticket_id", event.TicketID),
		zap.Int("level", payload.Level))

	if n.alerts == nil {
		return nil
	}
	dispatchCtx, cancel := context.WithTimeout(ctx, n.cfg.DispatchTimeout())
	defer cancel()
	if err := n.alerts.SendEscalationAlert(dispatchCtx, event.TenantID, payload, event.TicketID); err != nil {
		// The escalation row already exists; delivery is retried (if at
		// all) by the notification collaborator, not by us.
		n.logger.Warn("escalation alert dispatch failed",
			zap.String("tenant_id", event.TenantID),
			zap.String("escalation_id", payload.EscalationID),
			zap.Error(err))
	}
	return nil
}

func (n *NotificationService) handleEscalationAcknowledged(ctx context.Context, event events.Event) error {
	n.logger.Info("EscalationAcknowledged",
		zap.String("tenant_id", event.TenantID),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	return nil
}

// LoggingAlertDispatcher is the default AlertDispatcher. It stands in for
// the platform's notification transport, logging what the real channel
// would carry.
type LoggingAlertDispatcher struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
}

// NewLoggingAlertDispatcher creates the stub dispatcher.
func NewLoggingAlertDispatcher(logger *zap.Logger, cfg config.NotificationConfig) *LoggingAlertDispatcher {
	return &LoggingAlertDispatcher{logger: logger, cfg: cfg}
}

// SendEscalationAlert implements AlertDispatcher.
func (d *LoggingAlertDispatcher) SendEscalationAlert(ctx context.Context, tenantID string, payload events.EscalationCreatedPayload, ticketID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(d.cfg.EmailFrom) != "" {
		d.logger.Debug("sendEscalationEmailStub",
			zap.String("from", d.cfg.EmailFrom),
			zap.String("tenant_id", tenantID),
			zap.String("ticket_id", ticketID),
			zap.Int("level", payload.Level))
	}
	if strings.TrimSpace(d.cfg.WebhookURL) != "" {
		d.logger.Debug("sendEscalationWebhookStub",
			zap.String("url", d.cfg.WebhookURL),
			zap.String("tenant_id", tenantID),
			zap.String("escalation_id", payload.EscalationID))
	}
	return nil
}
