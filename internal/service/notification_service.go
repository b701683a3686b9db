package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-portal/internal/config"
	"github.com/spec-kit/clinic-portal/internal/events"
)

// NotificationService turns auth events into outbound mail and webhooks.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to auth events and returns the event types
// it listens on.
func (n *NotificationService) RegisterHandlers() []events.EventType {
	if n.dispatcher == nil {
		return nil
	}
	subscriptions := []struct {
		eventType events.EventType
		handler   events.EventHandler
	}{
		{events.EventUserRegistered, n.handleUserRegistered},
		{events.EventPasswordResetRequested, n.handlePasswordResetRequested},
		{events.EventPasswordResetCompleted, n.handlePasswordResetCompleted},
		{events.EventUserLoggedIn, n.handleUserLoggedIn},
		{events.EventTokenBlacklisted, n.handleTokenBlacklisted},
	}
	subscribed := make([]events.EventType, 0, len(subscriptions))
	for _, sub := range subscriptions {
		n.dispatcher.Subscribe(sub.eventType, sub.handler)
		subscribed = append(subscribed, sub.eventType)
	}
	return subscribed
}

func (n *NotificationService) handleUserRegistered(ctx context.Context, event events.Event) error {
	n.logger.Info("UserRegistered", zap.String("user_id", event.UserID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event, "Welcome to the clinic portal")
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handlePasswordResetRequested(ctx context.Context, event events.Event) error {
	n.logger.Info("PasswordResetRequested", zap.String("user_id", event.UserID))
	n.sendEmailNotificationStub(ctx, event, "Your password reset code")
	return nil
}

func (n *NotificationService) handlePasswordResetCompleted(ctx context.Context, event events.Event) error {
	n.logger.Info("PasswordResetCompleted", zap.String("user_id", event.UserID))
	n.sendEmailNotificationStub(ctx, event, "Your password was changed")
	return nil
}

func (n *NotificationService) handleUserLoggedIn(ctx context.Context, event events.Event) error {
	n.logger.Debug("UserLoggedIn", zap.String("user_id", event.UserID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

// Revocations are audit-logged only; nobody is mailed.
func (n *NotificationService) handleTokenBlacklisted(_ context.Context, event events.Event) error {
	n.logger.Info("TokenBlacklisted", zap.String("user_id", event.UserID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event, subject string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || event.Email == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", event.Email),
		zap.String("subject", subject),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("user_id", event.UserID),
		zap.String("event_type", string(event.Type)))
}
