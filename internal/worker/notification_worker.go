package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-portal/internal/service"
)

// StartNotificationWorker subscribes the notification service to auth
// events. Delivery is synchronous with publication.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) {
	if notificationService == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, eventType := range notificationService.RegisterHandlers() {
		logger.Debug("notification handler registered", zap.String("event_type", string(eventType)))
	}
}
