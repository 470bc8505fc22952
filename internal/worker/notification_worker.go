package worker

import (
	"github.com/shopdesk/jobtickets/internal/events"
	"github.com/shopdesk/jobtickets/internal/service"
)

// StartNotificationWorker registers notification handlers and forwards
// ticket events to the change feed that drives live queues.
func StartNotificationWorker(notificationService *service.NotificationService, dispatcher events.Dispatcher, feed events.ChangeFeed) {
	if dispatcher != nil && feed != nil {
		events.ForwardToFeed(dispatcher, feed)
	}
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
