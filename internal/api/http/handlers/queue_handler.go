package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/shopdesk/jobtickets/internal/api/dto"
	"github.com/shopdesk/jobtickets/internal/auth"
	"github.com/shopdesk/jobtickets/internal/service"
)

// QueueHandler serves the work queue.
type QueueHandler struct {
	queue *service.QueueService
}

// NewQueueHandler constructs handler.
func NewQueueHandler(queue *service.QueueService) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// Snapshot GET /queue. Live updates are pushed over the realtime endpoint.
func (h *QueueHandler) Snapshot(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	snap, err := h.queue.Snapshot(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.Queue(snap)})
}
