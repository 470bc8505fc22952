package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/shopdesk/jobtickets/internal/api/dto"
	"github.com/shopdesk/jobtickets/internal/auth"
	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/service"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	intake   *service.IntakeService
	tickets  *service.TicketService
	catalogs *service.CatalogService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(intake *service.IntakeService, tickets *service.TicketService, catalogs *service.CatalogService) *TicketsHandler {
	return &TicketsHandler{intake: intake, tickets: tickets, catalogs: catalogs}
}

// ListServiceTypes GET /service-types.
func (h *TicketsHandler) ListServiceTypes(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	types, err := h.catalogs.ListTypes(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": types})
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.intake.CreateTicket(c.UserContext(), identity, service.CreateTicketInput{
		ServiceType:   req.ServiceType,
		Priority:      req.Priority,
		Vehicle:       req.Vehicle,
		Notes:         req.Notes,
		ServiceData:   domain.ServiceData(req.ServiceData),
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		ScheduledDate: req.ScheduledDate,
		ScheduledTime: req.ScheduledTime,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.Ticket(ticket)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.Ticket(ticket)})
}

// CompleteTicket POST /tickets/:id/complete. The body must confirm the
// action with {"confirm": true}.
func (h *TicketsHandler) CompleteTicket(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	if err := requireConfirm(c); err != nil {
		return err
	}
	ticket, err := h.tickets.CompleteTicket(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.Ticket(ticket)})
}

// ToggleExclusion POST /tickets/:id/exclusion.
func (h *TicketsHandler) ToggleExclusion(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	excluded, err := h.tickets.ToggleExclusion(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id"), "excluded_from_metrics": excluded}})
}

// ExcludeAllCompleted POST /tickets/exclude-completed.
func (h *TicketsHandler) ExcludeAllCompleted(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.ConfirmRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	affected, err := h.tickets.ExcludeAllCompleted(c.UserContext(), identity, req.Confirm)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"affected": affected}})
}

// EditCompleted PATCH /tickets/:id.
func (h *TicketsHandler) EditCompleted(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.EditCompletedRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.EditCompleted(c.UserContext(), identity, c.Params("id"), service.EditCompletedInput{
		Vehicle:      req.Vehicle,
		CustomerName: req.CustomerName,
		Notes:        req.Notes,
		CompletedAt:  req.CompletedAt,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.Ticket(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	if err := h.tickets.DeleteTicket(c.UserContext(), identity, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	entries, err := h.tickets.ListHistory(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.History(entries)})
}

func requireConfirm(c *fiber.Ctx) error {
	var req dto.ConfirmRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if !req.Confirm {
		return apperrors.NewFieldErrors(map[string]string{"confirm": "confirmation required"})
	}
	return nil
}
