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

// TeamHandler exposes roster management.
type TeamHandler struct {
	roster *service.RosterService
}

// NewTeamHandler constructs handler.
func NewTeamHandler(roster *service.RosterService) *TeamHandler {
	return &TeamHandler{roster: roster}
}

// List GET /team.
func (h *TeamHandler) List(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	members, err := h.roster.ListMembers(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.Members(members)})
}

// Create POST /team.
func (h *TeamHandler) Create(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	staff, err := h.roster.CreateMember(c.UserContext(), identity, service.CreateMemberInput{
		Name:  req.Name,
		Code:  req.Code,
		Role:  req.Role,
		Email: req.Email,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.Member(staff)})
}

// SuggestCode GET /team/suggest-code?role=TECHNICIAN.
func (h *TeamHandler) SuggestCode(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	code, err := h.roster.SuggestCode(c.UserContext(), identity, domain.StaffRole(c.Query("role")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"code": code}})
}

// UpdateCode PATCH /team/:id/code.
func (h *TeamHandler) UpdateCode(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.UpdateCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.roster.UpdateCode(c.UserContext(), identity, c.Params("id"), req.Code); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id"), "code": domain.NormalizeCode(req.Code)}})
}

// Rename PATCH /team/:id/name.
func (h *TeamHandler) Rename(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.RenameRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.roster.Rename(c.UserContext(), identity, c.Params("id"), req.Name); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id"), "name": req.Name}})
}

// Deactivate POST /team/:id/deactivate.
func (h *TeamHandler) Deactivate(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	if err := h.roster.Deactivate(c.UserContext(), identity, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id"), "active": false}})
}

// Activate POST /team/:id/activate.
func (h *TeamHandler) Activate(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	if err := h.roster.Activate(c.UserContext(), identity, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id"), "active": true}})
}
