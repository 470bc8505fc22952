package handlers

import (
	"bytes"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/shopdesk/jobtickets/internal/api/dto"
	"github.com/shopdesk/jobtickets/internal/auth"
	"github.com/shopdesk/jobtickets/internal/service"
)

// ReportsHandler serves manager reports.
type ReportsHandler struct {
	reports *service.ReportService
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reports *service.ReportService) *ReportsHandler {
	return &ReportsHandler{reports: reports}
}

func windowQuery(c *fiber.Ctx) service.WindowInput {
	return service.WindowInput{Mode: c.Query("window"), From: c.Query("from"), To: c.Query("to")}
}

// KPIs GET /reports/kpis?window=today|week|custom&from=&to=.
func (h *ReportsHandler) KPIs(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	report, err := h.reports.KPIs(c.UserContext(), identity, windowQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// ExportCSV GET /reports/export.csv.
func (h *ReportsHandler) ExportCSV(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	input := windowQuery(c)
	var buf bytes.Buffer
	if err := h.reports.ExportCSV(c.UserContext(), identity, input, &buf); err != nil {
		return err
	}
	mode := input.Mode
	if mode == "" {
		mode = service.WindowToday
	}
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="tickets-%s.csv"`, mode))
	return c.Send(buf.Bytes())
}

// ListCompleted GET /tickets/completed.
func (h *ReportsHandler) ListCompleted(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	tickets, err := h.reports.ListCompleted(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.Tickets(tickets)})
}
