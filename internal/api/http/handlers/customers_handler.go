package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/shopdesk/jobtickets/internal/api/dto"
	"github.com/shopdesk/jobtickets/internal/auth"
	"github.com/shopdesk/jobtickets/internal/service"
)

// CustomersHandler serves customer lookup at intake.
type CustomersHandler struct {
	customers *service.CustomerService
}

// NewCustomersHandler constructs handler.
func NewCustomersHandler(customers *service.CustomerService) *CustomersHandler {
	return &CustomersHandler{customers: customers}
}

// Search GET /customers/search?q=.
func (h *CustomersHandler) Search(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	results, err := h.customers.Search(c.UserContext(), identity, c.Query("q"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.Customers(results)})
}
