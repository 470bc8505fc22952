package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/shopdesk/jobtickets/internal/service"
	"github.com/shopdesk/jobtickets/internal/tenancy"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

// TenantHandler serves public branding.
type TenantHandler struct{}

// NewTenantHandler constructs handler.
func NewTenantHandler() *TenantHandler {
	return &TenantHandler{}
}

// Branding GET /tenant.
func (h *TenantHandler) Branding(c *fiber.Ctx) error {
	tenant := tenancy.FromContext(c)
	if tenant == nil {
		return apperrors.NewNotFound("business", nil)
	}
	return c.JSON(fiber.Map{"data": service.BrandingFor(tenant)})
}

// Manifest GET /manifest.json.
func (h *TenantHandler) Manifest(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	if err := c.JSON(service.ManifestFor(tenancy.FromContext(c))); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/manifest+json")
	return nil
}
