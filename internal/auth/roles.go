package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/shopdesk/jobtickets/internal/domain"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

// RequireRole ensures the principal has one of the allowed roles. With no
// roles it only requires authentication.
func RequireRole(allowed ...domain.StaffRole) fiber.Handler {
	allowedSet := make(map[domain.StaffRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Identity.Role]; !exists {
			return apperrors.NewForbidden("your role cannot perform this action")
		}
		return c.Next()
	}
}

// RequireManager is RequireRole(MANAGER).
func RequireManager() fiber.Handler {
	return RequireRole(domain.StaffRoleManager)
}
