package auth

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/tenancy"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"

	// SessionCookie carries the code-login session token for browser clients.
	SessionCookie = "shop_session"
)

// Principal represents the authenticated caller.
type Principal struct {
	Identity  domain.Identity
	Scheme    domain.AuthScheme
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// Resolver turns presented credentials into an identity for a tenant.
type Resolver interface {
	ResolveSession(ctx context.Context, token, tenantID string) (*Principal, error)
	ResolveCredential(ctx context.Context, token, tenantID string) (*Principal, error)
}

// AuthMiddleware validates presented credentials and loads principals.
type AuthMiddleware struct {
	resolver Resolver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(resolver Resolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Handle enforces authentication for protected routes. It accepts
// "Authorization: Bearer <jwt>", "Authorization: Session <token>", or the
// session cookie.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	tenant := tenancy.FromContext(c)
	if tenant == nil {
		return apperrors.NewNotFound("business", nil)
	}

	scheme, token, err := credentialsFromRequest(c)
	if err != nil {
		return err
	}

	var principal *Principal
	switch scheme {
	case domain.AuthSchemeBearer:
		principal, err = m.resolver.ResolveCredential(c.UserContext(), token, tenant.ID)
	default:
		principal, err = m.resolver.ResolveSession(c.UserContext(), token, tenant.ID)
	}
	if err != nil {
		if scheme == domain.AuthSchemeSession && isSignOut(err) {
			c.ClearCookie(SessionCookie)
		}
		return err
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

func credentialsFromRequest(c *fiber.Ctx) (domain.AuthScheme, string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		if cookie := c.Cookies(SessionCookie); cookie != "" {
			return domain.AuthSchemeSession, cookie, nil
		}
		return "", "", apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
		return "", "", apperrors.NewUnauthorized("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	switch {
	case strings.EqualFold(parts[0], "Bearer"):
		return domain.AuthSchemeBearer, token, nil
	case strings.EqualFold(parts[0], "Session"):
		return domain.AuthSchemeSession, token, nil
	}
	return "", "", apperrors.NewUnauthorized("invalid authorization header")
}

func isSignOut(err error) bool {
	return apperrors.HasCode(err, apperrors.CodeSessionExpired) ||
		apperrors.HasCode(err, apperrors.CodeAccountDeactivated) ||
		apperrors.HasCode(err, apperrors.CodeWrongTenant) ||
		apperrors.HasCode(err, apperrors.CodeNotAuthorized)
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// IdentityFromContext retrieves the authenticated identity or fails with 401.
func IdentityFromContext(c *fiber.Ctx) (domain.Identity, error) {
	principal, ok := PrincipalFromContext(c)
	if !ok || principal == nil {
		return domain.Identity{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Identity, nil
}
