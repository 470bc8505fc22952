package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/shopdesk/jobtickets/internal/api/dto"
	"github.com/shopdesk/jobtickets/internal/auth"
	"github.com/shopdesk/jobtickets/internal/service"
	"github.com/shopdesk/jobtickets/internal/tenancy"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

// AuthHandler exposes sign-in endpoints.
type AuthHandler struct {
	authService  *service.AuthService
	secureCookie bool
}

// NewAuthHandler constructs handler. secureCookie marks the session cookie
// HTTPS-only.
func NewAuthHandler(authService *service.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{authService: authService, secureCookie: secureCookie}
}

// LoginWithCode handles POST /auth/login.
func (h *AuthHandler) LoginWithCode(c *fiber.Ctx) error {
	var req dto.CodeLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Code) == "" {
		return apperrors.NewFieldErrors(map[string]string{"code": "enter your ID code"})
	}
	result, err := h.authService.LoginWithCode(c.UserContext(), tenancy.FromContext(c), req.Code)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"data": loginResponse(result, "session")})
}

// RequestMagicLink handles POST /auth/magic/request. The reply is the same
// whether or not the address belongs to anyone.
func (h *AuthHandler) RequestMagicLink(c *fiber.Ctx) error {
	var req dto.MagicLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" {
		return apperrors.NewFieldErrors(map[string]string{"email": "email is required"})
	}
	if err := h.authService.RequestMagicLink(c.UserContext(), tenancy.FromContext(c), req.Email); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"status": "sent"}})
}

// VerifyMagicLink handles GET and POST /auth/magic/verify.
func (h *AuthHandler) VerifyMagicLink(c *fiber.Ctx) error {
	token := c.Query("token")
	if c.Method() == fiber.MethodPost {
		var req dto.MagicLinkVerifyRequest
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		token = req.Token
	}
	if strings.TrimSpace(token) == "" {
		return apperrors.NewFieldErrors(map[string]string{"token": "token is required"})
	}
	result, err := h.authService.VerifyMagicLink(c.UserContext(), tenancy.FromContext(c), token)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": loginResponse(result, "bearer")})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"identity":   principal.Identity,
		"scheme":     strings.ToLower(string(principal.Scheme)),
		"expires_at": principal.ExpiresAt,
	}})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	if err := h.authService.Logout(c.UserContext(), principal); err != nil {
		return err
	}
	c.ClearCookie(auth.SessionCookie)
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "signed_out"}})
}

// InviteStaff handles POST /team/:id/invite.
func (h *AuthHandler) InviteStaff(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	if err := h.authService.InviteStaff(c.UserContext(), identity, c.Params("id")); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"status": "invited"}})
}

func loginResponse(result *service.LoginResult, scheme string) dto.LoginResponse {
	return dto.LoginResponse{
		Token:     result.Token,
		Scheme:    scheme,
		ExpiresAt: result.ExpiresAt.UTC().Truncate(time.Second),
		Identity:  result.Identity,
	}
}
