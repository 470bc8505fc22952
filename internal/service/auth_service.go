package service

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/shopdesk/jobtickets/internal/auth"
	"github.com/shopdesk/jobtickets/internal/clock"
	"github.com/shopdesk/jobtickets/internal/config"
	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/ratelimit"
	"github.com/shopdesk/jobtickets/internal/repository"
	"github.com/shopdesk/jobtickets/internal/session"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

// LinkSender delivers a sign-in link to a staff member.
type LinkSender interface {
	SendMagicLink(ctx context.Context, staff *domain.Staff, link string) error
}

// AuthService resolves who is calling: code sessions, magic links, and the
// credentials they issue.
type AuthService struct {
	staff       repository.StaffRepository
	links       repository.MagicLinkRepository
	sessions    session.Store
	revocations session.Revocations
	tokens      *auth.TokenManager
	sender      LinkSender
	invites     ratelimit.Limiter
	clock       clock.Clock
	logger      *zap.Logger
	sessionTTL  time.Duration
	linkTTL     time.Duration
	bcryptCost  int
	baseURL     string
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	StaffRepo     repository.StaffRepository
	MagicLinkRepo repository.MagicLinkRepository
	Sessions      session.Store
	Revocations   session.Revocations
	Sender        LinkSender
	InviteLimiter ratelimit.Limiter
	Clock         clock.Clock
	Logger        *zap.Logger
}

// LoginResult is returned by successful sign-ins.
type LoginResult struct {
	Token     string
	Identity  domain.Identity
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		staff:       deps.StaffRepo,
		links:       deps.MagicLinkRepo,
		sessions:    deps.Sessions,
		revocations: deps.Revocations,
		tokens:      auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes, clk),
		sender:      deps.Sender,
		invites:     deps.InviteLimiter,
		clock:       clk,
		logger:      logger,
		sessionTTL:  cfg.Auth.SessionTTL(),
		linkTTL:     cfg.Auth.MagicLinkTTL(),
		bcryptCost:  cfg.Auth.BcryptCost,
		baseURL:     strings.TrimRight(cfg.App.BaseURL, "/"),
	}
}

func errInvalidCode() error {
	return apperrors.NewAccessDenied(apperrors.CodeInvalidCode, "invalid code", http.StatusUnauthorized)
}

func errDeactivated() error {
	return apperrors.NewAccessDenied(apperrors.CodeAccountDeactivated, "account deactivated", http.StatusForbidden)
}

func errWrongTenant() error {
	return apperrors.NewAccessDenied(apperrors.CodeWrongTenant, "wrong business", http.StatusForbidden)
}

func errNotAuthorized() error {
	return apperrors.NewAccessDenied(apperrors.CodeNotAuthorized, "not authorized", http.StatusForbidden)
}

func errSessionExpired() error {
	return apperrors.NewAccessDenied(apperrors.CodeSessionExpired, "session expired, sign in again", http.StatusUnauthorized)
}

func errInvalidLink() error {
	return apperrors.NewUnauthorized("invalid or expired link")
}

// LoginWithCode signs a staff member in with their ID code.
func (s *AuthService) LoginWithCode(ctx context.Context, tenant *domain.Tenant, code string) (*LoginResult, error) {
	code = domain.NormalizeCode(code)
	if code == "" {
		return nil, apperrors.NewFieldErrors(map[string]string{"code": "enter your ID code"})
	}

	staff, err := s.staff.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errInvalidCode()
		}
		return nil, storeErr(err, "could not sign in, try again")
	}
	if staff.TenantID != tenant.ID {
		s.logger.Warn("code login for another business",
			zap.String("staff_id", staff.ID),
			zap.String("tenant", tenant.Slug))
		// a retired code elsewhere says nothing about this business
		if !staff.Active {
			return nil, errInvalidCode()
		}
		return nil, errWrongTenant()
	}
	if !staff.Active {
		return nil, errDeactivated()
	}

	token, err := session.NewToken()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	record := session.NewRecord(identityFor(staff), s.clock.Now(), s.sessionTTL)
	if err := s.sessions.Save(ctx, token, record); err != nil {
		return nil, storeErr(err, "could not sign in, try again")
	}

	s.logger.Info("staff signed in", zap.String("staff_id", staff.ID), zap.String("tenant", tenant.Slug))
	return &LoginResult{Token: token, Identity: record.Identity, ExpiresAt: record.ExpiresAt}, nil
}

// ResolveSession turns a session token into the caller's current identity.
// The staff row is re-read every time so deactivation and role changes
// apply immediately.
func (s *AuthService) ResolveSession(ctx context.Context, token, tenantID string) (*auth.Principal, error) {
	record, err := s.sessions.Load(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, errSessionExpired()
		}
		return nil, storeErr(err, "could not verify session, try again")
	}
	if record.Expired(s.clock.Now()) {
		_ = s.sessions.Delete(ctx, token)
		return nil, errSessionExpired()
	}
	if record.Identity.TenantID != tenantID {
		return nil, errWrongTenant()
	}

	staff, err := s.staff.LookupActive(ctx, record.Identity.StaffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_ = s.sessions.Delete(ctx, token)
			return nil, errDeactivated()
		}
		return nil, storeErr(err, "could not verify session, try again")
	}
	if staff.TenantID != tenantID {
		return nil, errWrongTenant()
	}

	return &auth.Principal{
		Identity:  identityFor(staff),
		Scheme:    domain.AuthSchemeSession,
		Token:     token,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// RequestMagicLink emails a one-time sign-in link to an active staff member
// of the tenant. Unknown addresses get the same silent success.
func (s *AuthService) RequestMagicLink(ctx context.Context, tenant *domain.Tenant, email string) error {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return apperrors.NewFieldErrors(map[string]string{"email": "enter a valid email address"})
	}

	staff, err := s.staff.GetActiveByEmail(ctx, tenant.ID, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Debug("magic link requested for unknown email", zap.String("tenant", tenant.Slug))
			return nil
		}
		return storeErr(err, "could not send sign-in link, try again")
	}
	return s.issueMagicLink(ctx, staff)
}

func (s *AuthService) issueMagicLink(ctx context.Context, staff *domain.Staff) error {
	secret, err := session.NewToken()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	hash, err := auth.HashSecret(secret, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	link := &repository.MagicLink{
		TenantID:   staff.TenantID,
		StaffID:    staff.ID,
		SecretHash: hash,
		ExpiresAt:  s.clock.Now().Add(s.linkTTL),
	}
	if err := s.links.Create(ctx, link); err != nil {
		return storeErr(err, "could not send sign-in link, try again")
	}

	target := s.baseURL + "/auth/magic/verify?token=" + url.QueryEscape(link.ID+"."+secret)
	if s.sender == nil {
		return nil
	}
	if err := s.sender.SendMagicLink(ctx, staff, target); err != nil {
		return apperrors.NewUnavailable("could not send sign-in link, try again", err)
	}
	return nil
}

// VerifyMagicLink consumes a link and issues a bearer credential.
func (s *AuthService) VerifyMagicLink(ctx context.Context, tenant *domain.Tenant, token string) (*LoginResult, error) {
	id, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || secret == "" {
		return nil, errInvalidLink()
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, errInvalidLink()
	}

	link, err := s.links.GetByID(ctx, tenant.ID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errInvalidLink()
		}
		return nil, storeErr(err, "could not verify link, try again")
	}
	now := s.clock.Now()
	if link.UsedAt != nil || !now.Before(link.ExpiresAt) {
		return nil, errInvalidLink()
	}
	if err := auth.CompareSecret(link.SecretHash, secret); err != nil {
		return nil, errInvalidLink()
	}
	if err := s.links.MarkUsed(ctx, tenant.ID, link.ID, now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errInvalidLink()
		}
		return nil, storeErr(err, "could not verify link, try again")
	}

	staff, err := s.staff.LookupActive(ctx, link.StaffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errDeactivated()
		}
		return nil, storeErr(err, "could not verify link, try again")
	}
	if staff.TenantID != tenant.ID {
		return nil, errWrongTenant()
	}

	signed, claims, err := s.tokens.GenerateToken(staff)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Token: signed, Identity: identityFor(staff), ExpiresAt: claims.ExpiresAtTime()}, nil
}

// ResolveCredential validates a bearer credential for the tenant. A
// credential whose staff row is gone or belongs elsewhere is revoked.
func (s *AuthService) ResolveCredential(ctx context.Context, token, tenantID string) (*auth.Principal, error) {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, errSessionExpired()
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, storeErr(err, "could not verify credential, try again")
	}
	if revoked {
		return nil, errNotAuthorized()
	}

	staff, err := s.staff.LookupActive(ctx, claims.StaffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.revoke(ctx, claims)
			return nil, errNotAuthorized()
		}
		return nil, storeErr(err, "could not verify credential, try again")
	}
	if staff.TenantID != tenantID || claims.TenantID != tenantID {
		s.logger.Warn("credential presented to another business",
			zap.String("staff_id", staff.ID),
			zap.String("tenant_id", tenantID))
		s.revoke(ctx, claims)
		return nil, errWrongTenant()
	}

	return &auth.Principal{
		Identity:  identityFor(staff),
		Scheme:    domain.AuthSchemeBearer,
		Token:     token,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAtTime(),
	}, nil
}

func (s *AuthService) revoke(ctx context.Context, claims *auth.Claims) {
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAtTime()); err != nil {
		s.logger.Warn("revoke credential failed", zap.String("token_id", claims.ID), zap.Error(err))
	}
}

// Logout ends the caller's session or revokes their credential.
func (s *AuthService) Logout(ctx context.Context, principal *auth.Principal) error {
	if principal == nil {
		return nil
	}
	switch principal.Scheme {
	case domain.AuthSchemeSession:
		if err := s.sessions.Delete(ctx, principal.Token); err != nil {
			return storeErr(err, "could not sign out, try again")
		}
	case domain.AuthSchemeBearer:
		if err := s.revocations.Revoke(ctx, principal.TokenID, principal.ExpiresAt); err != nil {
			return storeErr(err, "could not sign out, try again")
		}
	}
	return nil
}

// InviteStaff sends a sign-in link to a staff member of the manager's
// business.
func (s *AuthService) InviteStaff(ctx context.Context, manager domain.Identity, staffID string) error {
	if err := authorize(manager, domain.StaffRoleManager); err != nil {
		return err
	}
	if err := validID(staffID, "staff_id"); err != nil {
		return err
	}

	if s.invites != nil {
		allowed, err := s.invites.Allow(ctx, manager.StaffID)
		if err != nil {
			return storeErr(err, "could not send invitation, try again")
		}
		if !allowed {
			return apperrors.NewRateLimited("too many invitations, wait a minute and try again")
		}
	}

	staff, err := s.staff.GetByID(ctx, manager.TenantID, staffID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return storeErr(err, "could not send invitation, try again")
		}
		if other, otherErr := s.staff.LookupActive(ctx, staffID); otherErr == nil && other.TenantID != manager.TenantID {
			s.logger.Warn("cross-business invitation refused",
				zap.String("manager_id", manager.StaffID),
				zap.String("tenant_id", manager.TenantID),
				zap.String("target_tenant_id", other.TenantID))
			return apperrors.NewForbidden("cannot invite staff from another business")
		}
		return apperrors.NewNotFound("staff member", nil)
	}
	if !staff.Active {
		return apperrors.NewValidationError("staff member is deactivated", nil)
	}
	if staff.Email == nil {
		return apperrors.NewFieldErrors(map[string]string{"email": "staff member has no email address"})
	}
	if _, err := mail.ParseAddress(*staff.Email); err != nil {
		return apperrors.NewFieldErrors(map[string]string{"email": "staff member has an invalid email address"})
	}

	if err := s.issueMagicLink(ctx, staff); err != nil {
		return err
	}
	s.logger.Info("staff invited", zap.String("manager_id", manager.StaffID), zap.String("staff_id", staff.ID))
	return nil
}
