// Package tenancy resolves which business a request is for.
package tenancy

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/shopdesk/jobtickets/internal/domain"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

const (
	tenantKey = "tenant"

	// HeaderTenantSlug overrides the slug on local hosts.
	HeaderTenantSlug = "X-Tenant-Slug"
)

// Lookup finds an active tenant by slug.
type Lookup interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
}

// SlugFromRequest derives the tenant slug. Production hosts carry it as the
// first label of a name with three or more labels; local hosts take it from
// the tenant query parameter or header. Anything that is not a valid slug
// falls back to defaultSlug.
func SlugFromRequest(host, querySlug, headerSlug, defaultSlug string) string {
	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}
	hostname = strings.ToLower(hostname)

	slug := defaultSlug
	if isLocal(hostname) {
		switch {
		case querySlug != "":
			slug = querySlug
		case headerSlug != "":
			slug = headerSlug
		}
	} else if parts := strings.Split(hostname, "."); len(parts) >= 3 {
		slug = parts[0]
	}

	if !domain.ValidTenantSlug(slug) {
		return defaultSlug
	}
	return slug
}

func isLocal(hostname string) bool {
	return hostname == "" || strings.Contains(hostname, "localhost") || hostname == "127.0.0.1" || hostname == "::1"
}

// Middleware resolves the tenant for every request and stores it in locals.
// Unknown tenants end the request with 404.
func Middleware(lookup Lookup, defaultSlug string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		slug := SlugFromRequest(c.Hostname(), c.Query("tenant"), c.Get(HeaderTenantSlug), defaultSlug)
		tenant, err := lookup.GetBySlug(c.UserContext(), slug)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("business", map[string]any{"slug": slug})
			}
			var domainErr *apperrors.DomainError
			if errors.As(err, &domainErr) {
				return err
			}
			return apperrors.NewUnavailable("could not load business, try again", err)
		}
		if !tenant.Active {
			return apperrors.NewNotFound("business", map[string]any{"slug": slug})
		}
		c.Locals(tenantKey, tenant)
		return c.Next()
	}
}

// FromContext returns the tenant resolved for the request.
func FromContext(c *fiber.Ctx) *domain.Tenant {
	tenant, _ := c.Locals(tenantKey).(*domain.Tenant)
	return tenant
}
