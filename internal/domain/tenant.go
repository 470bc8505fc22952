package domain

import (
	"regexp"
	"time"
)

var tenantSlugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Tenant is an isolated business account.
type Tenant struct {
	ID             string
	Slug           string
	Name           string
	LogoURL        string
	PrimaryColor   string
	SecondaryColor string
	Timezone       string
	Active         bool
	CreatedAt      time.Time
}

// ValidTenantSlug reports whether slug can be used as a routing key.
func ValidTenantSlug(slug string) bool {
	return slug != "" && len(slug) <= 63 && tenantSlugPattern.MatchString(slug)
}

// Location returns the tenant's time zone, falling back to fallback.
func (t *Tenant) Location(fallback *time.Location) *time.Location {
	if t == nil || t.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}
