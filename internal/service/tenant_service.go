package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/repository"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

const defaultBrandColor = "#6B7280"

// Branding is the public face of a business.
type Branding struct {
	Slug           string `json:"slug"`
	Name           string `json:"name"`
	LogoURL        string `json:"logo_url,omitempty"`
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
}

// ManifestIcon is one icon entry of a web app manifest.
type ManifestIcon struct {
	Src   string `json:"src"`
	Sizes string `json:"sizes"`
	Type  string `json:"type"`
}

// Manifest is the installable web app manifest of a business.
type Manifest struct {
	Name            string         `json:"name"`
	ShortName       string         `json:"short_name"`
	Description     string         `json:"description"`
	StartURL        string         `json:"start_url"`
	Scope           string         `json:"scope"`
	Display         string         `json:"display"`
	BackgroundColor string         `json:"background_color"`
	ThemeColor      string         `json:"theme_color"`
	Orientation     string         `json:"orientation"`
	Icons           []ManifestIcon `json:"icons"`
}

// TenantService resolves businesses for routing and branding.
type TenantService struct {
	tenants repository.TenantRepository
}

// NewTenantService constructs the service.
func NewTenantService(tenants repository.TenantRepository) *TenantService {
	return &TenantService{tenants: tenants}
}

// GetBySlug finds an active business by its routing key.
func (s *TenantService) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	if !domain.ValidTenantSlug(slug) {
		return nil, apperrors.NewNotFound("business", nil)
	}
	tenant, err := s.tenants.GetBySlug(ctx, slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("business", nil)
	}
	if err != nil {
		return nil, storeErr(err, "could not load business, try again")
	}
	if !tenant.Active {
		return nil, apperrors.NewNotFound("business", nil)
	}
	return tenant, nil
}

// BrandingFor returns the public branding of tenant.
func BrandingFor(tenant *domain.Tenant) Branding {
	b := Branding{
		Slug:           tenant.Slug,
		Name:           tenant.Name,
		LogoURL:        tenant.LogoURL,
		PrimaryColor:   tenant.PrimaryColor,
		SecondaryColor: tenant.SecondaryColor,
		Timezone:       tenant.Timezone,
	}
	if b.PrimaryColor == "" {
		b.PrimaryColor = defaultBrandColor
	}
	return b
}

// ManifestFor builds the web app manifest from tenant branding. A nil
// tenant yields the generic manifest.
func ManifestFor(tenant *domain.Tenant) Manifest {
	m := Manifest{
		Name:            "Job Tickets",
		ShortName:       "Tickets",
		Description:     "Internal job ticket management system",
		StartURL:        "/login",
		Scope:           "/",
		Display:         "standalone",
		BackgroundColor: defaultBrandColor,
		ThemeColor:      defaultBrandColor,
		Orientation:     "portrait",
		Icons:           []ManifestIcon{{Src: "/favicon.ico", Sizes: "64x64", Type: "image/x-icon"}},
	}
	if tenant == nil {
		return m
	}
	if tenant.Name != "" {
		m.Name = tenant.Name + " - Job Tickets"
		m.ShortName = tenant.Name
	}
	if tenant.PrimaryColor != "" {
		m.BackgroundColor = tenant.PrimaryColor
		m.ThemeColor = tenant.PrimaryColor
	}
	if tenant.LogoURL != "" {
		m.Icons = []ManifestIcon{
			{Src: tenant.LogoURL, Sizes: "192x192", Type: "image/png"},
			{Src: tenant.LogoURL, Sizes: "512x512", Type: "image/png"},
		}
	}
	return m
}
