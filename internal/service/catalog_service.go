package service

import (
	"context"

	"github.com/shopdesk/jobtickets/internal/catalog"
	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/repository"
)

// CatalogService assembles each tenant's service catalog: the built-in
// types overlaid with the tenant's own.
type CatalogService struct {
	serviceTypes repository.ServiceTypeRepository
}

// NewCatalogService constructs the service.
func NewCatalogService(serviceTypes repository.ServiceTypeRepository) *CatalogService {
	return &CatalogService{serviceTypes: serviceTypes}
}

// For returns the effective catalog of tenantID.
func (s *CatalogService) For(ctx context.Context, tenantID string) (*catalog.Catalog, error) {
	legacy, err := catalog.Legacy()
	if err != nil {
		return nil, err
	}
	if s == nil || s.serviceTypes == nil {
		return legacy, nil
	}
	custom, err := s.serviceTypes.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(custom) == 0 {
		return legacy, nil
	}
	return legacy.Overlay(custom), nil
}

// ListTypes returns the active service types offered at intake.
func (s *CatalogService) ListTypes(ctx context.Context, identity domain.Identity) ([]catalog.ServiceType, error) {
	if err := authorize(identity); err != nil {
		return nil, err
	}
	cat, err := s.For(ctx, identity.TenantID)
	if err != nil {
		return nil, storeErr(err, "could not load service types, try again")
	}
	return cat.Types(), nil
}
