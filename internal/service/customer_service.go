package service

import (
	"context"
	"strings"

	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/repository"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

const customerSearchLimit = 25

// CustomerService looks up repeat customers.
type CustomerService struct {
	customers repository.CustomerRepository
}

// NewCustomerService constructs the service.
func NewCustomerService(customers repository.CustomerRepository) *CustomerService {
	return &CustomerService{customers: customers}
}

// Search matches customers by name, or by phone when the query has at
// least four digits.
func (s *CustomerService) Search(ctx context.Context, identity domain.Identity, query string) ([]domain.CustomerSearchResult, error) {
	if err := authorize(identity, domain.StaffRoleServiceWriter, domain.StaffRoleManager); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, apperrors.NewFieldErrors(map[string]string{"q": "enter at least 2 characters"})
	}
	phoneDigits := domain.NormalizePhone(query)
	if len(phoneDigits) < 4 {
		phoneDigits = ""
	}
	results, err := s.customers.Search(ctx, identity.TenantID, query, phoneDigits, customerSearchLimit)
	if err != nil {
		return nil, storeErr(err, "could not search customers, try again")
	}
	return results, nil
}
