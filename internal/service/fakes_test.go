package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shopdesk/jobtickets/internal/catalog"
	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/repository"
)

const (
	tenantA  = "tenant-a"
	ticketID = "3f1c2a9e-6a43-4a8e-9b0e-4a8f0c7d5e21"
	staffID  = "7d2e9c41-0b5f-4d6e-8a3c-2f1b0e9d8c7a"
)

func manager() domain.Identity {
	return domain.Identity{StaffID: "mgr-1", TenantID: tenantA, Role: domain.StaffRoleManager, Name: "Maria"}
}

func writer() domain.Identity {
	return domain.Identity{StaffID: "sw-1", TenantID: tenantA, Role: domain.StaffRoleServiceWriter, Name: "Sam"}
}

func technician() domain.Identity {
	return domain.Identity{StaffID: "tech-staff-1", TenantID: tenantA, Role: domain.StaffRoleTechnician, Name: "Tom"}
}

type fakeTicketRepo struct {
	createFn        func(ctx context.Context, ticket *domain.Ticket) error
	getFn           func(ctx context.Context, tenantID, id string) (*domain.Ticket, error)
	listPendingFn   func(ctx context.Context, tenantID string) ([]domain.Ticket, error)
	completeFn      func(ctx context.Context, tenantID, id, technicianID string, at time.Time) (*domain.Ticket, error)
	toggleFn        func(ctx context.Context, tenantID, id string) (bool, error)
	excludeAllFn    func(ctx context.Context, tenantID string) (int64, error)
	listCompletedFn func(ctx context.Context, tenantID string, limit int) ([]domain.Ticket, error)
	listCreatedFn   func(ctx context.Context, tenantID string, from, to time.Time) ([]domain.Ticket, error)
	updateFn        func(ctx context.Context, tenantID, id string, edit repository.CompletedEdit) (*domain.Ticket, error)
	softDeleteFn    func(ctx context.Context, tenantID, id string, at time.Time) error
	averageFn       func(ctx context.Context, tenantID string, from, to time.Time) (*float64, error)
}

func (f *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	if f.createFn != nil {
		return f.createFn(ctx, ticket)
	}
	return nil
}

func (f *fakeTicketRepo) GetByID(ctx context.Context, tenantID, id string) (*domain.Ticket, error) {
	if f.getFn != nil {
		return f.getFn(ctx, tenantID, id)
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTicketRepo) ListPending(ctx context.Context, tenantID string) ([]domain.Ticket, error) {
	if f.listPendingFn != nil {
		return f.listPendingFn(ctx, tenantID)
	}
	return nil, nil
}

func (f *fakeTicketRepo) Complete(ctx context.Context, tenantID, id, technicianID string, at time.Time) (*domain.Ticket, error) {
	if f.completeFn != nil {
		return f.completeFn(ctx, tenantID, id, technicianID, at)
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTicketRepo) ToggleExclusion(ctx context.Context, tenantID, id string) (bool, error) {
	if f.toggleFn != nil {
		return f.toggleFn(ctx, tenantID, id)
	}
	return false, pgx.ErrNoRows
}

func (f *fakeTicketRepo) ExcludeAllCompleted(ctx context.Context, tenantID string) (int64, error) {
	if f.excludeAllFn != nil {
		return f.excludeAllFn(ctx, tenantID)
	}
	return 0, nil
}

func (f *fakeTicketRepo) ListCompleted(ctx context.Context, tenantID string, limit int) ([]domain.Ticket, error) {
	if f.listCompletedFn != nil {
		return f.listCompletedFn(ctx, tenantID, limit)
	}
	return nil, nil
}

func (f *fakeTicketRepo) ListCreatedBetween(ctx context.Context, tenantID string, from, to time.Time) ([]domain.Ticket, error) {
	if f.listCreatedFn != nil {
		return f.listCreatedFn(ctx, tenantID, from, to)
	}
	return nil, nil
}

func (f *fakeTicketRepo) ListScheduledBetween(context.Context, string, time.Time, time.Time) ([]domain.Ticket, error) {
	return nil, nil
}

func (f *fakeTicketRepo) UpdateCompleted(ctx context.Context, tenantID, id string, edit repository.CompletedEdit) (*domain.Ticket, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, tenantID, id, edit)
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTicketRepo) SoftDelete(ctx context.Context, tenantID, id string, at time.Time) error {
	if f.softDeleteFn != nil {
		return f.softDeleteFn(ctx, tenantID, id, at)
	}
	return nil
}

func (f *fakeTicketRepo) AverageCompletionMinutes(ctx context.Context, tenantID string, from, to time.Time) (*float64, error) {
	if f.averageFn != nil {
		return f.averageFn(ctx, tenantID, from, to)
	}
	return nil, nil
}

type fakeStaffRepo struct {
	getByCodeFn    func(ctx context.Context, code string) (*domain.Staff, error)
	lookupActiveFn func(ctx context.Context, id string) (*domain.Staff, error)
	getFn          func(ctx context.Context, tenantID, id string) (*domain.Staff, error)
	getByEmailFn   func(ctx context.Context, tenantID, email string) (*domain.Staff, error)
	listFn         func(ctx context.Context, tenantID string) ([]domain.RosterMember, error)
	codeInUseFn    func(ctx context.Context, code, excludeID string) (bool, error)
	createFn       func(ctx context.Context, staff *domain.Staff, withTechnician bool) error
	updateCodeFn   func(ctx context.Context, tenantID, id, code string) error
	renameFn       func(ctx context.Context, tenantID, id, name string) error
	setActiveFn    func(ctx context.Context, tenantID, id string, active bool) error
	technicianFn   func(ctx context.Context, tenantID, staffID string) (*domain.Technician, error)
}

func (f *fakeStaffRepo) GetByCode(ctx context.Context, code string) (*domain.Staff, error) {
	if f.getByCodeFn != nil {
		return f.getByCodeFn(ctx, code)
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStaffRepo) LookupActive(ctx context.Context, id string) (*domain.Staff, error) {
	if f.lookupActiveFn != nil {
		return f.lookupActiveFn(ctx, id)
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStaffRepo) GetByID(ctx context.Context, tenantID, id string) (*domain.Staff, error) {
	if f.getFn != nil {
		return f.getFn(ctx, tenantID, id)
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStaffRepo) GetActiveByEmail(ctx context.Context, tenantID, email string) (*domain.Staff, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, tenantID, email)
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStaffRepo) ListMembers(ctx context.Context, tenantID string) ([]domain.RosterMember, error) {
	if f.listFn != nil {
		return f.listFn(ctx, tenantID)
	}
	return nil, nil
}

func (f *fakeStaffRepo) CodeInUse(ctx context.Context, code, excludeID string) (bool, error) {
	if f.codeInUseFn != nil {
		return f.codeInUseFn(ctx, code, excludeID)
	}
	return false, nil
}

func (f *fakeStaffRepo) Create(ctx context.Context, staff *domain.Staff, withTechnician bool) error {
	if f.createFn != nil {
		return f.createFn(ctx, staff, withTechnician)
	}
	return nil
}

func (f *fakeStaffRepo) UpdateCode(ctx context.Context, tenantID, id, code string) error {
	if f.updateCodeFn != nil {
		return f.updateCodeFn(ctx, tenantID, id, code)
	}
	return nil
}

func (f *fakeStaffRepo) Rename(ctx context.Context, tenantID, id, name string) error {
	if f.renameFn != nil {
		return f.renameFn(ctx, tenantID, id, name)
	}
	return nil
}

func (f *fakeStaffRepo) SetActive(ctx context.Context, tenantID, id string, active bool) error {
	if f.setActiveFn != nil {
		return f.setActiveFn(ctx, tenantID, id, active)
	}
	return nil
}

func (f *fakeStaffRepo) GetTechnicianByStaff(ctx context.Context, tenantID, staffID string) (*domain.Technician, error) {
	if f.technicianFn != nil {
		return f.technicianFn(ctx, tenantID, staffID)
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStaffRepo) ListTechnicians(context.Context, string) ([]domain.Technician, error) {
	return nil, nil
}

type fakeCustomerRepo struct {
	getFn        func(ctx context.Context, tenantID, id string) (*domain.Customer, error)
	getByPhoneFn func(ctx context.Context, tenantID, phoneKey string) (*domain.Customer, error)
	createFn     func(ctx context.Context, customer *domain.Customer) error
	searchFn     func(ctx context.Context, tenantID, nameQuery, phoneDigits string, limit int) ([]domain.CustomerSearchResult, error)
	vehicles     map[string]string
}

func (f *fakeCustomerRepo) GetByID(ctx context.Context, tenantID, id string) (*domain.Customer, error) {
	if f.getFn != nil {
		return f.getFn(ctx, tenantID, id)
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeCustomerRepo) GetByPhone(ctx context.Context, tenantID, phoneKey string) (*domain.Customer, error) {
	if f.getByPhoneFn != nil {
		return f.getByPhoneFn(ctx, tenantID, phoneKey)
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeCustomerRepo) Create(ctx context.Context, customer *domain.Customer) error {
	if f.createFn != nil {
		return f.createFn(ctx, customer)
	}
	customer.ID = "cust-new"
	return nil
}

func (f *fakeCustomerRepo) UpdateLastVehicle(_ context.Context, _ string, id, vehicle string) error {
	if f.vehicles == nil {
		f.vehicles = map[string]string{}
	}
	f.vehicles[id] = vehicle
	return nil
}

func (f *fakeCustomerRepo) Search(ctx context.Context, tenantID, nameQuery, phoneDigits string, limit int) ([]domain.CustomerSearchResult, error) {
	if f.searchFn != nil {
		return f.searchFn(ctx, tenantID, nameQuery, phoneDigits, limit)
	}
	return nil, nil
}

type fakeTenantRepo struct {
	tenants map[string]*domain.Tenant
}

func (f *fakeTenantRepo) GetBySlug(_ context.Context, slug string) (*domain.Tenant, error) {
	for _, t := range f.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTenantRepo) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	if t, ok := f.tenants[id]; ok {
		return t, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTenantRepo) ListActive(context.Context) ([]domain.Tenant, error) {
	var out []domain.Tenant
	for _, t := range f.tenants {
		if t.Active {
			out = append(out, *t)
		}
	}
	return out, nil
}

type fakeHistoryRepo struct {
	entries []domain.TicketHistory
	err     error
}

func (f *fakeHistoryRepo) Create(_ context.Context, h *domain.TicketHistory) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *h)
	return nil
}

func (f *fakeHistoryRepo) ListByTicket(_ context.Context, _ string, ticketID string) ([]domain.TicketHistory, error) {
	var out []domain.TicketHistory
	for _, h := range f.entries {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeServiceTypes struct {
	types []catalog.ServiceType
}

func (f fakeServiceTypes) ListByTenant(context.Context, string) ([]catalog.ServiceType, error) {
	return f.types, nil
}
