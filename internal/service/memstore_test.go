package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/repository"
)

// memStore keeps tickets, staff and technicians in memory with the same
// tenant scoping and conditional updates as the SQL repositories, so that
// sequences of service calls can be checked against real state.
type memStore struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	staff   map[string]*domain.Staff
	techs   map[string]*domain.Technician // keyed by staff id
	numbers map[string]int64
}

func newMemStore() *memStore {
	return &memStore{
		tickets: map[string]*domain.Ticket{},
		staff:   map[string]*domain.Staff{},
		techs:   map[string]*domain.Technician{},
		numbers: map[string]int64{},
	}
}

// addStaff registers an active member and, for technicians, their profile.
func (m *memStore) addStaff(tenantID string, role domain.StaffRole, name string) domain.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &domain.Staff{ID: uuid.NewString(), TenantID: tenantID, Code: name, Name: name, Role: role, Active: true}
	m.staff[s.ID] = s
	if role == domain.StaffRoleTechnician {
		m.techs[s.ID] = &domain.Technician{ID: uuid.NewString(), TenantID: tenantID, StaffID: s.ID, Name: name, Active: true}
	}
	return domain.Identity{StaffID: s.ID, TenantID: tenantID, Role: role, Name: name}
}

func (m *memStore) techByID(id string) *domain.Technician {
	for _, tech := range m.techs {
		if tech.ID == id {
			return tech
		}
	}
	return nil
}

func (m *memStore) view(t *domain.Ticket) domain.Ticket {
	out := *t
	out.CompletedByName = ""
	if t.CompletedBy != nil {
		if tech := m.techByID(*t.CompletedBy); tech != nil {
			out.CompletedByName = tech.Name
		}
	}
	return out
}

type memTickets struct{ *memStore }

var (
	_ repository.TicketRepository = memTickets{}
	_ repository.StaffRepository  = memStaff{}
)

func (m memTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	creator, ok := m.staff[ticket.CreatedBy]
	if !ok || creator.TenantID != ticket.TenantID || !creator.Active {
		return pgx.ErrNoRows
	}
	m.numbers[creator.TenantID]++
	stored := *ticket
	stored.ID = uuid.NewString()
	stored.TenantID = creator.TenantID
	stored.TicketNumber = m.numbers[creator.TenantID]
	stored.Status = domain.TicketStatusPending
	m.tickets[stored.ID] = &stored
	*ticket = stored
	return nil
}

func (m memTickets) GetByID(_ context.Context, tenantID, id string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.TenantID != tenantID || t.DeletedAt != nil {
		return nil, pgx.ErrNoRows
	}
	out := m.view(t)
	return &out, nil
}

func (m memTickets) filter(tenantID string, keep func(*domain.Ticket) bool) []domain.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Ticket
	for _, t := range m.tickets {
		if t.TenantID == tenantID && t.DeletedAt == nil && keep(t) {
			out = append(out, m.view(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketNumber < out[j].TicketNumber })
	return out
}

func (m memTickets) ListPending(_ context.Context, tenantID string) ([]domain.Ticket, error) {
	return m.filter(tenantID, func(t *domain.Ticket) bool { return t.Status == domain.TicketStatusPending }), nil
}

func (m memTickets) Complete(_ context.Context, tenantID, id, technicianID string, at time.Time) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.TenantID != tenantID || t.DeletedAt != nil || t.Status != domain.TicketStatusPending {
		return nil, pgx.ErrNoRows
	}
	if tech := m.techByID(technicianID); tech == nil || tech.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	if err := t.Complete(technicianID, at); err != nil {
		return nil, err
	}
	out := m.view(t)
	return &out, nil
}

func (m memTickets) ToggleExclusion(_ context.Context, tenantID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.TenantID != tenantID || t.DeletedAt != nil {
		return false, pgx.ErrNoRows
	}
	t.ExcludedFromMetrics = !t.ExcludedFromMetrics
	return t.ExcludedFromMetrics, nil
}

func (m memTickets) ExcludeAllCompleted(_ context.Context, tenantID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, t := range m.tickets {
		if t.TenantID == tenantID && t.DeletedAt == nil && t.Status == domain.TicketStatusCompleted && !t.ExcludedFromMetrics {
			t.ExcludedFromMetrics = true
			n++
		}
	}
	return n, nil
}

func (m memTickets) ListCompleted(_ context.Context, tenantID string, limit int) ([]domain.Ticket, error) {
	out := m.filter(tenantID, func(t *domain.Ticket) bool { return t.Status == domain.TicketStatusCompleted })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memTickets) ListCreatedBetween(_ context.Context, tenantID string, from, to time.Time) ([]domain.Ticket, error) {
	return m.filter(tenantID, func(t *domain.Ticket) bool {
		return !t.CreatedAt.Before(from) && t.CreatedAt.Before(to)
	}), nil
}

func (m memTickets) ListScheduledBetween(_ context.Context, tenantID string, from, to time.Time) ([]domain.Ticket, error) {
	return m.filter(tenantID, func(t *domain.Ticket) bool {
		return t.ScheduledTime != nil && !t.ScheduledTime.Before(from) && t.ScheduledTime.Before(to)
	}), nil
}

func (m memTickets) UpdateCompleted(_ context.Context, tenantID, id string, edit repository.CompletedEdit) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.TenantID != tenantID || t.DeletedAt != nil || t.Status != domain.TicketStatusCompleted {
		return nil, pgx.ErrNoRows
	}
	t.Vehicle = edit.Vehicle
	t.CustomerName = edit.CustomerName
	t.Notes = edit.Notes
	t.CompletedAt = &edit.CompletedAt
	out := m.view(t)
	return &out, nil
}

func (m memTickets) SoftDelete(_ context.Context, tenantID, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.TenantID != tenantID || t.DeletedAt != nil {
		return pgx.ErrNoRows
	}
	t.DeletedAt = &at
	return nil
}

func (m memTickets) AverageCompletionMinutes(context.Context, string, time.Time, time.Time) (*float64, error) {
	return nil, nil
}

type memStaff struct{ *memStore }

func (m memStaff) GetByCode(_ context.Context, code string) (*domain.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.staff {
		if s.Code == domain.NormalizeCode(code) {
			out := *s
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m memStaff) LookupActive(_ context.Context, id string) (*domain.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[id]
	if !ok || !s.Active {
		return nil, pgx.ErrNoRows
	}
	out := *s
	return &out, nil
}

func (m memStaff) GetByID(_ context.Context, tenantID, id string) (*domain.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[id]
	if !ok || s.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	out := *s
	return &out, nil
}

func (m memStaff) GetActiveByEmail(context.Context, string, string) (*domain.Staff, error) {
	return nil, pgx.ErrNoRows
}

func (m memStaff) ListMembers(context.Context, string) ([]domain.RosterMember, error) {
	return nil, nil
}

func (m memStaff) CodeInUse(_ context.Context, code, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.staff {
		if s.Code == domain.NormalizeCode(code) && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m memStaff) Create(_ context.Context, staff *domain.Staff, withTechnician bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staff.ID = uuid.NewString()
	staff.Code = domain.NormalizeCode(staff.Code)
	staff.Active = true
	stored := *staff
	m.staff[staff.ID] = &stored
	if withTechnician {
		m.techs[staff.ID] = &domain.Technician{ID: uuid.NewString(), TenantID: staff.TenantID, StaffID: staff.ID, Name: staff.Name, Active: true}
	}
	return nil
}

func (m memStaff) UpdateCode(_ context.Context, tenantID, id, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[id]
	if !ok || s.TenantID != tenantID {
		return pgx.ErrNoRows
	}
	s.Code = domain.NormalizeCode(code)
	return nil
}

func (m memStaff) Rename(_ context.Context, tenantID, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[id]
	if !ok || s.TenantID != tenantID {
		return pgx.ErrNoRows
	}
	s.Name = name
	if tech, ok := m.techs[id]; ok {
		tech.Name = name
	}
	return nil
}

func (m memStaff) SetActive(_ context.Context, tenantID, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[id]
	if !ok || s.TenantID != tenantID {
		return pgx.ErrNoRows
	}
	s.Active = active
	if tech, ok := m.techs[id]; ok {
		tech.Active = active
	}
	return nil
}

func (m memStaff) GetTechnicianByStaff(_ context.Context, tenantID, staffID string) (*domain.Technician, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tech, ok := m.techs[staffID]
	if !ok || tech.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	out := *tech
	return &out, nil
}

func (m memStaff) ListTechnicians(_ context.Context, tenantID string) ([]domain.Technician, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Technician
	for _, tech := range m.techs {
		if tech.TenantID == tenantID {
			out = append(out, *tech)
		}
	}
	return out, nil
}
