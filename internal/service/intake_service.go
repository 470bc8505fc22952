package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/shopdesk/jobtickets/internal/catalog"
	"github.com/shopdesk/jobtickets/internal/clock"
	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/events"
	"github.com/shopdesk/jobtickets/internal/observability"
	"github.com/shopdesk/jobtickets/internal/repository"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

const errCreateTicket = "failed to create ticket, try again"

// IntakeService validates and records new tickets.
type IntakeService struct {
	tickets    repository.TicketRepository
	customers  repository.CustomerRepository
	tenants    repository.TenantRepository
	catalogs   *CatalogService
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	clock      clock.Clock
	location   *time.Location
	logger     *zap.Logger
}

// IntakeDependencies bundles requirements for intake.
type IntakeDependencies struct {
	TicketRepo   repository.TicketRepository
	CustomerRepo repository.CustomerRepository
	TenantRepo   repository.TenantRepository
	Catalogs     *CatalogService
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Clock        clock.Clock
	// Location is used for tenants without their own time zone.
	Location *time.Location
	Logger   *zap.Logger
}

// CreateTicketInput is the intake form payload.
type CreateTicketInput struct {
	ServiceType   string
	Priority      domain.TicketPriority
	Vehicle       string
	Notes         string
	ServiceData   domain.ServiceData
	CustomerID    *string
	CustomerName  string
	CustomerPhone string
	// ScheduledDate (YYYY-MM-DD) and ScheduledTime (HH:MM) are tenant-local
	// and only used by scheduled service types.
	ScheduledDate string
	ScheduledTime string
}

// NewIntakeService constructs the service.
func NewIntakeService(deps IntakeDependencies) *IntakeService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeService{
		tickets:    deps.TicketRepo,
		customers:  deps.CustomerRepo,
		tenants:    deps.TenantRepo,
		catalogs:   deps.Catalogs,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		clock:      clk,
		location:   loc,
		logger:     logger,
	}
}

// CreateTicket validates input against the service catalog and records a
// pending ticket for the caller's business. All field errors are reported
// together and nothing is written when any exist.
func (s *IntakeService) CreateTicket(ctx context.Context, identity domain.Identity, input CreateTicketInput) (_ *domain.Ticket, err error) {
	if err := authorize(identity, domain.StaffRoleServiceWriter, domain.StaffRoleManager); err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(ctx, "intake.CreateTicket", identity.TenantID)
	defer func() { observability.EndSpan(span, err) }()

	cat, err := s.catalogs.For(ctx, identity.TenantID)
	if err != nil {
		return nil, storeErr(err, "could not load service types, try again")
	}

	slug := strings.TrimSpace(input.ServiceType)
	st, ok := cat.Lookup(slug)
	if !ok || !st.Active {
		return nil, apperrors.NewFieldErrors(map[string]string{"service_type": "unknown service type"})
	}

	errs := map[string]string{}
	ticket := &domain.Ticket{
		TenantID:    identity.TenantID,
		ServiceType: st.Slug,
		Priority:    input.Priority,
		Vehicle:     strings.TrimSpace(input.Vehicle),
		Notes:       strings.TrimSpace(input.Notes),
		CreatedBy:   identity.StaffID,
	}

	switch {
	case st.Scheduled, ticket.Priority == "":
		ticket.Priority = domain.TicketPriorityNormal
	case !ticket.Priority.Valid():
		errs["priority"] = "priority must be HIGH, NORMAL, or LOW"
	}
	if ticket.Vehicle == "" {
		errs["vehicle"] = "vehicle is required"
	}

	data := copyData(input.ServiceData)
	customerName := strings.TrimSpace(input.CustomerName)
	customerPhone := strings.TrimSpace(input.CustomerPhone)
	if st.PrefillCustomer {
		customerName, customerPhone = prefillCustomer(data, customerName, customerPhone)
	}

	clean, fieldErrs := st.Validate(data)
	for field, msg := range fieldErrs {
		errs["service_data."+field] = msg
	}
	ticket.ServiceData = clean

	if customerName == "" {
		errs["customer_name"] = "customer name is required"
	}
	phoneKey := ""
	phoneRaw := customerPhone
	if customerPhone == "" {
		errs["customer_phone"] = "customer phone is required"
	} else if formatted, err := domain.FormatPhone(customerPhone); err != nil {
		errs["customer_phone"] = "enter a 10-digit phone number"
	} else {
		customerPhone = formatted
		phoneKey = domain.NormalizePhone(formatted)
	}
	ticket.CustomerName = customerName
	ticket.CustomerPhone = customerPhone

	if st.Scheduled {
		loc := s.tenantLocation(ctx, identity.TenantID)
		scheduled, fieldErr := combineSchedule(input.ScheduledDate, input.ScheduledTime, loc)
		for field, msg := range fieldErr {
			errs[field] = msg
		}
		if scheduled != nil {
			ticket.ScheduledTime = scheduled
		}
	}

	if input.CustomerID != nil && strings.TrimSpace(*input.CustomerID) != "" {
		if err := validID(*input.CustomerID, "customer_id"); err != nil {
			errs["customer_id"] = "invalid id"
		}
	}

	if len(errs) > 0 {
		return nil, apperrors.NewFieldErrors(errs)
	}

	customerID, err := s.resolveCustomer(ctx, identity.TenantID, input.CustomerID, customerName, phoneRaw, phoneKey, ticket.Vehicle)
	if err != nil {
		return nil, err
	}
	ticket.CustomerID = customerID

	if err := s.tickets.Create(ctx, ticket); err != nil {
		s.logger.Error("create ticket failed", zap.String("tenant_id", identity.TenantID), zap.Error(err))
		return nil, apperrors.NewUnavailable(errCreateTicket, err)
	}

	s.metrics.Inc("tickets_created")
	publish(ctx, s.dispatcher, s.logger, events.EventTicketCreated, identity, ticket.ID, s.clock.Now(), events.TicketCreatedPayload{
		TicketNumber: ticket.TicketNumber,
		ServiceType:  ticket.ServiceType,
		Priority:     ticket.Priority,
		Scheduled:    ticket.ScheduledTime,
	})
	return ticket, nil
}

// resolveCustomer links the ticket to a customer record. An explicit id must
// belong to the tenant; otherwise the phone number finds or creates one.
// Failures on the implicit path leave the ticket unlinked.
func (s *IntakeService) resolveCustomer(ctx context.Context, tenantID string, explicitID *string, name, phoneRaw, phoneKey, vehicle string) (*string, error) {
	if explicitID != nil && strings.TrimSpace(*explicitID) != "" {
		customer, err := s.customers.GetByID(ctx, tenantID, strings.TrimSpace(*explicitID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewFieldErrors(map[string]string{"customer_id": "customer not found"})
			}
			return nil, apperrors.NewUnavailable(errCreateTicket, err)
		}
		s.refreshVehicle(ctx, tenantID, customer.ID, vehicle)
		return &customer.ID, nil
	}

	customer, err := s.customers.GetByPhone(ctx, tenantID, phoneKey)
	switch {
	case err == nil:
		s.refreshVehicle(ctx, tenantID, customer.ID, vehicle)
		return &customer.ID, nil
	case !errors.Is(err, pgx.ErrNoRows):
		s.logger.Warn("customer lookup failed", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, nil
	}

	customer = &domain.Customer{
		TenantID:        tenantID,
		Name:            name,
		PhoneRaw:        phoneRaw,
		PhoneNormalized: phoneKey,
		LastVehicle:     vehicle,
	}
	err = s.customers.Create(ctx, customer)
	if errors.Is(err, repository.ErrDuplicate) {
		// Another intake created the same customer first.
		existing, getErr := s.customers.GetByPhone(ctx, tenantID, phoneKey)
		if getErr != nil {
			s.logger.Warn("customer reload failed", zap.String("tenant_id", tenantID), zap.Error(getErr))
			return nil, nil
		}
		s.refreshVehicle(ctx, tenantID, existing.ID, vehicle)
		return &existing.ID, nil
	}
	if err != nil {
		s.logger.Warn("customer create failed", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, nil
	}
	return &customer.ID, nil
}

func (s *IntakeService) refreshVehicle(ctx context.Context, tenantID, customerID, vehicle string) {
	if err := s.customers.UpdateLastVehicle(ctx, tenantID, customerID, vehicle); err != nil {
		s.logger.Warn("customer vehicle refresh failed", zap.String("customer_id", customerID), zap.Error(err))
	}
}

func (s *IntakeService) tenantLocation(ctx context.Context, tenantID string) *time.Location {
	if s.tenants == nil {
		return s.location
	}
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return s.location
	}
	return tenant.Location(s.location)
}

// prefillCustomer fills the ticket's customer fields and the service data's
// customer fields from each other, whichever side is present.
func prefillCustomer(data domain.ServiceData, name, phone string) (string, string) {
	if name == "" {
		name = strings.TrimSpace(catalog.Stringify(data["customer_name"]))
	} else if catalog.Stringify(data["customer_name"]) == "" {
		data["customer_name"] = name
	}
	if phone == "" {
		phone = strings.TrimSpace(catalog.Stringify(data["phone"]))
	} else if catalog.Stringify(data["phone"]) == "" {
		data["phone"] = phone
	}
	return name, phone
}

// combineSchedule joins a tenant-local date and time into an instant.
func combineSchedule(date, clockTime string, loc *time.Location) (*time.Time, map[string]string) {
	errs := map[string]string{}
	date = strings.TrimSpace(date)
	clockTime = strings.TrimSpace(clockTime)
	if date == "" {
		errs["scheduled_date"] = "appointment date is required"
	}
	if clockTime == "" {
		errs["scheduled_time"] = "appointment time is required"
	}
	if len(errs) > 0 {
		return nil, errs
	}
	at, err := time.ParseInLocation("2006-01-02T15:04", date+"T"+clockTime, loc)
	if err != nil {
		if _, dErr := time.Parse("2006-01-02", date); dErr != nil {
			errs["scheduled_date"] = "use YYYY-MM-DD"
		} else {
			errs["scheduled_time"] = "use HH:MM"
		}
		return nil, errs
	}
	return &at, nil
}

func copyData(data domain.ServiceData) domain.ServiceData {
	out := make(domain.ServiceData, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
