package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopdesk/jobtickets/internal/clock"
	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/events"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

var intakeNow = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	de := apperrors.ToDomainError(err)
	if de == nil || de.Code != apperrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields, ok := de.Details["fields"].(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %#v", de.Details)
	}
	return fields
}

type intakeFixture struct {
	svc       *IntakeService
	tickets   *fakeTicketRepo
	customers *fakeCustomerRepo
	created   []domain.Ticket
	published []events.Event
}

func newIntakeFixture() *intakeFixture {
	f := &intakeFixture{customers: &fakeCustomerRepo{}}
	f.tickets = &fakeTicketRepo{createFn: func(_ context.Context, ticket *domain.Ticket) error {
		ticket.ID = ticketID
		ticket.TicketNumber = int64(len(f.created) + 1)
		ticket.Status = domain.TicketStatusPending
		f.created = append(f.created, *ticket)
		return nil
	}}
	dispatcher := events.NewInMemoryDispatcher(nil)
	dispatcher.Subscribe(events.EventTicketCreated, func(_ context.Context, e events.Event) error {
		f.published = append(f.published, e)
		return nil
	})
	est := time.FixedZone("EST", -5*3600)
	f.svc = NewIntakeService(IntakeDependencies{
		TicketRepo:   f.tickets,
		CustomerRepo: f.customers,
		TenantRepo:   &fakeTenantRepo{},
		Catalogs:     NewCatalogService(nil),
		Dispatcher:   dispatcher,
		Clock:        clock.Fake(intakeNow),
		Location:     est,
	})
	return f
}

func TestCreateTicketDefaultsAndLinksCustomer(t *testing.T) {
	f := newIntakeFixture()
	ticket, err := f.svc.CreateTicket(context.Background(), writer(), CreateTicketInput{
		ServiceType:   "MOUNT_BALANCE",
		Vehicle:       " 2019 Honda Civic ",
		ServiceData:   domain.ServiceData{"tire_count": "2"},
		CustomerName:  "Jane Doe",
		CustomerPhone: "(423) 555-0101",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.Priority != domain.TicketPriorityNormal {
		t.Fatalf("priority = %s, want NORMAL", ticket.Priority)
	}
	if ticket.Vehicle != "2019 Honda Civic" || ticket.CustomerPhone != "423-555-0101" {
		t.Fatalf("unexpected ticket %+v", ticket)
	}
	if ticket.CustomerID == nil || *ticket.CustomerID != "cust-new" {
		t.Fatalf("expected new customer link, got %v", ticket.CustomerID)
	}
	if ticket.TenantID != tenantA || ticket.CreatedBy != "sw-1" {
		t.Fatalf("ticket not stamped with caller: %+v", ticket)
	}
	if len(f.published) != 1 || f.published[0].TicketID != ticketID {
		t.Fatalf("expected one created event, got %+v", f.published)
	}
}

func TestCreateTicketKeepsPhoneAsEntered(t *testing.T) {
	f := newIntakeFixture()
	var stored domain.Customer
	f.customers.createFn = func(_ context.Context, c *domain.Customer) error {
		c.ID = "cust-new"
		stored = *c
		return nil
	}
	ticket, err := f.svc.CreateTicket(context.Background(), writer(), CreateTicketInput{
		ServiceType:   "FLAT_REPAIR",
		Vehicle:       "F-150",
		ServiceData:   domain.ServiceData{"tire_position": "FL"},
		CustomerName:  "Jane Doe",
		CustomerPhone: " (423) 555.0101 ",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if stored.PhoneRaw != "(423) 555.0101" {
		t.Fatalf("phone_raw = %q, want the input as typed", stored.PhoneRaw)
	}
	if stored.PhoneNormalized != "4235550101" || ticket.CustomerPhone != "423-555-0101" {
		t.Fatalf("normalized %q, ticket phone %q", stored.PhoneNormalized, ticket.CustomerPhone)
	}
}

func TestCreateTicketReportsAllFieldErrors(t *testing.T) {
	f := newIntakeFixture()
	_, err := f.svc.CreateTicket(context.Background(), writer(), CreateTicketInput{
		ServiceType:   "NEW_TIRES",
		Priority:      "URGENT",
		ServiceData:   domain.ServiceData{"tire_size": "225-65-17"},
		CustomerPhone: "555-0101",
	})
	fields := fieldErrors(t, err)
	for _, key := range []string{"priority", "vehicle", "customer_name", "customer_phone", "service_data.tire_size", "service_data.quantity"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("missing error for %s in %v", key, fields)
		}
	}
	if len(f.created) != 0 {
		t.Fatalf("nothing should be written on validation failure")
	}
}

func TestCreateTicketRejectsUnknownServiceType(t *testing.T) {
	f := newIntakeFixture()
	_, err := f.svc.CreateTicket(context.Background(), writer(), CreateTicketInput{ServiceType: "TOWING", Vehicle: "Truck"})
	if _, ok := fieldErrors(t, err)["service_type"]; !ok {
		t.Fatalf("expected service_type error")
	}
}

func TestCreateTicketRequiresWriterOrManager(t *testing.T) {
	f := newIntakeFixture()
	_, err := f.svc.CreateTicket(context.Background(), technician(), CreateTicketInput{ServiceType: "ROTATION"})
	if !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	_, err = f.svc.CreateTicket(context.Background(), domain.Identity{}, CreateTicketInput{})
	if !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestCreateAppointmentUsesTenantTimeAndPrefill(t *testing.T) {
	f := newIntakeFixture()
	ticket, err := f.svc.CreateTicket(context.Background(), writer(), CreateTicketInput{
		ServiceType:   "APPOINTMENT",
		Priority:      domain.TicketPriorityHigh,
		Vehicle:       "F-150",
		ServiceData:   domain.ServiceData{"customer_name": "Ann Lee", "phone": "4235550199"},
		ScheduledDate: "2026-03-03",
		ScheduledTime: "09:30",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.Priority != domain.TicketPriorityNormal {
		t.Fatalf("appointments are always NORMAL, got %s", ticket.Priority)
	}
	if ticket.CustomerName != "Ann Lee" || ticket.CustomerPhone != "423-555-0199" {
		t.Fatalf("customer not prefilled: %+v", ticket)
	}
	want := time.Date(2026, 3, 3, 14, 30, 0, 0, time.UTC)
	if ticket.ScheduledTime == nil || !ticket.ScheduledTime.Equal(want) {
		t.Fatalf("scheduled = %v, want %v", ticket.ScheduledTime, want)
	}
}

func TestCreateAppointmentRequiresSchedule(t *testing.T) {
	f := newIntakeFixture()
	_, err := f.svc.CreateTicket(context.Background(), writer(), CreateTicketInput{
		ServiceType: "APPOINTMENT",
		Vehicle:     "F-150",
		ServiceData: domain.ServiceData{"customer_name": "Ann Lee", "phone": "4235550199"},
	})
	fields := fieldErrors(t, err)
	if fields["scheduled_date"] == "" || fields["scheduled_time"] == "" {
		t.Fatalf("expected schedule errors, got %v", fields)
	}
}

func TestCreateTicketReusesCustomerByPhone(t *testing.T) {
	f := newIntakeFixture()
	f.customers.getByPhoneFn = func(_ context.Context, tenantID, phoneKey string) (*domain.Customer, error) {
		if tenantID != tenantA || phoneKey != "4235550101" {
			t.Fatalf("unexpected lookup %s %s", tenantID, phoneKey)
		}
		return &domain.Customer{ID: "cust-7", TenantID: tenantA}, nil
	}
	ticket, err := f.svc.CreateTicket(context.Background(), writer(), CreateTicketInput{
		ServiceType: "ROTATION", Vehicle: "Civic", CustomerName: "Jane", CustomerPhone: "423.555.0101",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if *ticket.CustomerID != "cust-7" || f.customers.vehicles["cust-7"] != "Civic" {
		t.Fatalf("expected existing customer refreshed, got %v %v", *ticket.CustomerID, f.customers.vehicles)
	}
}

func TestCreateTicketSurvivesCustomerFailure(t *testing.T) {
	f := newIntakeFixture()
	f.customers.getByPhoneFn = func(context.Context, string, string) (*domain.Customer, error) {
		return nil, errors.New("connection reset")
	}
	ticket, err := f.svc.CreateTicket(context.Background(), writer(), CreateTicketInput{
		ServiceType: "ROTATION", Vehicle: "Civic", CustomerName: "Jane", CustomerPhone: "4235550101",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.CustomerID != nil {
		t.Fatalf("ticket should be unlinked")
	}
}

func TestCreateTicketExplicitCustomerMustExist(t *testing.T) {
	f := newIntakeFixture()
	id := staffID
	_, err := f.svc.CreateTicket(context.Background(), writer(), CreateTicketInput{
		ServiceType: "ROTATION", Vehicle: "Civic", CustomerName: "Jane", CustomerPhone: "4235550101", CustomerID: &id,
	})
	if fieldErrors(t, err)["customer_id"] != "customer not found" {
		t.Fatalf("expected customer_id error, got %v", err)
	}
}

func TestCreateTicketStoreFailureIsRetryable(t *testing.T) {
	f := newIntakeFixture()
	f.tickets.createFn = func(context.Context, *domain.Ticket) error { return errors.New("deadlock") }
	_, err := f.svc.CreateTicket(context.Background(), writer(), CreateTicketInput{
		ServiceType: "ROTATION", Vehicle: "Civic", CustomerName: "Jane", CustomerPhone: "4235550101",
	})
	if !apperrors.HasCode(err, apperrors.CodeUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if len(f.published) != 0 {
		t.Fatalf("no event on failure")
	}
}
