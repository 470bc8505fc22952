package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/events"
	"github.com/shopdesk/jobtickets/internal/notify"
)

type sentMessage struct {
	to, subject, body string
}

type fakeSender struct {
	sms   []sentMessage
	email []sentMessage
	err   error
}

func (f *fakeSender) SendSMS(_ context.Context, to, body string) error {
	f.sms = append(f.sms, sentMessage{to: to, body: body})
	return f.err
}

func (f *fakeSender) SendEmail(_ context.Context, to, subject, body string) error {
	f.email = append(f.email, sentMessage{to: to, subject: subject, body: body})
	return f.err
}

func newNotificationFixture() (*NotificationService, *fakeSender, events.Dispatcher) {
	sender := &fakeSender{}
	dispatcher := events.NewInMemoryDispatcher(nil)
	svc := NewNotificationService(NotificationDependencies{
		Dispatcher: dispatcher,
		TenantRepo: &fakeTenantRepo{tenants: map[string]*domain.Tenant{tenantA: {ID: tenantA, Name: "Acme Tire"}}},
		SMS:        sender,
		Mail:       sender,
	})
	svc.RegisterHandlers()
	return svc, sender, dispatcher
}

func TestVehicleReadyText(t *testing.T) {
	_, sender, dispatcher := newNotificationFixture()
	err := dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventTicketCompleted,
		TenantID: tenantA,
		TicketID: ticketID,
		Payload:  events.TicketCompletedPayload{Vehicle: "Civic", CustomerName: "Jane", CustomerPhone: "423-555-0101"},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(sender.sms) != 1 {
		t.Fatalf("expected one text, got %d", len(sender.sms))
	}
	if want := "Hi Jane, your Civic is ready for pickup at Acme Tire."; sender.sms[0].body != want {
		t.Fatalf("body = %q", sender.sms[0].body)
	}

	_ = dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventTicketCompleted,
		TenantID: tenantA,
		Payload:  events.TicketCompletedPayload{CustomerPhone: "555"},
	})
	if len(sender.sms) != 1 {
		t.Fatalf("unusable phone should be skipped")
	}
}

func TestMessages(t *testing.T) {
	if got := ReadyMessage("the shop", "", ""); got != "Hi, your vehicle is ready for pickup at the shop." {
		t.Fatalf("ReadyMessage = %q", got)
	}
	if got := ReminderMessage("Acme Tire", "Ann", "2:30 PM"); got != "Hi Ann, this is a reminder of your appointment at Acme Tire at 2:30 PM." {
		t.Fatalf("ReminderMessage = %q", got)
	}
}

func TestSendMagicLink(t *testing.T) {
	svc, sender, _ := newNotificationFixture()
	email := "tom@shop.example"
	staff := &domain.Staff{ID: staffID, TenantID: tenantA, Name: "Tom", Email: &email}
	if err := svc.SendMagicLink(context.Background(), staff, "https://app.example/auth/magic?token=abc"); err != nil {
		t.Fatalf("SendMagicLink: %v", err)
	}
	if len(sender.email) != 1 || sender.email[0].to != email || sender.email[0].subject != "Sign in to Acme Tire" {
		t.Fatalf("unexpected email %+v", sender.email)
	}
	staff.Email = nil
	if err := svc.SendMagicLink(context.Background(), staff, "x"); !errors.Is(err, notify.ErrNoRecipient) {
		t.Fatalf("expected no recipient, got %v", err)
	}
}

func TestSendAppointmentReminder(t *testing.T) {
	svc, sender, _ := newNotificationFixture()
	at := time.Date(2026, 3, 3, 14, 30, 0, 0, time.UTC)
	tenant := &domain.Tenant{ID: tenantA, Name: "Acme Tire"}
	ticket := domain.Ticket{CustomerName: "Ann", CustomerPhone: "423-555-0199", ScheduledTime: &at}
	if err := svc.SendAppointmentReminder(context.Background(), tenant, ticket, "9:30 AM"); err != nil {
		t.Fatalf("SendAppointmentReminder: %v", err)
	}
	if len(sender.sms) != 1 || sender.sms[0].to != "423-555-0199" {
		t.Fatalf("unexpected sms %+v", sender.sms)
	}
	ticket.ScheduledTime = nil
	if err := svc.SendAppointmentReminder(context.Background(), tenant, ticket, "9:30 AM"); err != nil || len(sender.sms) != 1 {
		t.Fatalf("unscheduled tickets get no reminder")
	}
}

type queuedJob struct {
	name string
	run  func(context.Context) error
}

type fakeOutbox struct {
	jobs []queuedJob
}

func (f *fakeOutbox) Enqueue(name string, run func(context.Context) error) bool {
	f.jobs = append(f.jobs, queuedJob{name: name, run: run})
	return true
}

func TestVehicleReadyTextIsQueuedOffTheRequest(t *testing.T) {
	sender := &fakeSender{}
	outbox := &fakeOutbox{}
	dispatcher := events.NewInMemoryDispatcher(nil)
	svc := NewNotificationService(NotificationDependencies{
		Dispatcher: dispatcher,
		TenantRepo: &fakeTenantRepo{tenants: map[string]*domain.Tenant{tenantA: {ID: tenantA, Name: "Acme Tire"}}},
		SMS:        sender,
		Mail:       sender,
		Outbox:     outbox,
	})
	svc.RegisterHandlers()

	reqCtx, cancel := context.WithCancel(context.Background())
	err := dispatcher.Publish(reqCtx, events.Event{
		Type:     events.EventTicketCompleted,
		TenantID: tenantA,
		TicketID: ticketID,
		Payload:  events.TicketCompletedPayload{Vehicle: "Civic", CustomerName: "Jane", CustomerPhone: "423-555-0101"},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(sender.sms) != 0 {
		t.Fatalf("text sent on the request path")
	}
	if len(outbox.jobs) != 1 || outbox.jobs[0].name != "vehicle_ready_sms" {
		t.Fatalf("unexpected jobs %+v", outbox.jobs)
	}

	// the request finishing must not cancel the queued send
	cancel()
	if err := outbox.jobs[0].run(context.Background()); err != nil {
		t.Fatalf("job: %v", err)
	}
	if len(sender.sms) != 1 || sender.sms[0].body != "Hi Jane, your Civic is ready for pickup at Acme Tire." {
		t.Fatalf("unexpected sms %+v", sender.sms)
	}
}
