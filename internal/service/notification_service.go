package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/events"
	"github.com/shopdesk/jobtickets/internal/notify"
	"github.com/shopdesk/jobtickets/internal/repository"
)

// Enqueuer runs a job in the background under its own deadline.
type Enqueuer interface {
	Enqueue(name string, run func(context.Context) error) bool
}

// NotificationService turns domain events into customer and staff messages.
type NotificationService struct {
	dispatcher events.Dispatcher
	tenants    repository.TenantRepository
	sms        notify.SMSSender
	mail       notify.Mailer
	outbox     Enqueuer
	logger     *zap.Logger
}

// NotificationDependencies bundles senders and lookups. Without an Outbox,
// event-driven messages are sent inline.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	TenantRepo repository.TenantRepository
	SMS        notify.SMSSender
	Mail       notify.Mailer
	Outbox     Enqueuer
	Logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		tenants:    deps.TenantRepo,
		sms:        deps.SMS,
		mail:       deps.Mail,
		outbox:     deps.Outbox,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketCompleted, n.handleTicketCompleted)
}

func (n *NotificationService) handleTicketCreated(_ context.Context, event events.Event) error {
	n.logger.Info("ticket created",
		zap.String("tenant_id", event.TenantID),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload),
	)
	return nil
}

// handleTicketCompleted texts the customer that the vehicle is ready.
// Tickets without a usable phone are skipped quietly. With an outbox the
// text is queued and the completing request does not wait for the provider.
func (n *NotificationService) handleTicketCompleted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCompletedPayload)
	if !ok || n.sms == nil {
		return nil
	}
	if _, err := notify.E164(payload.CustomerPhone); err != nil {
		n.logger.Debug("vehicle ready sms skipped", zap.String("ticket_id", event.TicketID))
		return nil
	}
	send := func(ctx context.Context) error {
		body := ReadyMessage(n.shopName(ctx, event.TenantID), payload.CustomerName, payload.Vehicle)
		if err := n.sms.SendSMS(ctx, payload.CustomerPhone, body); err != nil {
			return fmt.Errorf("vehicle ready sms for ticket %s: %w", event.TicketID, err)
		}
		return nil
	}
	if n.outbox != nil {
		n.outbox.Enqueue("vehicle_ready_sms", send)
		return nil
	}
	return send(ctx)
}

// SendMagicLink emails a sign-in link to a staff member.
func (n *NotificationService) SendMagicLink(ctx context.Context, staff *domain.Staff, link string) error {
	if staff.Email == nil || strings.TrimSpace(*staff.Email) == "" {
		return notify.ErrNoRecipient
	}
	if n.mail == nil {
		return notify.ErrNoRecipient
	}
	shop := n.shopName(ctx, staff.TenantID)
	subject := fmt.Sprintf("Sign in to %s", shop)
	body := fmt.Sprintf("Hi %s,\n\nUse this link to sign in to %s job tickets:\n\n%s\n\nThe link works once and expires soon.", staff.Name, shop, link)
	return n.mail.SendEmail(ctx, *staff.Email, subject, body)
}

// SendAppointmentReminder texts the customer of a scheduled ticket. when is
// the appointment time formatted for the customer.
func (n *NotificationService) SendAppointmentReminder(ctx context.Context, tenant *domain.Tenant, ticket domain.Ticket, when string) error {
	if n.sms == nil || ticket.ScheduledTime == nil {
		return nil
	}
	if _, err := notify.E164(ticket.CustomerPhone); err != nil {
		return err
	}
	return n.sms.SendSMS(ctx, ticket.CustomerPhone, ReminderMessage(tenant.Name, ticket.CustomerName, when))
}

// ReadyMessage is the text sent when a vehicle is done.
func ReadyMessage(shop, customer, vehicle string) string {
	greeting := "Hi"
	if name := strings.TrimSpace(customer); name != "" {
		greeting = "Hi " + name
	}
	what := "your vehicle"
	if v := strings.TrimSpace(vehicle); v != "" {
		what = "your " + v
	}
	return fmt.Sprintf("%s, %s is ready for pickup at %s.", greeting, what, shop)
}

// ReminderMessage is the text sent ahead of an appointment; when is the
// already formatted local time.
func ReminderMessage(shop, customer, when string) string {
	greeting := "Hi"
	if name := strings.TrimSpace(customer); name != "" {
		greeting = "Hi " + name
	}
	return fmt.Sprintf("%s, this is a reminder of your appointment at %s at %s.", greeting, shop, when)
}

func (n *NotificationService) shopName(ctx context.Context, tenantID string) string {
	if n.tenants != nil {
		if tenant, err := n.tenants.GetByID(ctx, tenantID); err == nil && tenant.Name != "" {
			return tenant.Name
		}
	}
	return "the shop"
}
