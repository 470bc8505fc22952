package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/shopdesk/jobtickets/internal/clock"
	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/events"
	"github.com/shopdesk/jobtickets/internal/observability"
	"github.com/shopdesk/jobtickets/internal/repository"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows after intake: completion,
// metrics exclusion, and the manager's completed-jobs tools.
type TicketService struct {
	tickets    repository.TicketRepository
	staff      repository.StaffRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	clock      clock.Clock
	logger     *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	StaffRepo   repository.StaffRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Clock       clock.Clock
	Logger      *zap.Logger
}

// EditCompletedInput holds the editable fields of a completed ticket.
// Nil fields keep their current value.
type EditCompletedInput struct {
	Vehicle      *string
	CustomerName *string
	Notes        *string
	CompletedAt  *time.Time
}

// NewTicketService wires dependencies.
func NewTicketService(deps TicketDependencies) *TicketService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		staff:      deps.StaffRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		clock:      clk,
		logger:     logger,
	}
}

// GetTicket loads one non-deleted ticket of the caller's business.
func (s *TicketService) GetTicket(ctx context.Context, identity domain.Identity, ticketID string) (*domain.Ticket, error) {
	if err := authorize(identity); err != nil {
		return nil, err
	}
	if err := validID(ticketID, "ticket_id"); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, identity.TenantID, ticketID)
	if err != nil {
		return nil, lookupErr(err, "ticket")
	}
	return ticket, nil
}

// CompleteTicket marks a pending ticket completed by the caller's technician
// profile. The stamp is written only if the ticket is still pending when the
// update runs, so of two concurrent completions exactly one wins.
func (s *TicketService) CompleteTicket(ctx context.Context, identity domain.Identity, ticketID string) (_ *domain.Ticket, err error) {
	if err := authorize(identity, domain.StaffRoleTechnician, domain.StaffRoleManager); err != nil {
		return nil, err
	}
	if err := validID(ticketID, "ticket_id"); err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(ctx, "tickets.CompleteTicket", identity.TenantID)
	defer func() { observability.EndSpan(span, err) }()

	tech, err := s.staff.GetTechnicianByStaff(ctx, identity.TenantID, identity.StaffID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, storeErr(err, "could not complete ticket, try again")
	}
	if tech == nil || !tech.Active {
		return nil, apperrors.NewAccessDenied(apperrors.CodeNoTechnician, "no active technician profile", http.StatusForbidden)
	}

	now := s.clock.Now()
	ticket, err := s.tickets.Complete(ctx, identity.TenantID, ticketID, tech.ID, now)
	if errors.Is(err, pgx.ErrNoRows) {
		current, getErr := s.tickets.GetByID(ctx, identity.TenantID, ticketID)
		if getErr != nil {
			return nil, lookupErr(getErr, "ticket")
		}
		if current.Status == domain.TicketStatusCompleted {
			return nil, apperrors.NewConflict(domain.ErrAlreadyCompleted.Error(), map[string]any{
				"completed_by": current.CompletedByName,
			})
		}
		return nil, apperrors.NewConflict("ticket changed, reload and try again", nil)
	}
	if err != nil {
		return nil, storeErr(err, "could not complete ticket, try again")
	}

	s.record(ctx, identity, ticket.ID, domain.ChangeTypeCompleted,
		map[string]any{"status": string(domain.TicketStatusPending)},
		map[string]any{"status": string(domain.TicketStatusCompleted), "completed_by": tech.ID})
	s.metrics.Inc("tickets_completed")
	publish(ctx, s.dispatcher, s.logger, events.EventTicketCompleted, identity, ticket.ID, now, events.TicketCompletedPayload{
		TicketNumber:  ticket.TicketNumber,
		TechnicianID:  tech.ID,
		ServiceType:   ticket.ServiceType,
		Vehicle:       ticket.Vehicle,
		CustomerName:  ticket.CustomerName,
		CustomerPhone: ticket.CustomerPhone,
	})
	return ticket, nil
}

// ToggleExclusion flips whether a ticket counts toward metrics and returns
// the new value. Pending and completed tickets alike can be toggled.
func (s *TicketService) ToggleExclusion(ctx context.Context, identity domain.Identity, ticketID string) (bool, error) {
	if err := authorize(identity, domain.StaffRoleManager); err != nil {
		return false, err
	}
	if err := validID(ticketID, "ticket_id"); err != nil {
		return false, err
	}
	excluded, err := s.tickets.ToggleExclusion(ctx, identity.TenantID, ticketID)
	if err != nil {
		return false, lookupErr(err, "ticket")
	}
	s.record(ctx, identity, ticketID, domain.ChangeTypeExclusion,
		map[string]any{"excluded_from_metrics": !excluded},
		map[string]any{"excluded_from_metrics": excluded})
	publish(ctx, s.dispatcher, s.logger, events.EventTicketExclusionChanged, identity, ticketID, s.clock.Now(), events.TicketExclusionChangedPayload{
		Excluded: excluded,
		Affected: 1,
	})
	return excluded, nil
}

// ExcludeAllCompleted removes every completed ticket from metrics. Running
// it again affects nothing.
func (s *TicketService) ExcludeAllCompleted(ctx context.Context, identity domain.Identity, confirm bool) (int64, error) {
	if err := authorize(identity, domain.StaffRoleManager); err != nil {
		return 0, err
	}
	if !confirm {
		return 0, apperrors.NewFieldErrors(map[string]string{"confirm": "confirmation required"})
	}
	affected, err := s.tickets.ExcludeAllCompleted(ctx, identity.TenantID)
	if err != nil {
		return 0, storeErr(err, "could not update tickets, try again")
	}
	s.logger.Info("completed tickets excluded from metrics",
		zap.String("tenant_id", identity.TenantID),
		zap.String("staff_id", identity.StaffID),
		zap.Int64("affected", affected),
	)
	if affected > 0 {
		publish(ctx, s.dispatcher, s.logger, events.EventTicketExclusionChanged, identity, "", s.clock.Now(), events.TicketExclusionChangedPayload{
			Excluded: true,
			Affected: affected,
		})
	}
	return affected, nil
}

// EditCompleted corrects a completed ticket. Status and completer are never
// changed here.
func (s *TicketService) EditCompleted(ctx context.Context, identity domain.Identity, ticketID string, input EditCompletedInput) (*domain.Ticket, error) {
	if err := authorize(identity, domain.StaffRoleManager); err != nil {
		return nil, err
	}
	if err := validID(ticketID, "ticket_id"); err != nil {
		return nil, err
	}
	current, err := s.tickets.GetByID(ctx, identity.TenantID, ticketID)
	if err != nil {
		return nil, lookupErr(err, "ticket")
	}
	if current.Status != domain.TicketStatusCompleted || current.CompletedAt == nil {
		return nil, apperrors.NewConflict("only completed tickets can be edited", nil)
	}

	edit := repository.CompletedEdit{
		Vehicle:      current.Vehicle,
		CustomerName: current.CustomerName,
		Notes:        current.Notes,
		CompletedAt:  *current.CompletedAt,
	}
	errs := map[string]string{}
	if input.Vehicle != nil {
		edit.Vehicle = strings.TrimSpace(*input.Vehicle)
	}
	if edit.Vehicle == "" {
		errs["vehicle"] = "vehicle is required"
	}
	if input.CustomerName != nil {
		edit.CustomerName = strings.TrimSpace(*input.CustomerName)
	}
	if input.Notes != nil {
		edit.Notes = strings.TrimSpace(*input.Notes)
	}
	if input.CompletedAt != nil {
		edit.CompletedAt = *input.CompletedAt
	}
	if edit.CompletedAt.Before(current.CreatedAt) {
		errs["completed_at"] = "completion time cannot be before the ticket was created"
	}
	if len(errs) > 0 {
		return nil, apperrors.NewFieldErrors(errs)
	}

	updated, err := s.tickets.UpdateCompleted(ctx, identity.TenantID, ticketID, edit)
	if err != nil {
		return nil, lookupErr(err, "ticket")
	}
	s.record(ctx, identity, ticketID, domain.ChangeTypeEdited, editValues(current), editValues(updated))
	publish(ctx, s.dispatcher, s.logger, events.EventTicketEdited, identity, ticketID, s.clock.Now(), nil)
	return updated, nil
}

// DeleteTicket hides a ticket from the queue, lists and reports. The row
// and its history remain.
func (s *TicketService) DeleteTicket(ctx context.Context, identity domain.Identity, ticketID string) error {
	if err := authorize(identity, domain.StaffRoleManager); err != nil {
		return err
	}
	if err := validID(ticketID, "ticket_id"); err != nil {
		return err
	}
	now := s.clock.Now()
	if err := s.tickets.SoftDelete(ctx, identity.TenantID, ticketID, now); err != nil {
		return lookupErr(err, "ticket")
	}
	s.record(ctx, identity, ticketID, domain.ChangeTypeDeleted, nil, map[string]any{"deleted_at": now})
	s.metrics.Inc("tickets_deleted")
	publish(ctx, s.dispatcher, s.logger, events.EventTicketDeleted, identity, ticketID, now, nil)
	return nil
}

// ListHistory returns a ticket's audit trail, oldest first.
func (s *TicketService) ListHistory(ctx context.Context, identity domain.Identity, ticketID string) ([]domain.TicketHistory, error) {
	if err := authorize(identity, domain.StaffRoleManager); err != nil {
		return nil, err
	}
	if err := validID(ticketID, "ticket_id"); err != nil {
		return nil, err
	}
	if _, err := s.tickets.GetByID(ctx, identity.TenantID, ticketID); err != nil {
		return nil, lookupErr(err, "ticket")
	}
	history, err := s.history.ListByTicket(ctx, identity.TenantID, ticketID)
	if err != nil {
		return nil, storeErr(err, "could not load history, try again")
	}
	return history, nil
}

// record appends an audit entry. The change itself is already committed, so
// a failure here is logged rather than returned.
func (s *TicketService) record(ctx context.Context, identity domain.Identity, ticketID string, change domain.TicketChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TenantID:    identity.TenantID,
		TicketID:    ticketID,
		ChangedByID: identity.StaffID,
		ChangeType:  change,
		OldValue:    oldValue,
		NewValue:    newValue,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("record ticket history failed",
			zap.String("ticket_id", ticketID),
			zap.String("change_type", string(change)),
			zap.Error(err),
		)
	}
}

func editValues(t *domain.Ticket) map[string]any {
	values := map[string]any{
		"vehicle":       t.Vehicle,
		"customer_name": t.CustomerName,
		"notes":         t.Notes,
	}
	if t.CompletedAt != nil {
		values["completed_at"] = *t.CompletedAt
	}
	return values
}
