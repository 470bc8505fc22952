package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/events"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

// authorize requires a resolved identity holding one of roles. Role checks
// run before any read or write.
func authorize(identity domain.Identity, roles ...domain.StaffRole) error {
	if identity.StaffID == "" || identity.TenantID == "" {
		return apperrors.NewUnauthorized("authentication required")
	}
	if len(roles) > 0 && !identity.HasRole(roles...) {
		return apperrors.NewForbidden("your role cannot perform this action")
	}
	return nil
}

// storeErr converts a datastore failure into a retryable error for the
// caller. Domain errors pass through untouched.
func storeErr(err error, message string) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewUnavailable(message, err)
}

// lookupErr maps a missing row to NOT_FOUND for resource and anything else
// to a retryable failure.
func lookupErr(err error, resource string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, nil)
	}
	return storeErr(err, "could not load "+resource+", try again")
}

// validID rejects malformed ids before they reach the datastore.
func validID(id, field string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewFieldErrors(map[string]string{field: "invalid id"})
	}
	return nil
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, eventType events.EventType, actor domain.Identity, ticketID string, at time.Time, payload any) {
	if dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TenantID:  actor.TenantID,
		TicketID:  ticketID,
		Actor:     events.Actor{StaffID: actor.StaffID, Role: actor.Role},
		Timestamp: at,
		Payload:   payload,
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("publish event failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

func identityFor(staff *domain.Staff) domain.Identity {
	return domain.Identity{
		StaffID:  staff.ID,
		TenantID: staff.TenantID,
		Role:     staff.Role,
		Name:     staff.Name,
		Code:     staff.Code,
	}
}
