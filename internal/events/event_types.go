package events

import (
	"time"

	"github.com/shopdesk/jobtickets/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated          EventType = "ticket_created"
	EventTicketCompleted        EventType = "ticket_completed"
	EventTicketExclusionChanged EventType = "ticket_exclusion_changed"
	EventTicketEdited           EventType = "ticket_edited"
	EventTicketDeleted          EventType = "ticket_deleted"
)

// TicketEventTypes lists every event that changes what a queue or report shows.
var TicketEventTypes = []EventType{
	EventTicketCreated,
	EventTicketCompleted,
	EventTicketExclusionChanged,
	EventTicketEdited,
	EventTicketDeleted,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	StaffID string           `json:"staff_id"`
	Role    domain.StaffRole `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TenantID  string    `json:"tenant_id"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber int64                 `json:"ticket_number"`
	ServiceType  string                `json:"service_type"`
	Priority     domain.TicketPriority `json:"priority"`
	Scheduled    *time.Time            `json:"scheduled_time,omitempty"`
}

// TicketCompletedPayload carries what the customer notification needs.
type TicketCompletedPayload struct {
	TicketNumber  int64  `json:"ticket_number"`
	TechnicianID  string `json:"technician_id"`
	ServiceType   string `json:"service_type"`
	Vehicle       string `json:"vehicle"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

// TicketExclusionChangedPayload payload.
type TicketExclusionChangedPayload struct {
	Excluded bool  `json:"excluded"`
	Affected int64 `json:"affected,omitempty"`
}
