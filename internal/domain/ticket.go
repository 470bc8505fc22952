package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending   TicketStatus = "PENDING"
	TicketStatusCompleted TicketStatus = "COMPLETED"
)

// TicketPriority orders work in the queue.
type TicketPriority string

const (
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityNormal TicketPriority = "NORMAL"
	TicketPriorityLow    TicketPriority = "LOW"
)

// PriorityOrder is the presentation order of queue groups.
var PriorityOrder = []TicketPriority{TicketPriorityHigh, TicketPriorityNormal, TicketPriorityLow}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityHigh, TicketPriorityNormal, TicketPriorityLow:
		return true
	}
	return false
}

// ServiceData is the service-specific payload of a ticket. Its shape depends
// on the ticket's service type.
type ServiceData map[string]any

// Ticket is the central work item.
type Ticket struct {
	ID                  string
	TenantID            string
	TicketNumber        int64
	ServiceType         string
	Priority            TicketPriority
	Status              TicketStatus
	Vehicle             string
	ServiceData         ServiceData
	Notes               string
	ScheduledTime       *time.Time
	CustomerID          *string
	CustomerName        string
	CustomerPhone       string
	CreatedBy           string
	CompletedBy         *string
	CompletedByName     string
	CompletedAt         *time.Time
	ExcludedFromMetrics bool
	DeletedAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusPending:   {TicketStatusCompleted},
	TicketStatusCompleted: {},
}

// CanTransition reports whether a ticket may move from one status to another.
func CanTransition(from, to TicketStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Complete stamps the ticket as completed by technicianID. The completer and
// completion time are always set together.
func (t *Ticket) Complete(technicianID string, at time.Time) error {
	if !CanTransition(t.Status, TicketStatusCompleted) {
		return ErrAlreadyCompleted
	}
	t.Status = TicketStatusCompleted
	t.CompletedBy = &technicianID
	t.CompletedAt = &at
	return nil
}

// Consistent reports whether the completion stamp matches the status.
func (t *Ticket) Consistent() bool {
	stamped := t.CompletedBy != nil && t.CompletedAt != nil
	unstamped := t.CompletedBy == nil && t.CompletedAt == nil
	switch t.Status {
	case TicketStatusCompleted:
		return stamped
	case TicketStatusPending:
		return unstamped
	}
	return false
}

// CountsTowardMetrics reports whether the ticket participates in KPI math.
func (t *Ticket) CountsTowardMetrics() bool {
	return !t.ExcludedFromMetrics && t.DeletedAt == nil
}

// CompletionMinutes returns the minutes between creation and completion.
func (t *Ticket) CompletionMinutes() (float64, bool) {
	if t.CompletedAt == nil {
		return 0, false
	}
	return t.CompletedAt.Sub(t.CreatedAt).Minutes(), true
}

// IsUpcoming reports whether the ticket is scheduled for later than now.
func (t *Ticket) IsUpcoming(now time.Time) bool {
	return t.ScheduledTime != nil && t.ScheduledTime.After(now)
}
