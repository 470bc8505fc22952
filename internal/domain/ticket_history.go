package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeCreated   TicketChangeType = "CREATED"
	ChangeTypeCompleted TicketChangeType = "COMPLETED"
	ChangeTypeExclusion TicketChangeType = "EXCLUSION_CHANGE"
	ChangeTypeEdited    TicketChangeType = "EDITED"
	ChangeTypeDeleted   TicketChangeType = "DELETED"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID          string
	TenantID    string
	TicketID    string
	ChangedByID string
	ChangeType  TicketChangeType
	OldValue    map[string]any
	NewValue    map[string]any
	CreatedAt   time.Time
}
