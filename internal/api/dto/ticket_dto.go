package dto

import (
	"time"

	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/service"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	ServiceType   string                `json:"service_type"`
	Priority      domain.TicketPriority `json:"priority"`
	Vehicle       string                `json:"vehicle"`
	Notes         string                `json:"notes"`
	ServiceData   map[string]any        `json:"service_data"`
	CustomerID    *string               `json:"customer_id"`
	CustomerName  string                `json:"customer_name"`
	CustomerPhone string                `json:"customer_phone"`
	ScheduledDate string                `json:"scheduled_date"`
	ScheduledTime string                `json:"scheduled_time"`
}

// ConfirmRequest carries the explicit confirmation of a consequential action.
type ConfirmRequest struct {
	Confirm bool `json:"confirm"`
}

// EditCompletedRequest payload.
type EditCompletedRequest struct {
	Vehicle      *string    `json:"vehicle"`
	CustomerName *string    `json:"customer_name"`
	Notes        *string    `json:"notes"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// TicketResponse is a ticket as clients see it.
type TicketResponse struct {
	ID                  string                `json:"id"`
	TicketNumber        int64                 `json:"ticket_number"`
	ServiceType         string                `json:"service_type"`
	Priority            domain.TicketPriority `json:"priority"`
	Status              domain.TicketStatus   `json:"status"`
	Vehicle             string                `json:"vehicle"`
	ServiceData         map[string]any        `json:"service_data"`
	Notes               string                `json:"notes,omitempty"`
	ScheduledTime       *time.Time            `json:"scheduled_time,omitempty"`
	CustomerID          *string               `json:"customer_id,omitempty"`
	CustomerName        string                `json:"customer_name"`
	CustomerPhone       string                `json:"customer_phone"`
	CreatedBy           string                `json:"created_by"`
	CompletedBy         *string               `json:"completed_by,omitempty"`
	CompletedByName     string                `json:"completed_by_name,omitempty"`
	CompletedAt         *time.Time            `json:"completed_at,omitempty"`
	ExcludedFromMetrics bool                  `json:"excluded_from_metrics"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// Ticket maps a domain ticket.
func Ticket(t *domain.Ticket) TicketResponse {
	data := map[string]any(t.ServiceData)
	if data == nil {
		data = map[string]any{}
	}
	return TicketResponse{
		ID:                  t.ID,
		TicketNumber:        t.TicketNumber,
		ServiceType:         t.ServiceType,
		Priority:            t.Priority,
		Status:              t.Status,
		Vehicle:             t.Vehicle,
		ServiceData:         data,
		Notes:               t.Notes,
		ScheduledTime:       t.ScheduledTime,
		CustomerID:          t.CustomerID,
		CustomerName:        t.CustomerName,
		CustomerPhone:       t.CustomerPhone,
		CreatedBy:           t.CreatedBy,
		CompletedBy:         t.CompletedBy,
		CompletedByName:     t.CompletedByName,
		CompletedAt:         t.CompletedAt,
		ExcludedFromMetrics: t.ExcludedFromMetrics,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

// Tickets maps a list of tickets.
func Tickets(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, Ticket(&tickets[i]))
	}
	return out
}

// QueueItemResponse is one queue card.
type QueueItemResponse struct {
	Ticket         TicketResponse `json:"ticket"`
	ServiceLabel   string         `json:"service_label"`
	Summary        string         `json:"summary"`
	MinutesWaiting int            `json:"minutes_waiting"`
	Waiting        string         `json:"waiting"`
}

// QueueGroupResponse holds one priority lane.
type QueueGroupResponse struct {
	Priority domain.TicketPriority `json:"priority"`
	Items    []QueueItemResponse   `json:"items"`
}

// QueueResponse is the live queue.
type QueueResponse struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Total       int                  `json:"total"`
	Groups      []QueueGroupResponse `json:"groups"`
	Upcoming    []QueueItemResponse  `json:"upcoming"`
}

// Queue maps a queue snapshot.
func Queue(snap *service.QueueSnapshot) QueueResponse {
	resp := QueueResponse{
		GeneratedAt: snap.GeneratedAt,
		Total:       snap.Total,
		Groups:      make([]QueueGroupResponse, 0, len(snap.Groups)),
		Upcoming:    queueItems(snap.Upcoming),
	}
	for _, g := range snap.Groups {
		resp.Groups = append(resp.Groups, QueueGroupResponse{Priority: g.Priority, Items: queueItems(g.Items)})
	}
	return resp
}

func queueItems(items []service.QueueItem) []QueueItemResponse {
	out := make([]QueueItemResponse, 0, len(items))
	for i := range items {
		out = append(out, QueueItemResponse{
			Ticket:         Ticket(&items[i].Ticket),
			ServiceLabel:   items[i].ServiceLabel,
			Summary:        items[i].Summary,
			MinutesWaiting: items[i].MinutesWaiting,
			Waiting:        items[i].Waiting,
		})
	}
	return out
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID          string                  `json:"id"`
	ChangedByID string                  `json:"changed_by"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	OldValue    map[string]any          `json:"old_value,omitempty"`
	NewValue    map[string]any          `json:"new_value,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// History maps audit entries.
func History(entries []domain.TicketHistory) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, HistoryResponse{
			ID:          h.ID,
			ChangedByID: h.ChangedByID,
			ChangeType:  h.ChangeType,
			OldValue:    h.OldValue,
			NewValue:    h.NewValue,
			CreatedAt:   h.CreatedAt,
		})
	}
	return out
}

// CustomerResponse is a customer search hit.
type CustomerResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	LastVehicle string     `json:"last_vehicle,omitempty"`
	TotalVisits int        `json:"total_visits"`
	LastVisit   *time.Time `json:"last_visit,omitempty"`
}

// Customers maps search results.
func Customers(results []domain.CustomerSearchResult) []CustomerResponse {
	out := make([]CustomerResponse, 0, len(results))
	for _, r := range results {
		out = append(out, CustomerResponse{
			ID:          r.ID,
			Name:        r.Name,
			Phone:       r.PhoneRaw,
			LastVehicle: r.LastVehicle,
			TotalVisits: r.TotalVisits,
			LastVisit:   r.LastVisit,
		})
	}
	return out
}
