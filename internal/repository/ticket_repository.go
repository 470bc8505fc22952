package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopdesk/jobtickets/internal/domain"
)

// CompletedEdit captures the manager-editable fields of a completed ticket.
type CompletedEdit struct {
	Vehicle      string
	CustomerName string
	Notes        string
	CompletedAt  time.Time
}

// TicketRepository encapsulates ticket persistence. Every method is scoped
// to a tenant; rows of other tenants behave as missing.
type TicketRepository interface {
	// Create allocates the next ticket number and inserts the ticket in one
	// transaction. The tenant is taken from the creator's staff row.
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Ticket, error)
	ListPending(ctx context.Context, tenantID string) ([]domain.Ticket, error)
	// Complete stamps a pending ticket. When no pending row matched it returns
	// pgx.ErrNoRows (ErrNotFound is the same value, test with errors.Is); callers reload
	// the ticket to tell missing from already completed.
	Complete(ctx context.Context, tenantID, id, technicianID string, at time.Time) (*domain.Ticket, error)
	ToggleExclusion(ctx context.Context, tenantID, id string) (bool, error)
	ExcludeAllCompleted(ctx context.Context, tenantID string) (int64, error)
	ListCompleted(ctx context.Context, tenantID string, limit int) ([]domain.Ticket, error)
	ListCreatedBetween(ctx context.Context, tenantID string, from, to time.Time) ([]domain.Ticket, error)
	ListScheduledBetween(ctx context.Context, tenantID string, from, to time.Time) ([]domain.Ticket, error)
	UpdateCompleted(ctx context.Context, tenantID, id string, edit CompletedEdit) (*domain.Ticket, error)
	SoftDelete(ctx context.Context, tenantID, id string, at time.Time) error
	AverageCompletionMinutes(ctx context.Context, tenantID string, from, to time.Time) (*float64, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `
        t.id, t.tenant_id, t.ticket_number, t.service_type, t.priority, t.status, t.vehicle,
        t.service_data, t.notes, t.scheduled_time, t.customer_id, t.customer_name, t.customer_phone,
        t.created_by, t.completed_by, COALESCE(tech.name, ''), t.completed_at,
        t.excluded_from_metrics, t.deleted_at, t.created_at, t.updated_at`

const ticketSelect = `SELECT ` + ticketColumns + `
        FROM tickets t
        LEFT JOIN technicians tech ON tech.id = t.completed_by`

// queueSelect reads the active_queue view: pending, non-deleted tickets.
const queueSelect = `SELECT ` + ticketColumns + `
        FROM active_queue t
        LEFT JOIN technicians tech ON tech.id = t.completed_by`

func scanTicket(row pgx.Row) (domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(
		&t.ID,
		&t.TenantID,
		&t.TicketNumber,
		&t.ServiceType,
		&t.Priority,
		&t.Status,
		&t.Vehicle,
		&t.ServiceData,
		&t.Notes,
		&t.ScheduledTime,
		&t.CustomerID,
		&t.CustomerName,
		&t.CustomerPhone,
		&t.CreatedBy,
		&t.CompletedBy,
		&t.CompletedByName,
		&t.CompletedAt,
		&t.ExcludedFromMetrics,
		&t.DeletedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if t.ServiceData == nil {
		t.ServiceData = domain.ServiceData{}
	}
	return t, err
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const allocate = `
        INSERT INTO tenant_ticket_counters (tenant_id, last_number) VALUES ($1, 1)
        ON CONFLICT (tenant_id) DO UPDATE SET last_number = tenant_ticket_counters.last_number + 1
        RETURNING last_number`
	const insert = `
        INSERT INTO tickets (tenant_id, ticket_number, service_type, priority, status, vehicle, service_data, notes,
                             scheduled_time, customer_id, customer_name, customer_phone, created_by)
        SELECT s.tenant_id, $2, $3, $4, 'PENDING', $5, $6, $7, $8, $9, $10, $11, s.id
        FROM staff s
        WHERE s.id=$12 AND s.tenant_id=$1 AND s.active
        RETURNING id, tenant_id, status, created_at, updated_at`
	return inTenantTx(ctx, r.pool, ticket.TenantID, func(tx pgx.Tx) error {
		var number int64
		if err := tx.QueryRow(ctx, allocate, ticket.TenantID).Scan(&number); err != nil {
			return err
		}
		if ticket.ServiceData == nil {
			ticket.ServiceData = domain.ServiceData{}
		}
		if err := tx.QueryRow(ctx, insert,
			ticket.TenantID,
			number,
			ticket.ServiceType,
			ticket.Priority,
			ticket.Vehicle,
			ticket.ServiceData,
			ticket.Notes,
			ticket.ScheduledTime,
			ticket.CustomerID,
			ticket.CustomerName,
			ticket.CustomerPhone,
			ticket.CreatedBy,
		).Scan(&ticket.ID, &ticket.TenantID, &ticket.Status, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
			return err
		}
		ticket.TicketNumber = number
		return nil
	})
}

func (r *ticketRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		var err error
		ticket, err = scanTicket(tx.QueryRow(ctx, ticketSelect+`
        WHERE t.id=$1 AND t.tenant_id=$2 AND t.deleted_at IS NULL`, id, tenantID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) list(ctx context.Context, tenantID, query string, args ...any) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		tickets, err = collect(rows, func(rows pgx.Rows) (domain.Ticket, error) { return scanTicket(rows) })
		return err
	})
	return tickets, err
}

func (r *ticketRepository) ListPending(ctx context.Context, tenantID string) ([]domain.Ticket, error) {
	return r.list(ctx, tenantID, queueSelect+`
        WHERE t.tenant_id=$1
        ORDER BY t.created_at ASC`, tenantID)
}

func (r *ticketRepository) Complete(ctx context.Context, tenantID, id, technicianID string, at time.Time) (*domain.Ticket, error) {
	const update = `
        UPDATE tickets SET status='COMPLETED', completed_by=$3, completed_at=$4
        WHERE id=$1 AND tenant_id=$2 AND status='PENDING' AND deleted_at IS NULL
        RETURNING id`
	var ticket domain.Ticket
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		var updated string
		if err := tx.QueryRow(ctx, update, id, tenantID, technicianID, at).Scan(&updated); err != nil {
			return err
		}
		var err error
		ticket, err = scanTicket(tx.QueryRow(ctx, ticketSelect+` WHERE t.id=$1`, updated))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ToggleExclusion(ctx context.Context, tenantID, id string) (bool, error) {
	const query = `
        UPDATE tickets SET excluded_from_metrics = NOT excluded_from_metrics
        WHERE id=$1 AND tenant_id=$2 AND deleted_at IS NULL
        RETURNING excluded_from_metrics`
	var excluded bool
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, id, tenantID).Scan(&excluded)
	})
	return excluded, err
}

func (r *ticketRepository) ExcludeAllCompleted(ctx context.Context, tenantID string) (int64, error) {
	const query = `
        UPDATE tickets SET excluded_from_metrics = TRUE
        WHERE tenant_id=$1 AND status='COMPLETED' AND excluded_from_metrics = FALSE AND deleted_at IS NULL`
	var affected int64
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, query, tenantID)
		if err != nil {
			return err
		}
		affected = cmd.RowsAffected()
		return nil
	})
	return affected, err
}

func (r *ticketRepository) ListCompleted(ctx context.Context, tenantID string, limit int) ([]domain.Ticket, error) {
	return r.list(ctx, tenantID, ticketSelect+`
        WHERE t.tenant_id=$1 AND t.status='COMPLETED' AND t.deleted_at IS NULL
        ORDER BY t.completed_at DESC
        LIMIT $2`, tenantID, limit)
}

func (r *ticketRepository) ListCreatedBetween(ctx context.Context, tenantID string, from, to time.Time) ([]domain.Ticket, error) {
	return r.list(ctx, tenantID, ticketSelect+`
        WHERE t.tenant_id=$1 AND t.deleted_at IS NULL AND t.created_at >= $2 AND t.created_at < $3
        ORDER BY t.created_at ASC`, tenantID, from, to)
}

func (r *ticketRepository) ListScheduledBetween(ctx context.Context, tenantID string, from, to time.Time) ([]domain.Ticket, error) {
	return r.list(ctx, tenantID, ticketSelect+`
        WHERE t.tenant_id=$1 AND t.status='PENDING' AND t.deleted_at IS NULL
          AND t.scheduled_time >= $2 AND t.scheduled_time < $3
        ORDER BY t.scheduled_time ASC`, tenantID, from, to)
}

func (r *ticketRepository) UpdateCompleted(ctx context.Context, tenantID, id string, edit CompletedEdit) (*domain.Ticket, error) {
	const update = `
        UPDATE tickets SET vehicle=$3, customer_name=$4, notes=$5, completed_at=$6
        WHERE id=$1 AND tenant_id=$2 AND status='COMPLETED' AND deleted_at IS NULL
        RETURNING id`
	var ticket domain.Ticket
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		var updated string
		if err := tx.QueryRow(ctx, update, id, tenantID, edit.Vehicle, edit.CustomerName, edit.Notes, edit.CompletedAt).Scan(&updated); err != nil {
			return err
		}
		var err error
		ticket, err = scanTicket(tx.QueryRow(ctx, ticketSelect+` WHERE t.id=$1`, updated))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) SoftDelete(ctx context.Context, tenantID, id string, at time.Time) error {
	return inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `UPDATE tickets SET deleted_at=$3 WHERE id=$1 AND tenant_id=$2 AND deleted_at IS NULL`, id, tenantID, at)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
}

// AverageCompletionMinutes delegates to the average_completion_minutes SQL
// function. A nil result means no counted completions in the window.
func (r *ticketRepository) AverageCompletionMinutes(ctx context.Context, tenantID string, from, to time.Time) (*float64, error) {
	var avg *float64
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `SELECT average_completion_minutes($1, $2, $3)::float8`, tenantID, from, to).Scan(&avg)
	})
	return avg, err
}
