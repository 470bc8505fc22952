package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopdesk/jobtickets/internal/domain"
)

// TicketHistoryRepository stores audit entries.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, tenantID, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (tenant_id, ticket_id, changed_by, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return inTenantTx(ctx, r.pool, history.TenantID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query,
			history.TenantID,
			history.TicketID,
			history.ChangedByID,
			history.ChangeType,
			history.OldValue,
			history.NewValue,
		).Scan(&history.ID, &history.CreatedAt)
	})
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, tenantID, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, tenant_id, ticket_id, changed_by, change_type, old_value, new_value, created_at
        FROM ticket_history WHERE tenant_id=$1 AND ticket_id=$2 ORDER BY created_at ASC`
	var result []domain.TicketHistory
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, tenantID, ticketID)
		if err != nil {
			return err
		}
		result, err = collect(rows, func(rows pgx.Rows) (domain.TicketHistory, error) {
			var history domain.TicketHistory
			err := rows.Scan(
				&history.ID,
				&history.TenantID,
				&history.TicketID,
				&history.ChangedByID,
				&history.ChangeType,
				&history.OldValue,
				&history.NewValue,
				&history.CreatedAt,
			)
			return history, err
		})
		return err
	})
	return result, err
}
