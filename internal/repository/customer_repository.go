package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopdesk/jobtickets/internal/domain"
)

// CustomerRepository stores repeat customers keyed by normalized phone.
type CustomerRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*domain.Customer, error)
	GetByPhone(ctx context.Context, tenantID, phoneKey string) (*domain.Customer, error)
	// Create returns ErrDuplicate when the phone is already on file.
	Create(ctx context.Context, customer *domain.Customer) error
	UpdateLastVehicle(ctx context.Context, tenantID, id, vehicle string) error
	Search(ctx context.Context, tenantID, nameQuery, phoneDigits string, limit int) ([]domain.CustomerSearchResult, error)
}

type customerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository constructs repository.
func NewCustomerRepository(pool *pgxpool.Pool) CustomerRepository {
	return &customerRepository{pool: pool}
}

const customerColumns = `id, tenant_id, name, phone_raw, phone_normalized, last_vehicle_text, created_at, updated_at`

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.PhoneRaw, &c.PhoneNormalized, &c.LastVehicle, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *customerRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Customer, error) {
	var customer *domain.Customer
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		var err error
		customer, err = scanCustomer(tx.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1 AND tenant_id=$2`, id, tenantID))
		return err
	})
	return customer, err
}

func (r *customerRepository) GetByPhone(ctx context.Context, tenantID, phoneKey string) (*domain.Customer, error) {
	var customer *domain.Customer
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		var err error
		customer, err = scanCustomer(tx.QueryRow(ctx,
			`SELECT `+customerColumns+` FROM customers WHERE tenant_id=$1 AND phone_normalized=$2`, tenantID, phoneKey))
		return err
	})
	return customer, err
}

func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	const query = `
        INSERT INTO customers (tenant_id, name, phone_raw, phone_normalized, last_vehicle_text)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	err := inTenantTx(ctx, r.pool, customer.TenantID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query,
			customer.TenantID,
			customer.Name,
			customer.PhoneRaw,
			customer.PhoneNormalized,
			customer.LastVehicle,
		).Scan(&customer.ID, &customer.CreatedAt, &customer.UpdatedAt)
	})
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *customerRepository) UpdateLastVehicle(ctx context.Context, tenantID, id, vehicle string) error {
	return inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx,
			`UPDATE customers SET last_vehicle_text=$1, updated_at=NOW() WHERE id=$2 AND tenant_id=$3`, vehicle, id, tenantID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
}

// Search matches names case-insensitively, or normalized phones when
// phoneDigits is set. Visit counts skip soft-deleted tickets.
func (r *customerRepository) Search(ctx context.Context, tenantID, nameQuery, phoneDigits string, limit int) ([]domain.CustomerSearchResult, error) {
	const query = `
        SELECT c.id, c.tenant_id, c.name, c.phone_raw, c.phone_normalized, c.last_vehicle_text, c.created_at, c.updated_at,
               COUNT(t.id) AS total_visits, MAX(t.created_at) AS last_visit
        FROM customers c
        LEFT JOIN tickets t ON t.customer_id = c.id AND t.deleted_at IS NULL
        WHERE c.tenant_id=$1
          AND (c.name ILIKE '%' || $2 || '%' OR ($3 <> '' AND c.phone_normalized LIKE '%' || $3 || '%'))
        GROUP BY c.id
        ORDER BY MAX(t.created_at) DESC NULLS LAST, c.name ASC
        LIMIT $4`
	var results []domain.CustomerSearchResult
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, tenantID, nameQuery, phoneDigits, limit)
		if err != nil {
			return err
		}
		results, err = collect(rows, func(rows pgx.Rows) (domain.CustomerSearchResult, error) {
			var res domain.CustomerSearchResult
			var lastVisit *time.Time
			err := rows.Scan(
				&res.ID,
				&res.TenantID,
				&res.Name,
				&res.PhoneRaw,
				&res.PhoneNormalized,
				&res.LastVehicle,
				&res.CreatedAt,
				&res.UpdatedAt,
				&res.TotalVisits,
				&lastVisit,
			)
			res.LastVisit = lastVisit
			return res, err
		})
		return err
	})
	return results, err
}
