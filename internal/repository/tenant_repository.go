package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopdesk/jobtickets/internal/domain"
)

// TenantRepository reads business accounts. Tenants are public routing data
// and are not row-level scoped.
type TenantRepository interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	ListActive(ctx context.Context) ([]domain.Tenant, error)
}

type tenantRepository struct {
	pool *pgxpool.Pool
}

// NewTenantRepository constructs repository.
func NewTenantRepository(pool *pgxpool.Pool) TenantRepository {
	return &tenantRepository{pool: pool}
}

const tenantColumns = `id, slug, name, logo_url, primary_color, secondary_color, timezone, active, created_at`

func scanTenant(row pgx.Row) (domain.Tenant, error) {
	var t domain.Tenant
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.LogoURL, &t.PrimaryColor, &t.SecondaryColor, &t.Timezone, &t.Active, &t.CreatedAt)
	return t, err
}

func (r *tenantRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	t, err := scanTenant(r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug=$1`, slug))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	t, err := scanTenant(r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tenantRepository) ListActive(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE active ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(rows pgx.Rows) (domain.Tenant, error) { return scanTenant(rows) })
}
