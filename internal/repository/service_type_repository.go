package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopdesk/jobtickets/internal/catalog"
)

// ServiceTypeRepository reads a tenant's custom service catalog.
type ServiceTypeRepository interface {
	ListByTenant(ctx context.Context, tenantID string) ([]catalog.ServiceType, error)
}

type serviceTypeRepository struct {
	pool *pgxpool.Pool
}

// NewServiceTypeRepository constructs repository.
func NewServiceTypeRepository(pool *pgxpool.Pool) ServiceTypeRepository {
	return &serviceTypeRepository{pool: pool}
}

// ListByTenant returns every service type of the tenant, inactive ones
// included, with fields in display order.
func (r *serviceTypeRepository) ListByTenant(ctx context.Context, tenantID string) ([]catalog.ServiceType, error) {
	const typesQuery = `
        SELECT id, slug, name, icon, display_order, scheduled, prefill_customer, summary_template, active
        FROM service_types WHERE tenant_id=$1
        ORDER BY display_order, slug`
	const fieldsQuery = `
        SELECT f.service_type_id, f.name, f.label, f.field_type, f.required, f.options, f.pattern, f.error_message, f.display_order
        FROM service_fields f
        JOIN service_types st ON st.id = f.service_type_id
        WHERE st.tenant_id=$1
        ORDER BY f.display_order, f.name`

	var types []catalog.ServiceType
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, typesQuery, tenantID)
		if err != nil {
			return err
		}
		types, err = collect(rows, func(rows pgx.Rows) (catalog.ServiceType, error) {
			var st catalog.ServiceType
			err := rows.Scan(&st.ID, &st.Slug, &st.Name, &st.Icon, &st.Order, &st.Scheduled, &st.PrefillCustomer, &st.Summary, &st.Active)
			return st, err
		})
		if err != nil || len(types) == 0 {
			return err
		}

		index := make(map[string]int, len(types))
		for i, st := range types {
			index[st.ID] = i
		}

		fieldRows, err := tx.Query(ctx, fieldsQuery, tenantID)
		if err != nil {
			return err
		}
		defer fieldRows.Close()
		for fieldRows.Next() {
			var typeID string
			var f catalog.Field
			if err := fieldRows.Scan(&typeID, &f.Name, &f.Label, &f.Type, &f.Required, &f.Options, &f.Pattern, &f.ErrorMessage, &f.Order); err != nil {
				return err
			}
			if i, ok := index[typeID]; ok {
				types[i].Fields = append(types[i].Fields, f)
			}
		}
		return fieldRows.Err()
	})
	return types, err
}
