package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopdesk/jobtickets/internal/domain"
)

// StaffRepository manages staff and their paired technician profiles.
type StaffRepository interface {
	// GetByCode finds staff by login code in any tenant.
	GetByCode(ctx context.Context, code string) (*domain.Staff, error)
	// LookupActive returns the active staff row for id in any tenant.
	LookupActive(ctx context.Context, id string) (*domain.Staff, error)
	GetByID(ctx context.Context, tenantID, id string) (*domain.Staff, error)
	GetActiveByEmail(ctx context.Context, tenantID, email string) (*domain.Staff, error)
	ListMembers(ctx context.Context, tenantID string) ([]domain.RosterMember, error)
	CodeInUse(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, staff *domain.Staff, withTechnician bool) error
	UpdateCode(ctx context.Context, tenantID, id, code string) error
	Rename(ctx context.Context, tenantID, id, name string) error
	SetActive(ctx context.Context, tenantID, id string, active bool) error
	GetTechnicianByStaff(ctx context.Context, tenantID, staffID string) (*domain.Technician, error)
	ListTechnicians(ctx context.Context, tenantID string) ([]domain.Technician, error)
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository constructs repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffRepository {
	return &staffRepository{pool: pool}
}

const staffColumns = `id, tenant_id, id_code, name, email, role, active, created_at, updated_at`

func scanStaff(row pgx.Row) (*domain.Staff, error) {
	var s domain.Staff
	if err := row.Scan(
		&s.ID,
		&s.TenantID,
		&s.Code,
		&s.Name,
		&s.Email,
		&s.Role,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *staffRepository) GetByCode(ctx context.Context, code string) (*domain.Staff, error) {
	const query = `SELECT ` + staffColumns + ` FROM staff WHERE id_code=$1`
	return scanStaff(r.pool.QueryRow(ctx, query, domain.NormalizeCode(code)))
}

func (r *staffRepository) LookupActive(ctx context.Context, id string) (*domain.Staff, error) {
	const query = `SELECT ` + staffColumns + ` FROM lookup_my_staff($1)`
	return scanStaff(r.pool.QueryRow(ctx, query, id))
}

func (r *staffRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Staff, error) {
	var staff *domain.Staff
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		var err error
		staff, err = scanStaff(tx.QueryRow(ctx, `SELECT `+staffColumns+` FROM staff WHERE id=$1 AND tenant_id=$2`, id, tenantID))
		return err
	})
	return staff, err
}

func (r *staffRepository) GetActiveByEmail(ctx context.Context, tenantID, email string) (*domain.Staff, error) {
	const query = `
        SELECT ` + staffColumns + ` FROM staff
        WHERE tenant_id=$1 AND LOWER(email)=$2 AND active
        ORDER BY created_at LIMIT 1`
	var staff *domain.Staff
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		var err error
		staff, err = scanStaff(tx.QueryRow(ctx, query, tenantID, strings.ToLower(strings.TrimSpace(email))))
		return err
	})
	return staff, err
}

func (r *staffRepository) ListMembers(ctx context.Context, tenantID string) ([]domain.RosterMember, error) {
	const query = `
        SELECT s.id, s.tenant_id, s.id_code, s.name, s.email, s.role, s.active, s.created_at, s.updated_at,
               t.id, t.active
        FROM staff s
        LEFT JOIN technicians t ON t.staff_id = s.id
        WHERE s.tenant_id=$1
        ORDER BY s.active DESC, s.name ASC`
	var members []domain.RosterMember
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, tenantID)
		if err != nil {
			return err
		}
		members, err = collect(rows, func(rows pgx.Rows) (domain.RosterMember, error) {
			var m domain.RosterMember
			err := rows.Scan(
				&m.ID,
				&m.TenantID,
				&m.Code,
				&m.Name,
				&m.Email,
				&m.Role,
				&m.Active,
				&m.CreatedAt,
				&m.UpdatedAt,
				&m.TechnicianID,
				&m.TechnicianActive,
			)
			return m, err
		})
		return err
	})
	return members, err
}

// CodeInUse checks every tenant; login codes are globally unique.
func (r *staffRepository) CodeInUse(ctx context.Context, code, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM staff WHERE id_code=$1 AND ($2 = '' OR id::text <> $2))`
	var exists bool
	err := r.pool.QueryRow(ctx, query, domain.NormalizeCode(code), excludeID).Scan(&exists)
	return exists, err
}

func (r *staffRepository) Create(ctx context.Context, staff *domain.Staff, withTechnician bool) error {
	err := inTenantTx(ctx, r.pool, staff.TenantID, func(tx pgx.Tx) error {
		const insertStaff = `
            INSERT INTO staff (tenant_id, id_code, name, email, role, active)
            VALUES ($1,$2,$3,$4,$5,TRUE)
            RETURNING id, active, created_at, updated_at`
		if err := tx.QueryRow(ctx, insertStaff,
			staff.TenantID,
			domain.NormalizeCode(staff.Code),
			staff.Name,
			staff.Email,
			staff.Role,
		).Scan(&staff.ID, &staff.Active, &staff.CreatedAt, &staff.UpdatedAt); err != nil {
			return err
		}
		if !withTechnician {
			return nil
		}
		_, err := tx.Exec(ctx, `INSERT INTO technicians (tenant_id, staff_id, name, active) VALUES ($1,$2,$3,TRUE)`,
			staff.TenantID, staff.ID, staff.Name)
		return err
	})
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	staff.Code = domain.NormalizeCode(staff.Code)
	return err
}

func (r *staffRepository) UpdateCode(ctx context.Context, tenantID, id, code string) error {
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `UPDATE staff SET id_code=$1, updated_at=NOW() WHERE id=$2 AND tenant_id=$3`,
			domain.NormalizeCode(code), id, tenantID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *staffRepository) Rename(ctx context.Context, tenantID, id, name string) error {
	return inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `UPDATE staff SET name=$1, updated_at=NOW() WHERE id=$2 AND tenant_id=$3`, name, id, tenantID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		_, err = tx.Exec(ctx, `UPDATE technicians SET name=$1 WHERE staff_id=$2 AND tenant_id=$3`, name, id, tenantID)
		return err
	})
}

func (r *staffRepository) SetActive(ctx context.Context, tenantID, id string, active bool) error {
	return inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `UPDATE staff SET active=$1, updated_at=NOW() WHERE id=$2 AND tenant_id=$3`, active, id, tenantID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		_, err = tx.Exec(ctx, `UPDATE technicians SET active=$1 WHERE staff_id=$2 AND tenant_id=$3`, active, id, tenantID)
		return err
	})
}

const technicianColumns = `id, tenant_id, staff_id, name, active, created_at`

func scanTechnician(row pgx.Row) (domain.Technician, error) {
	var t domain.Technician
	err := row.Scan(&t.ID, &t.TenantID, &t.StaffID, &t.Name, &t.Active, &t.CreatedAt)
	return t, err
}

func (r *staffRepository) GetTechnicianByStaff(ctx context.Context, tenantID, staffID string) (*domain.Technician, error) {
	var tech domain.Technician
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		var err error
		tech, err = scanTechnician(tx.QueryRow(ctx,
			`SELECT `+technicianColumns+` FROM technicians WHERE staff_id=$1 AND tenant_id=$2`, staffID, tenantID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &tech, nil
}

func (r *staffRepository) ListTechnicians(ctx context.Context, tenantID string) ([]domain.Technician, error) {
	var techs []domain.Technician
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+technicianColumns+` FROM technicians WHERE tenant_id=$1 ORDER BY name`, tenantID)
		if err != nil {
			return err
		}
		techs, err = collect(rows, func(rows pgx.Rows) (domain.Technician, error) { return scanTechnician(rows) })
		return err
	})
	return techs, err
}
