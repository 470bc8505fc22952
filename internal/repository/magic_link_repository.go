package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MagicLink is a one-time sign-in link. Only a bcrypt hash of the secret is
// stored.
type MagicLink struct {
	ID         string
	TenantID   string
	StaffID    string
	SecretHash string
	ExpiresAt  time.Time
	UsedAt     *time.Time
	CreatedAt  time.Time
}

// MagicLinkRepository manages magic link persistence.
type MagicLinkRepository interface {
	Create(ctx context.Context, link *MagicLink) error
	GetByID(ctx context.Context, tenantID, id string) (*MagicLink, error)
	// MarkUsed consumes the link. It returns ErrNotFound when the link was
	// already used.
	MarkUsed(ctx context.Context, tenantID, id string, at time.Time) error
}

type magicLinkRepository struct {
	pool *pgxpool.Pool
}

// NewMagicLinkRepository constructs repository.
func NewMagicLinkRepository(pool *pgxpool.Pool) MagicLinkRepository {
	return &magicLinkRepository{pool: pool}
}

func (r *magicLinkRepository) Create(ctx context.Context, link *MagicLink) error {
	const query = `
        INSERT INTO magic_links (tenant_id, staff_id, secret_hash, expires_at)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return inTenantTx(ctx, r.pool, link.TenantID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query,
			link.TenantID,
			link.StaffID,
			link.SecretHash,
			link.ExpiresAt,
		).Scan(&link.ID, &link.CreatedAt)
	})
}

func (r *magicLinkRepository) GetByID(ctx context.Context, tenantID, id string) (*MagicLink, error) {
	const query = `
        SELECT id, tenant_id, staff_id, secret_hash, expires_at, used_at, created_at
        FROM magic_links WHERE id=$1 AND tenant_id=$2`
	var link MagicLink
	err := inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, id, tenantID).Scan(
			&link.ID,
			&link.TenantID,
			&link.StaffID,
			&link.SecretHash,
			&link.ExpiresAt,
			&link.UsedAt,
			&link.CreatedAt,
		)
	})
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *magicLinkRepository) MarkUsed(ctx context.Context, tenantID, id string, at time.Time) error {
	const query = `
        UPDATE magic_links SET used_at=$3
        WHERE id=$1 AND tenant_id=$2 AND used_at IS NULL`
	return inTenantTx(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, query, id, tenantID, at)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
}
