package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relayworks/server/internal/domain/tenants"
)

var _ tenants.Repository = (*TenantRepository)(nil)

type TenantRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *TenantRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*tenants.Tenant, error) {
	const query = `SELECT id, name, created_at FROM tenants WHERE id = $1`

	var workspace tenants.Tenant
	err := r.queryer().QueryRow(ctx, query, id).Scan(&workspace.ID, &workspace.Name, &workspace.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tenants.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &workspace, nil
}

func (r *TenantRepository) AddMember(ctx context.Context, membership tenants.Membership) error {
	const query = `
INSERT INTO tenant_memberships (user_id, tenant_id, role)
VALUES ($1, $2, $3)`

	if _, err := r.queryer().Exec(ctx, query, membership.UserID, membership.TenantID, membership.Role); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return tenants.ErrMemberExists
		}
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (r *TenantRepository) GetMembership(ctx context.Context, userID, tenantID string) (*tenants.Membership, error) {
	const query = `
SELECT user_id, tenant_id, role, created_at
FROM tenant_memberships
WHERE user_id = $1 AND tenant_id = $2`

	return scanMembership(r.queryer().QueryRow(ctx, query, userID, tenantID))
}

func (r *TenantRepository) GetPrimaryMembership(ctx context.Context, userID string) (*tenants.Membership, error) {
	const query = `
SELECT user_id, tenant_id, role, created_at
FROM tenant_memberships
WHERE user_id = $1
ORDER BY created_at ASC
LIMIT 1`

	return scanMembership(r.queryer().QueryRow(ctx, query, userID))
}

func (r *TenantRepository) RemoveMember(ctx context.Context, userID, tenantID string) error {
	const query = `DELETE FROM tenant_memberships WHERE user_id = $1 AND tenant_id = $2`

	tag, err := r.queryer().Exec(ctx, query, userID, tenantID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tenants.ErrNotMember
	}
	return nil
}

func scanMembership(row pgx.Row) (*tenants.Membership, error) {
	var membership tenants.Membership
	err := row.Scan(&membership.UserID, &membership.TenantID, &membership.Role, &membership.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tenants.ErrNotMember
	}
	if err != nil {
		return nil, fmt.Errorf("scan membership: %w", err)
	}
	return &membership, nil
}
