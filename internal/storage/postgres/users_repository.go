package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relayworks/server/internal/domain/ids"
	"github.com/relayworks/server/internal/domain/tenants"
	"github.com/relayworks/server/internal/domain/users"
	"github.com/relayworks/server/internal/tenant"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *UserRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

const userColumns = `id, email, name, password_hash, email_verified, created_at`

func scanUser(row pgx.Row) (*users.User, error) {
	var user users.User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.EmailVerified, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

// CreateWithTenant runs the whole signup write in one transaction: user,
// auto-created tenant, owner membership.
func (r *UserRepository) CreateWithTenant(ctx context.Context, record users.SignupRecord) (*users.User, *tenants.Tenant, error) {
	if r.tx != nil {
		return r.createWithTenant(ctx, r.tx, record)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("signup: begin tx: %w", err)
	}
	user, workspace, err := r.createWithTenant(ctx, tx, record)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("signup: commit: %w", err)
	}
	return user, workspace, nil
}

func (r *UserRepository) createWithTenant(ctx context.Context, tx pgx.Tx, record users.SignupRecord) (*users.User, *tenants.Tenant, error) {
	const insertUser = `
INSERT INTO users (id, email, name, password_hash, email_verified, verification_token)
VALUES ($1, $2, $3, $4, false, $5)
RETURNING ` + userColumns

	user, err := scanUser(tx.QueryRow(ctx, insertUser,
		record.User.ID, record.User.Email, record.User.Name, record.User.PasswordHash, record.VerificationToken))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, nil, users.ErrEmailTaken
		}
		return nil, nil, fmt.Errorf("signup: insert user: %w", err)
	}

	const insertTenant = `
INSERT INTO tenants (id, name)
VALUES ($1, $2)
RETURNING id, name, created_at`

	var workspace tenants.Tenant
	if err := tx.QueryRow(ctx, insertTenant, ids.NewUUID(), record.TenantName).
		Scan(&workspace.ID, &workspace.Name, &workspace.CreatedAt); err != nil {
		return nil, nil, fmt.Errorf("signup: insert tenant: %w", err)
	}

	const insertMembership = `
INSERT INTO tenant_memberships (user_id, tenant_id, role)
VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, insertMembership, user.ID, workspace.ID, tenant.RoleOwner); err != nil {
		return nil, nil, fmt.Errorf("signup: insert membership: %w", err)
	}

	return user, &workspace, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.queryer().QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*users.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.queryer().QueryRow(ctx, query, id))
}

// VerifyEmail consumes the token: it only matches once, so a replayed link
// is indistinguishable from a bad one.
func (r *UserRepository) VerifyEmail(ctx context.Context, token string) (*users.User, error) {
	const query = `
UPDATE users
SET email_verified = true, verification_token = NULL
WHERE verification_token = $1
RETURNING ` + userColumns

	user, err := scanUser(r.queryer().QueryRow(ctx, query, token))
	if errors.Is(err, users.ErrNotFound) {
		return nil, users.ErrInvalidVerifyToken
	}
	return user, err
}
