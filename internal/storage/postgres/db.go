package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relayworks/server/internal/domain/channels"
	"github.com/relayworks/server/internal/domain/notifications"
	"github.com/relayworks/server/internal/domain/projects"
	"github.com/relayworks/server/internal/domain/tasks"
	"github.com/relayworks/server/internal/domain/tenants"
	"github.com/relayworks/server/internal/domain/users"
	"github.com/relayworks/server/internal/storage"
)

type Repository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Users() users.Repository {
	return &UserRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Tenants() tenants.Repository {
	return &TenantRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Projects() projects.Repository {
	return &ProjectRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Channels() channels.Repository {
	return &ChannelRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Tasks() tasks.Repository {
	return &TaskRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Notifications() notifications.Repository {
	return &NotificationRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, storage.Repository) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	wrapped := &Repository{pool: r.pool, tx: tx}
	if err := fn(ctx, wrapped); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var _ storage.Repository = (*Repository)(nil)
