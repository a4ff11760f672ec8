package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relayworks/server/internal/domain/notifications"
)

var _ notifications.Repository = (*NotificationRepository)(nil)

type NotificationRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *NotificationRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *NotificationRepository) ListForUser(ctx context.Context, limit int) ([]notifications.Notification, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	const query = `
SELECT id, tenant_id, user_id, kind, payload, read_at, created_at
FROM notifications
WHERE tenant_id = $1 AND user_id = $2
ORDER BY created_at DESC
LIMIT $3`

	rows, err := r.queryer().Query(ctx, query, scope.TenantID, scope.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var items []notifications.Notification
	for rows.Next() {
		var n notifications.Notification
		if err := rows.Scan(&n.ID, &n.TenantID, &n.UserID, &n.Kind, &n.Payload, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("list notifications: %w", err)
		}
		n.ID = strings.TrimSpace(n.ID)
		items = append(items, n)
	}
	return items, rows.Err()
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	scope, err := requireScope(ctx)
	if err != nil {
		return err
	}

	const query = `
UPDATE notifications
SET read_at = now()
WHERE id = $1 AND tenant_id = $2 AND user_id = $3 AND read_at IS NULL`

	tag, err := r.queryer().Exec(ctx, query, id, scope.TenantID, scope.UserID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := r.queryer().QueryRow(ctx,
			`SELECT true FROM notifications WHERE id = $1 AND tenant_id = $2 AND user_id = $3`,
			id, scope.TenantID, scope.UserID).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return notifications.ErrNotFound
		}
		return err
	}
	return nil
}

// CreateBatch inserts rows produced by background jobs. It does not read
// the ambient scope: the tenant and user ids on each row come from the
// job's own resolution of channel membership.
func (r *NotificationRepository) CreateBatch(ctx context.Context, batch []notifications.Notification) error {
	if len(batch) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(batch))
	for _, n := range batch {
		rows = append(rows, []any{n.ID, n.TenantID, n.UserID, n.Kind, n.Payload})
	}

	_, err := r.queryer().CopyFrom(ctx,
		pgx.Identifier{"notifications"},
		[]string{"id", "tenant_id", "user_id", "kind", "payload"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("create notifications: %w", err)
	}
	return nil
}

// DeleteOlderThan is the retention sweep run by the cleanup job. Unscoped
// on purpose: it prunes across all tenants.
func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.queryer().Exec(ctx,
		`DELETE FROM notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
