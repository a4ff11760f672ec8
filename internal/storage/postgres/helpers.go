package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/relayworks/server/internal/storage"
	"github.com/relayworks/server/internal/tenant"
)

// queryer abstracts pool vs. open transaction.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// requireScope extracts the ambient tenant scope for scoped queries.
// Tenant-scoped methods hard-fail without one: the trusted escape hatch is
// the explicitly unscoped methods, not a silently widened query.
func requireScope(ctx context.Context) (tenant.Scope, error) {
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		return tenant.Scope{}, storage.ErrNoScope
	}
	return scope, nil
}
