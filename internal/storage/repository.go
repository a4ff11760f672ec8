// Package storage defines the aggregate persistence surface. Concrete
// implementations live in subpackages (postgres for relational data,
// rediskv for the token store and backplane).
package storage

import (
	"context"
	"errors"

	"github.com/relayworks/server/internal/domain/channels"
	"github.com/relayworks/server/internal/domain/notifications"
	"github.com/relayworks/server/internal/domain/projects"
	"github.com/relayworks/server/internal/domain/tasks"
	"github.com/relayworks/server/internal/domain/tenants"
	"github.com/relayworks/server/internal/domain/users"
)

// ErrNoScope is returned by tenant-scoped repository methods called
// without an ambient scope. Only the explicitly unscoped methods may run
// scopeless.
var ErrNoScope = errors.New("storage: tenant scope required")

// Repository groups data access by domain.
type Repository interface {
	Users() users.Repository
	Tenants() tenants.Repository
	Projects() projects.Repository
	Channels() channels.Repository
	Tasks() tasks.Repository
	Notifications() notifications.Repository

	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
}
