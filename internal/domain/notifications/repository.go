package notifications

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("notification not found")

type Notification struct {
	ID        string
	TenantID  string
	UserID    string
	Kind      string
	Payload   []byte
	ReadAt    *time.Time
	CreatedAt time.Time
}

// Repository splits scoped reads from the unscoped writes used by
// background jobs. CreateBatch and DeleteOlderThan run without an ambient
// scope: they are the trusted escape hatch, fed only by server-derived
// identifiers, never by tenant-supplied input.
type Repository interface {
	ListForUser(ctx context.Context, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id string) error

	CreateBatch(ctx context.Context, batch []Notification) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
