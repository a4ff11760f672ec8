package tenants

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("tenant not found")
	ErrNotMember    = errors.New("not a member of tenant")
	ErrMemberExists = errors.New("membership already exists")
)

type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Membership is the authoritative record of "user X belongs to tenant Y
// with role R". Created at signup or invitation acceptance, deleted on
// member removal.
type Membership struct {
	UserID    string
	TenantID  string
	Role      string
	CreatedAt time.Time
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*Tenant, error)
	AddMember(ctx context.Context, membership Membership) error
	GetMembership(ctx context.Context, userID, tenantID string) (*Membership, error)
	// GetPrimaryMembership returns the user's earliest membership, which
	// is the tenant a login binds its tokens to.
	GetPrimaryMembership(ctx context.Context, userID string) (*Membership, error)
	RemoveMember(ctx context.Context, userID, tenantID string) error
}
