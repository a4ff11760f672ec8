package projects

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound covers both a genuinely missing project and a project owned
// by another tenant: scoped queries narrow cross-tenant lookups to empty
// results rather than confirming existence.
var ErrNotFound = errors.New("project not found")

type Project struct {
	ID          string
	TenantID    string
	Name        string
	Description string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CreateParams struct {
	Name        string
	Description string
}

type UpdateParams struct {
	Name        *string
	Description *string
}

// Repository methods read the ambient scope from ctx and constrain every
// query to the scope's tenant. They fail without a scope; projects are
// never touched by unscoped background work.
type Repository interface {
	Create(ctx context.Context, project Project) (*Project, error)
	GetByID(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]Project, error)
	Update(ctx context.Context, id string, params UpdateParams) (*Project, error)
	Delete(ctx context.Context, id string) error
}
