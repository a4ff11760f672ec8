package tenants

import (
	"context"
	"errors"

	"github.com/relayworks/server/internal/tenant"
)

var ErrForbidden = errors.New("insufficient role")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id string) (*Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Membership(ctx context.Context, userID, tenantID string) (*Membership, error) {
	return s.repo.GetMembership(ctx, userID, tenantID)
}

// AddMember grants a user membership of the caller's tenant. Admin role
// required; nobody can grant a role above their own.
func (s *Service) AddMember(ctx context.Context, userID, role string) error {
	scope := tenant.MustFromContext(ctx)
	if !tenant.RoleAtLeast(scope.Role, tenant.RoleAdmin) {
		return ErrForbidden
	}
	if !tenant.RoleAtLeast(scope.Role, role) {
		return ErrForbidden
	}
	return s.repo.AddMember(ctx, Membership{
		UserID:   userID,
		TenantID: scope.TenantID,
		Role:     role,
	})
}

// RemoveMember drops a membership from the caller's tenant. Admin role
// required; owners cannot be removed this way.
func (s *Service) RemoveMember(ctx context.Context, userID string) error {
	scope := tenant.MustFromContext(ctx)
	if !tenant.RoleAtLeast(scope.Role, tenant.RoleAdmin) {
		return ErrForbidden
	}
	existing, err := s.repo.GetMembership(ctx, userID, scope.TenantID)
	if err != nil {
		return err
	}
	if existing.Role == tenant.RoleOwner {
		return ErrForbidden
	}
	return s.repo.RemoveMember(ctx, userID, scope.TenantID)
}
