package tenants

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayworks/server/internal/tenant"
)

type fakeRepo struct {
	tenants     map[string]Tenant
	memberships map[string]Membership // userID+tenantID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tenants:     make(map[string]Tenant),
		memberships: make(map[string]Membership),
	}
}

func membershipKey(userID, tenantID string) string {
	return userID + "/" + tenantID
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*Tenant, error) {
	workspace, ok := r.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &workspace, nil
}

func (r *fakeRepo) AddMember(ctx context.Context, membership Membership) error {
	key := membershipKey(membership.UserID, membership.TenantID)
	if _, exists := r.memberships[key]; exists {
		return ErrMemberExists
	}
	r.memberships[key] = membership
	return nil
}

func (r *fakeRepo) GetMembership(ctx context.Context, userID, tenantID string) (*Membership, error) {
	membership, ok := r.memberships[membershipKey(userID, tenantID)]
	if !ok {
		return nil, ErrNotMember
	}
	return &membership, nil
}

func (r *fakeRepo) GetPrimaryMembership(ctx context.Context, userID string) (*Membership, error) {
	for _, membership := range r.memberships {
		if membership.UserID == userID {
			return &membership, nil
		}
	}
	return nil, ErrNotMember
}

func (r *fakeRepo) RemoveMember(ctx context.Context, userID, tenantID string) error {
	key := membershipKey(userID, tenantID)
	if _, ok := r.memberships[key]; !ok {
		return ErrNotMember
	}
	delete(r.memberships, key)
	return nil
}

func ctxWithRole(role string) context.Context {
	return tenant.WithScope(context.Background(), tenant.Scope{
		UserID:   "caller",
		TenantID: "t1",
		Role:     role,
	})
}

func TestAddMemberRequiresAdmin(t *testing.T) {
	service := NewService(newFakeRepo())

	err := service.AddMember(ctxWithRole(tenant.RoleMember), "u2", tenant.RoleMember)
	assert.ErrorIs(t, err, ErrForbidden)

	err = service.AddMember(ctxWithRole(tenant.RoleAdmin), "u2", tenant.RoleMember)
	assert.NoError(t, err)
}

func TestAddMemberCannotGrantAboveOwnRole(t *testing.T) {
	service := NewService(newFakeRepo())

	err := service.AddMember(ctxWithRole(tenant.RoleAdmin), "u2", tenant.RoleOwner)
	assert.ErrorIs(t, err, ErrForbidden)

	err = service.AddMember(ctxWithRole(tenant.RoleOwner), "u2", tenant.RoleOwner)
	assert.NoError(t, err)
}

func TestAddMemberDuplicate(t *testing.T) {
	service := NewService(newFakeRepo())
	ctx := ctxWithRole(tenant.RoleAdmin)

	require.NoError(t, service.AddMember(ctx, "u2", tenant.RoleMember))
	err := service.AddMember(ctx, "u2", tenant.RoleMember)
	assert.ErrorIs(t, err, ErrMemberExists)
}

func TestRemoveMember(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo)
	ctx := ctxWithRole(tenant.RoleAdmin)

	require.NoError(t, service.AddMember(ctx, "u2", tenant.RoleMember))
	require.NoError(t, service.RemoveMember(ctx, "u2"))

	_, err := repo.GetMembership(context.Background(), "u2", "t1")
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestRemoveMemberRequiresAdmin(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo)
	require.NoError(t, service.AddMember(ctxWithRole(tenant.RoleOwner), "u2", tenant.RoleMember))

	err := service.RemoveMember(ctxWithRole(tenant.RoleViewer), "u2")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRemoveOwnerRefused(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo)
	require.NoError(t, service.AddMember(ctxWithRole(tenant.RoleOwner), "founder", tenant.RoleOwner))

	err := service.RemoveMember(ctxWithRole(tenant.RoleAdmin), "founder")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRemoveUnknownMember(t *testing.T) {
	service := NewService(newFakeRepo())
	err := service.RemoveMember(ctxWithRole(tenant.RoleAdmin), "ghost")
	assert.ErrorIs(t, err, ErrNotMember)
}
