package tenant

import "context"

// Roles a membership can carry, in ascending privilege order.
const (
	RoleViewer = "viewer"
	RoleMember = "member"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
)

var roleRank = map[string]int{
	RoleViewer: 0,
	RoleMember: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

// RoleAtLeast reports whether role carries at least the privilege of min.
// Unknown roles rank below viewer.
func RoleAtLeast(role, min string) bool {
	r, ok := roleRank[role]
	if !ok {
		return false
	}
	m, ok := roleRank[min]
	if !ok {
		return false
	}
	return r >= m
}

// Scope is the verified identity a request acts under: one user, one
// tenant, one role. It is immutable and travels on the context; repository
// queries read it to constrain every statement to the scope's tenant.
type Scope struct {
	UserID   string
	TenantID string
	Role     string
	Email    string
}

type scopeKey struct{}

// WithScope binds a verified scope to the context. Only the auth
// middleware and the realtime handshake call this; handlers never
// construct a scope themselves.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// FromContext returns the ambient scope, if one was bound.
func FromContext(ctx context.Context) (Scope, bool) {
	scope, ok := ctx.Value(scopeKey{}).(Scope)
	return scope, ok
}

// MustFromContext returns the ambient scope and panics without one. Used
// by code that only runs behind the auth middleware, where a missing
// scope is a wiring bug rather than a request error.
func MustFromContext(ctx context.Context) Scope {
	scope, ok := FromContext(ctx)
	if !ok {
		panic("tenant: no scope on context")
	}
	return scope
}
