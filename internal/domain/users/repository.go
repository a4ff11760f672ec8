package users

import (
	"context"
	"errors"
	"time"

	"github.com/relayworks/server/internal/domain/tenants"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email is already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidVerifyToken = errors.New("invalid or expired verification token")
)

type User struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  string
	EmailVerified bool
	CreatedAt     time.Time
}

// SignupRecord is what CreateWithTenant persists atomically: the user, a
// fresh tenant, and an owner membership binding them.
type SignupRecord struct {
	User              User
	TenantName        string
	VerificationToken string
}

type Repository interface {
	// CreateWithTenant inserts the user, auto-creates their tenant, and
	// records the owner membership in a single transaction.
	CreateWithTenant(ctx context.Context, record SignupRecord) (*User, *tenants.Tenant, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	// VerifyEmail consumes a verification token and flips the flag.
	VerifyEmail(ctx context.Context, token string) (*User, error)
}
