package users

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/relayworks/server/internal/auth"
	"github.com/relayworks/server/internal/domain/ids"
	"github.com/relayworks/server/internal/domain/tenants"
	"github.com/relayworks/server/internal/tenant"
)

const (
	// BcryptCost is the cost factor for bcrypt password hashing
	BcryptCost = 12

	minPasswordLength = 8
)

// VerificationSender delivers the email-verification link after signup.
type VerificationSender interface {
	SendVerification(ctx context.Context, to, link string) error
}

// Service handles account lifecycle: signup with tenant auto-creation,
// login, and email verification.
type Service struct {
	repo        Repository
	memberships tenants.Repository
	authority   *auth.Authority
	mailer      VerificationSender
	baseURL     string
	logger      zerolog.Logger
}

func NewService(repo Repository, memberships tenants.Repository, authority *auth.Authority, mailer VerificationSender, baseURL string, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		memberships: memberships,
		authority:   authority,
		mailer:      mailer,
		baseURL:     baseURL,
		logger:      logger.With().Str("component", "users").Logger(),
	}
}

type SignupParams struct {
	Email      string
	Name       string
	Password   string
	TenantName string
}

// Signup creates the account and auto-creates a tenant with the signer as
// owner. The verification email failing does not fail the signup; the link
// can be re-requested.
func (s *Service) Signup(ctx context.Context, params SignupParams) (*User, *tenants.Tenant, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return nil, nil, fmt.Errorf("signup: email is required")
	}
	if len(params.Password) < minPasswordLength {
		return nil, nil, fmt.Errorf("signup: password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("signup: hash password: %w", err)
	}

	verifyToken, err := newVerificationToken()
	if err != nil {
		return nil, nil, err
	}

	tenantName := strings.TrimSpace(params.TenantName)
	if tenantName == "" {
		tenantName = fmt.Sprintf("%s's workspace", strings.TrimSpace(params.Name))
	}

	user, workspace, err := s.repo.CreateWithTenant(ctx, SignupRecord{
		User: User{
			ID:           ids.NewUUID(),
			Email:        email,
			Name:         strings.TrimSpace(params.Name),
			PasswordHash: string(hash),
		},
		TenantName:        tenantName,
		VerificationToken: verifyToken,
	})
	if err != nil {
		return nil, nil, err
	}

	if s.mailer != nil {
		link := fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, verifyToken)
		if err := s.mailer.SendVerification(ctx, user.Email, link); err != nil {
			s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("verification email failed")
		}
	}

	return user, workspace, nil
}

// Login checks the password and issues a token pair bound to the user's
// primary tenant. A wrong email and a wrong password are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (auth.TokenPair, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return auth.TokenPair{}, ErrInvalidCredentials
		}
		return auth.TokenPair{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return auth.TokenPair{}, ErrInvalidCredentials
	}

	tokenUser, err := s.GetTokenUser(ctx, user.ID)
	if err != nil {
		return auth.TokenPair{}, err
	}
	return s.authority.Issue(ctx, tokenUser)
}

func (s *Service) VerifyEmail(ctx context.Context, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidVerifyToken
	}
	return s.repo.VerifyEmail(ctx, token)
}

// GetTokenUser implements auth.UserSource: claims are re-derived from the
// user record and the current primary membership, never from old tokens.
func (s *Service) GetTokenUser(ctx context.Context, userID string) (auth.TokenUser, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return auth.TokenUser{}, err
	}
	membership, err := s.memberships.GetPrimaryMembership(ctx, userID)
	if err != nil {
		return auth.TokenUser{}, err
	}
	return auth.TokenUser{
		ID:            user.ID,
		TenantID:      membership.TenantID,
		Role:          membership.Role,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
	}, nil
}

// EmailVerified implements the gateway's directory check.
func (s *Service) EmailVerified(ctx context.Context, userID string) (bool, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.EmailVerified, nil
}

// OwnerRole is the role granted to the tenant auto-created at signup.
const OwnerRole = tenant.RoleOwner

func newVerificationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("verification token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
