package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// TokenUser is the slice of the user record the authority needs when
// minting a pair. Claims are always re-derived from this record, never
// copied out of an old token.
type TokenUser struct {
	ID            string
	TenantID      string
	Role          string
	Email         string
	EmailVerified bool
}

// UserSource resolves the authoritative user record and active tenant
// membership for a user id.
type UserSource interface {
	GetTokenUser(ctx context.Context, userID string) (TokenUser, error)
}

// TokenPair is what login, signup, and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Authority owns the token lifecycle: issuing pairs, verifying access
// tokens, rotating refresh tokens, and revoking sessions.
type Authority struct {
	jwt        *JWTManager
	store      RefreshTokenStore
	users      UserSource
	refreshTTL time.Duration
	logger     zerolog.Logger
}

func NewAuthority(jwtManager *JWTManager, store RefreshTokenStore, users UserSource, refreshTTL time.Duration, logger zerolog.Logger) *Authority {
	return &Authority{
		jwt:        jwtManager,
		store:      store,
		users:      users,
		refreshTTL: refreshTTL,
		logger:     logger.With().Str("component", "auth").Logger(),
	}
}

// Issue mints a fresh access/refresh pair for an authenticated user.
func (a *Authority) Issue(ctx context.Context, user TokenUser) (TokenPair, error) {
	access, err := a.jwt.Generate(user.ID, user.TenantID, user.Role, user.Email)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := NewRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	_, secret, err := SplitRefreshToken(refresh)
	if err != nil {
		return TokenPair{}, err
	}
	if err := a.store.Save(ctx, user.ID, secret, a.refreshTTL); err != nil {
		return TokenPair{}, fmt.Errorf("save refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().Add(a.jwt.Expiry()),
	}, nil
}

// VerifyAccess checks an access token's signature and expiry. Pure, no I/O.
func (a *Authority) VerifyAccess(token string) (*Claims, error) {
	return a.jwt.Validate(token)
}

// Rotate exchanges a refresh token for a new pair, invalidating the old
// token first. A rotated, revoked, expired, or malformed token all fail
// with ErrInvalidRefreshToken; a replayed token therefore fails
// deterministically. The rotation runs to completion even if the caller's
// request is cancelled mid-way, so a token is never left half-rotated.
func (a *Authority) Rotate(ctx context.Context, oldToken string) (TokenPair, error) {
	ctx = context.WithoutCancel(ctx)

	userID, secret, err := SplitRefreshToken(oldToken)
	if err != nil {
		return TokenPair{}, err
	}

	if err := a.store.Consume(ctx, userID, secret); err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			a.logger.Warn().Str("user_id", userID).Msg("refresh token replay or expiry")
		}
		return TokenPair{}, err
	}

	user, err := a.users.GetTokenUser(ctx, userID)
	if err != nil {
		// The record is already consumed; the session ends here rather
		// than surviving on stale claims.
		return TokenPair{}, ErrInvalidRefreshToken
	}

	return a.Issue(ctx, user)
}

// RevokeAll deletes every live refresh token for the user (logout
// everywhere). Outstanding access tokens expire on their own.
func (a *Authority) RevokeAll(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("revoke: empty user id")
	}
	return a.store.RevokeAll(ctx, userID)
}
