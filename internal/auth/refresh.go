package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRefreshToken covers every refresh failure mode: expired,
// revoked, already rotated, or malformed. Callers cannot distinguish the
// terminal states, which keeps replayed tokens from leaking information.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// RefreshTokenStore persists opaque refresh tokens keyed by user. A record
// exists exactly while the token is valid; the store's TTL enforces expiry.
//
// Consume must be atomic: of two concurrent calls for the same token, at
// most one may succeed. The Redis implementation relies on GETDEL for this;
// an eventually-consistent store cannot back this interface.
type RefreshTokenStore interface {
	Save(ctx context.Context, userID, token string, ttl time.Duration) error
	Consume(ctx context.Context, userID, token string) error
	RevokeAll(ctx context.Context, userID string) error
}

const refreshTokenBytes = 32

// NewRefreshToken mints an opaque refresh token bound to a user. The wire
// form is "<userID>.<random>"; the random part alone is stored, so the
// token carries no claims and the store remains prefix-scannable per user
// for revoke-everywhere.
func NewRefreshToken(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("refresh token: empty user id")
	}
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("refresh token entropy: %w", err)
	}
	return userID + "." + base64.RawURLEncoding.EncodeToString(buf), nil
}

// SplitRefreshToken parses the wire form back into its user id and opaque
// secret. Malformed input yields ErrInvalidRefreshToken, indistinguishable
// from a rotated or expired token.
func SplitRefreshToken(token string) (userID, secret string, err error) {
	userID, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || userID == "" || secret == "" {
		return "", "", ErrInvalidRefreshToken
	}
	if _, err := base64.RawURLEncoding.DecodeString(secret); err != nil {
		return "", "", ErrInvalidRefreshToken
	}
	return userID, secret, nil
}
