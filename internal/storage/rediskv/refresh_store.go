package rediskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relayworks/server/internal/auth"
)

var _ auth.RefreshTokenStore = (*RefreshStore)(nil)

// RefreshStore keeps refresh tokens under "refresh:<userID>:<secret>" with
// a TTL equal to the token's validity window, so expiry needs no sweeper.
type RefreshStore struct {
	client *redis.Client
}

func NewRefreshStore(client *redis.Client) (*RefreshStore, error) {
	if client == nil {
		return nil, fmt.Errorf("refresh store: client is nil")
	}
	return &RefreshStore{client: client}, nil
}

func refreshKey(userID, secret string) string {
	return "refresh:" + userID + ":" + secret
}

func (s *RefreshStore) Save(ctx context.Context, userID, secret string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("refresh store: ttl must be positive")
	}
	if err := s.client.Set(ctx, refreshKey(userID, secret), userID, ttl).Err(); err != nil {
		return fmt.Errorf("refresh store: save: %w", err)
	}
	return nil
}

// Consume deletes the record for this token, failing if it is already
// gone. GETDEL is a single atomic command, so two concurrent rotations of
// the same token cannot both observe the record.
func (s *RefreshStore) Consume(ctx context.Context, userID, secret string) error {
	err := s.client.GetDel(ctx, refreshKey(userID, secret)).Err()
	if errors.Is(err, redis.Nil) {
		return auth.ErrInvalidRefreshToken
	}
	if err != nil {
		return fmt.Errorf("refresh store: consume: %w", err)
	}
	return nil
}

func (s *RefreshStore) RevokeAll(ctx context.Context, userID string) error {
	iter := s.client.Scan(ctx, 0, refreshKey(userID, "*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("refresh store: scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("refresh store: revoke all: %w", err)
	}
	return nil
}
