package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistKeyPrefix = "clinic-auth:blacklist:"

// TokenBlacklistRepository records revoked token ids until they would have
// expired anyway.
type TokenBlacklistRepository interface {
	Add(ctx context.Context, jti string, expiresAt time.Time) error
	Contains(ctx context.Context, jti string) (bool, error)
}

type tokenBlacklistRepository struct {
	client *redis.Client
}

// NewTokenBlacklistRepository returns a Redis-backed blacklist.
func NewTokenBlacklistRepository(client *redis.Client) TokenBlacklistRepository {
	return &tokenBlacklistRepository{client: client}
}

func (r *tokenBlacklistRepository) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return errors.New("token has no jti")
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, blacklistKeyPrefix+jti, "1", ttl).Err()
}

func (r *tokenBlacklistRepository) Contains(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := r.client.Exists(ctx, blacklistKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
