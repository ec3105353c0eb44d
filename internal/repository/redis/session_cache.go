package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/drew/identity-service/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Two key families, which never collide: session tokens keyed by user id
// with the token's own validity window as TTL, and profile projections
// keyed by user id with a shorter freshness window.
const (
	sessionKeyPrefix = "session:"
	profileKeyPrefix = "user:"
)

type sessionCache struct {
	client *redis.Client
}

func NewSessionCache(client *redis.Client) *sessionCache {
	return &sessionCache{client: client}
}

func (c *sessionCache) PutSession(ctx context.Context, userID uuid.UUID, token string, ttl time.Duration) error {
	return c.client.Set(ctx, sessionKeyPrefix+userID.String(), token, ttl).Err()
}

func (c *sessionCache) GetSession(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := c.client.Get(ctx, sessionKeyPrefix+userID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return token, nil
}

func (c *sessionCache) PutProfile(ctx context.Context, userID uuid.UUID, profile *domain.Profile, ttl time.Duration) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, profileKeyPrefix+userID.String(), data, ttl).Err()
}

func (c *sessionCache) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	data, err := c.client.Get(ctx, profileKeyPrefix+userID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var profile domain.Profile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
