package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis"
	"github.com/krancour/identity/apiserver/internal/meta"
	"github.com/krancour/identity/apiserver/internal/sessions"
)

const cacheStoreName = "session cache"

// cacheStore is a Redis-based implementation of the sessions.CacheStore
// interface.
type cacheStore struct {
	redisClient *redis.Client
	prefix      string
}

// NewCacheStore returns a Redis-based implementation of the
// sessions.CacheStore interface. Every key it writes is namespaced by the
// given prefix, if any.
func NewCacheStore(
	redisClient *redis.Client,
	prefix string,
) sessions.CacheStore {
	return &cacheStore{
		redisClient: redisClient,
		prefix:      prefix,
	}
}

func (c *cacheStore) Put(
	ctx context.Context,
	userID string,
	sessionID string,
	token string,
	ttl time.Duration,
) error {
	// A zero expiration would make the key permanent, and anything under a
	// millisecond is sent as PX 0, which Redis rejects.
	if ttl < time.Millisecond {
		return c.Delete(ctx, userID, sessionID)
	}
	if err := c.redisClient.WithContext(ctx).Set(
		refreshTokenKey(c.prefix, userID, sessionID),
		token,
		ttl,
	).Err(); err != nil {
		return &meta.ErrStorageUnavailable{Store: cacheStoreName, Err: err}
	}
	return nil
}

func (c *cacheStore) Get(
	ctx context.Context,
	userID string,
	sessionID string,
) (string, bool, error) {
	token, err := c.redisClient.WithContext(ctx).Get(
		refreshTokenKey(c.prefix, userID, sessionID),
	).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false,
			&meta.ErrStorageUnavailable{Store: cacheStoreName, Err: err}
	}
	return token, true, nil
}

func (c *cacheStore) Delete(
	ctx context.Context,
	userID string,
	sessionID string,
) error {
	if err := c.redisClient.WithContext(ctx).Del(
		refreshTokenKey(c.prefix, userID, sessionID),
	).Err(); err != nil {
		return &meta.ErrStorageUnavailable{Store: cacheStoreName, Err: err}
	}
	return nil
}
