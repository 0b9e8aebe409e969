package rest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type FetchFunc[T any] func(ctx context.Context) (T, error)

const cacheSetTimeout = 5 * time.Second

// addTTLJitter spreads expirations by up to ±30s so one dashboard load does
// not expire every aggregate at once.
func addTTLJitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	return ttl + time.Duration(rand.Intn(30)-15)*time.Second
}

// FindAndCache implements read-through caching with singleflight collapsing:
// concurrent requests for the same key share one storage fetch, and the result
// is written back to the cache off the request path.
func FindAndCache[T any](
	ctx context.Context,
	c Cacher,
	sf *singleflight.Group,
	key string,
	ttl time.Duration,
	logger *zap.Logger,
	fn FetchFunc[T],
) (T, error) {
	var zero T
	if logger == nil {
		logger = zap.NewNop()
	}

	if c != nil {
		var cached T
		err := c.Get(ctx, key, &cached)
		switch {
		case err == nil:
			logger.Debug("cache hit", zap.String("key", key))
			return cached, nil
		case errors.Is(err, redis.Nil):
			logger.Debug("cache miss", zap.String("key", key))
		default:
			logger.Warn("cache get error (treating as miss)", zap.String("key", key), zap.Error(err))
		}
	}

	v, err, _ := sf.Do(key, func() (any, error) {
		value, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		if c != nil {
			go func(v T) {
				setCtx, cancel := context.WithTimeout(context.Background(), cacheSetTimeout)
				defer cancel()
				if err := c.Set(setCtx, key, v, addTTLJitter(ttl)); err != nil {
					logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
				}
			}(value)
		}
		return value, nil
	})
	if err != nil {
		return zero, err
	}

	value, ok := v.(T)
	if !ok {
		logger.Error("singleflight type mismatch", zap.String("key", key))
		return zero, fmt.Errorf("type mismatch for key %q", key)
	}
	return value, nil
}
