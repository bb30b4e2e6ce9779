// Package ratelimit implements transport-level rate limiting using Redis or
// local memory. This is distinct from the per-agent message cooldown, which
// is game logic.
package ratelimit

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/spot-the-bot/backend/internal/v1/config"
	"github.com/spot-the-bot/backend/internal/v1/logging"
)

// RateLimiter holds the per-group limiter instances.
type RateLimiter struct {
	apiGlobal *limiter.Limiter
	apiRooms  *limiter.Limiter
	store     limiter.Store
}

// NewRateLimiter creates limiters from the configured formatted rates
// (e.g. "100-M"). Passing a nil Redis client selects the memory store.
func NewRateLimiter(cfg *config.Config, redisClient *redis.Client) (*RateLimiter, error) {
	apiGlobalRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIGlobal)
	if err != nil {
		return nil, fmt.Errorf("invalid API global rate: %w", err)
	}

	apiRoomsRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIRooms)
	if err != nil {
		return nil, fmt.Errorf("invalid API rooms rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "limiter:v1:",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "Rate limiter using Redis store")
	} else {
		store = memory.NewStore()
		logging.Info(context.Background(), "Rate limiter using memory store")
	}

	return &RateLimiter{
		apiGlobal: limiter.New(store, apiGlobalRate),
		apiRooms:  limiter.New(store, apiRoomsRate),
		store:     store,
	}, nil
}

// GlobalMiddleware limits all API traffic per client IP.
func (rl *RateLimiter) GlobalMiddleware() gin.HandlerFunc {
	return mgin.NewMiddleware(rl.apiGlobal)
}

// RoomsMiddleware limits room mutation endpoints per client IP.
func (rl *RateLimiter) RoomsMiddleware() gin.HandlerFunc {
	return mgin.NewMiddleware(rl.apiRooms)
}
