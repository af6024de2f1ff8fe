package router

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/storage/redis"

	"github.com/hfactor/hfactor-site/internal/pkg/config"
)

// NewLimiterStorage shares rate limit counters through redis whenever one of
// the stores runs on redis. Otherwise nil is returned and the limiter keeps
// its counters in memory.
func NewLimiterStorage(cfg *config.Config) fiber.Storage {
	if cfg.SubscriptionsStore.Backend != config.StoreRedis && cfg.ContactStore.Backend != config.StoreRedis {
		return nil
	}

	port, err := strconv.Atoi(cfg.Redis.Port)
	if err != nil {
		log.Warnf("[Limiter] Invalid REDIS_PORT %q, using in-memory counters", cfg.Redis.Port)
		return nil
	}

	log.Infof("[Limiter] Using redis database %d for rate limits", cfg.LimiterRedisDB)
	return redis.New(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     port,
		Password: cfg.Redis.Password,
		Database: cfg.LimiterRedisDB,
		Reset:    false,
	})
}
