package kv

import (
	"context"
	"fmt"
	"net"

	"github.com/gofiber/fiber/v2/log"

	"github.com/hfactor/hfactor-site/internal/pkg/config"
)

// Open builds the store selected by sc. It returns a nil Store for the "none"
// backend, which callers treat as "storage not configured".
func Open(ctx context.Context, name string, sc config.StoreConfig, cfg *config.Config) (Store, error) {
	switch sc.Backend {
	case config.StoreNone, "":
		log.Infof("[Store] %s store disabled", name)
		return nil, nil
	case config.StoreRedis:
		s := NewRedisStore(net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port), cfg.Redis.Password, sc.RedisDB)
		// An unreachable redis is logged, not fatal: writes are best-effort.
		_ = s.Ping(ctx)
		return s, nil
	case config.StoreS3:
		s, err := NewS3Store(ctx, cfg.S3, sc.S3Prefix)
		if err != nil {
			return nil, fmt.Errorf("%s store: %w", name, err)
		}
		_ = s.Ping(ctx)
		return s, nil
	default:
		return nil, fmt.Errorf("%s store: unknown backend %q", name, sc.Backend)
	}
}
