package cache

import (
	"context"
	"fmt"
)

// Open builds the configured backend. Backend "none" returns a nil Store.
func Open(ctx context.Context, cfg Config, rcfg RedisConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(cfg.Size, cfg.TTL), nil
	case "redis":
		return NewRedis(ctx, rcfg, cfg.Prefix, cfg.TTL)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q (use memory, redis or none)", cfg.Backend)
	}
}
