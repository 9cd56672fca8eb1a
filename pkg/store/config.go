package store

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/Zereker/relations/pkg/redis"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config selects and configures the store backend.
type Config struct {
	Backend   string       `toml:"backend"` // memory or redis
	KeyPrefix string       `toml:"key_prefix"`
	Redis     redis.Config `toml:"redis"`
}

// Validate checks store configuration.
func (c *Config) Validate() error {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendRedis:
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("invalid backend: %s, must be memory or redis", c.Backend)
	}
}

// Open creates the configured store. The returned close function releases
// everything Open acquired, including the Redis connection.
func Open(ctx context.Context, cfg Config) (Store, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	if cfg.Backend == BackendMemory {
		s := NewMemoryStore()
		return s, s.Close, nil
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "init redis")
	}
	s := NewRedisStore(client, cfg.KeyPrefix)
	return s, client.Close, nil
}
