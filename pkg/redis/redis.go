package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultDialTimeout = 5 * time.Second

// Config Redis 配置
type Config struct {
	Addr        string `toml:"addr"`
	Password    string `toml:"password"`
	DB          int    `toml:"db"`
	PoolSize    int    `toml:"pool_size"`
	DialTimeout string `toml:"dial_timeout"`
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.DB < 0 {
		return fmt.Errorf("db must not be negative")
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("pool_size must not be negative")
	}
	if c.DialTimeout != "" {
		if _, err := time.ParseDuration(c.DialTimeout); err != nil {
			return fmt.Errorf("dial_timeout is invalid: %w", err)
		}
	}
	return nil
}

func (c *Config) dialTimeout() time.Duration {
	d, err := time.ParseDuration(c.DialTimeout)
	if err != nil || d <= 0 {
		return defaultDialTimeout
	}
	return d
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*redis.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.dialTimeout(),
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(ctx, cfg.dialTimeout())
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}
