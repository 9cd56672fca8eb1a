package server

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Zereker/relations/pkg/log"
	"github.com/Zereker/relations/pkg/mq"
	"github.com/Zereker/relations/pkg/store"
)

// Config holds all configuration values
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Auth       AuthConfig       `toml:"auth"`
	Pagination PaginationConfig `toml:"pagination"`
	Store      store.Config     `toml:"store"`
	Kafka      mq.KafkaConfig   `toml:"kafka"`
	Log        log.Config       `toml:"log"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	ReadTimeout  string `toml:"read_timeout"`
	WriteTimeout string `toml:"write_timeout"`
}

// AuthConfig lists the access tokens accepted as bearer credentials.
type AuthConfig struct {
	AccessTokens []string `toml:"access_tokens"`
}

// PaginationConfig bounds page sizes.
type PaginationConfig struct {
	DefaultLimit int `toml:"default_limit"`
	MaxLimit     int `toml:"max_limit"`
}

// Validate checks server configuration
func (s *ServerConfig) Validate() error {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port is required and must be between 1 and 65535")
	}
	if s.ReadTimeout == "" {
		s.ReadTimeout = "30s"
	}
	if s.WriteTimeout == "" {
		s.WriteTimeout = "30s"
	}
	if _, err := time.ParseDuration(s.ReadTimeout); err != nil {
		return fmt.Errorf("read_timeout is invalid: %w", err)
	}
	if _, err := time.ParseDuration(s.WriteTimeout); err != nil {
		return fmt.Errorf("write_timeout is invalid: %w", err)
	}
	return nil
}

func (s ServerConfig) timeouts() (read, write time.Duration) {
	read, _ = time.ParseDuration(s.ReadTimeout)
	write, _ = time.ParseDuration(s.WriteTimeout)
	return read, write
}

// Validate checks auth configuration
func (a *AuthConfig) Validate() error {
	if len(a.AccessTokens) == 0 {
		return fmt.Errorf("at least one access token is required")
	}
	for i, t := range a.AccessTokens {
		if t == "" {
			return fmt.Errorf("access_tokens[%d] is empty", i)
		}
	}
	return nil
}

// Validate checks pagination configuration
func (p *PaginationConfig) Validate() error {
	if p.MaxLimit == 0 {
		p.MaxLimit = 50
	}
	if p.DefaultLimit == 0 {
		p.DefaultLimit = min(5, p.MaxLimit)
	}
	if p.MaxLimit < 0 || p.DefaultLimit < 0 {
		return fmt.Errorf("limits must be positive")
	}
	if p.DefaultLimit > p.MaxLimit {
		return fmt.Errorf("default_limit %d exceeds max_limit %d", p.DefaultLimit, p.MaxLimit)
	}
	return nil
}

// Validate checks all configuration fields
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	if err := c.Pagination.Validate(); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if err := c.Kafka.Validate(); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}

	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	return nil
}

// LoadConfig reads and parses the configuration file
func LoadConfig(filename string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
