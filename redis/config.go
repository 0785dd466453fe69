package redis

import (
	"fmt"
	"time"
)

// Config holds Redis connection configuration.
type Config struct {
	// Enabled controls whether the Redis component is active.
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// Addr is the server address (host:port).
	Addr string `mapstructure:"addr" json:"addr"`

	Password string `mapstructure:"password" json:"-"`
	DB       int    `mapstructure:"db" json:"db"`

	PoolSize     int `mapstructure:"pool_size" json:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns" json:"min_idle_conns"`

	// MaxRetries is the number of command retries (default 3).
	MaxRetries      int    `mapstructure:"max_retries" json:"max_retries"`
	MinRetryBackoff string `mapstructure:"min_retry_backoff" json:"min_retry_backoff"`
	MaxRetryBackoff string `mapstructure:"max_retry_backoff" json:"max_retry_backoff"`

	DialTimeout  string `mapstructure:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout" json:"write_timeout"`
	PoolTimeout  string `mapstructure:"pool_timeout" json:"pool_timeout"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns <= 0 {
		c.MinIdleConns = 1
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.MinRetryBackoff == "" {
		c.MinRetryBackoff = "8ms"
	}
	if c.MaxRetryBackoff == "" {
		c.MaxRetryBackoff = "512ms"
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "5s"
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "3s"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "3s"
	}
}

// Validate checks that required fields are present and durations parse.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be > 0")
	}
	durations := []struct{ name, value string }{
		{"min_retry_backoff", c.MinRetryBackoff},
		{"max_retry_backoff", c.MaxRetryBackoff},
		{"dial_timeout", c.DialTimeout},
		{"read_timeout", c.ReadTimeout},
		{"write_timeout", c.WriteTimeout},
		{"pool_timeout", c.PoolTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.value, err)
		}
	}
	return nil
}
