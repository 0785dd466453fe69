package runstore

import (
	"fmt"
	"time"

	"github.com/kbukum/etlflow/validation"
)

// Backend names.
const (
	BackendNone  = "none"
	BackendSQL   = "sql"
	BackendRedis = "redis"
)

// Defaults.
const (
	DefaultKeyPrefix = "etlflow:runs"
	DefaultTTL       = "168h"
)

// Config selects the run store backend.
type Config struct {
	Backend string `mapstructure:"backend" json:"backend" validate:"oneof=none sql redis"`

	// TTL bounds how long the Redis backend keeps a run. "0s" keeps runs forever.
	TTL string `mapstructure:"ttl" json:"ttl"`

	// KeyPrefix namespaces Redis keys.
	KeyPrefix string `mapstructure:"key_prefix" json:"key_prefix"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendNone
	}
	if c.TTL == "" {
		c.TTL = DefaultTTL
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
}

// Validate checks the backend name and TTL.
func (c *Config) Validate() error {
	v := validation.New()
	v.Merge("", validation.Validate(c))
	v.Custom(validDuration(c.TTL), "ttl", "must be a non-negative duration")
	if err := v.Err(); err != nil {
		return fmt.Errorf("runstore: %w", err)
	}
	return nil
}

// TTLDuration returns the parsed TTL.
func (c *Config) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}

func validDuration(s string) bool {
	d, err := time.ParseDuration(s)
	return err == nil && d >= 0
}
