package local

import (
	"fmt"

	"github.com/kbukum/etlflow/storage"
)

// DefaultBasePath is the default root directory for local storage.
const DefaultBasePath = storage.DefaultBasePath

// Config holds local filesystem storage configuration.
type Config struct {
	// BasePath is the root directory for local storage.
	BasePath string `mapstructure:"base_path" json:"base_path"`

	// Bucket is an optional subdirectory of BasePath holding the objects.
	Bucket string `mapstructure:"bucket" json:"bucket"`
}

// FromCore builds a local config from the shared storage config.
func FromCore(cfg storage.Config) *Config {
	return &Config{BasePath: cfg.BasePath, Bucket: cfg.Bucket}
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.BasePath == "" {
		c.BasePath = DefaultBasePath
	}
}

// Validate checks that the local configuration is valid.
func (c *Config) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("local: base_path is required")
	}
	return nil
}
