package main

import (
	"fmt"

	"github.com/kbukum/etlflow/config"
	"github.com/kbukum/etlflow/database"
	"github.com/kbukum/etlflow/etl"
	"github.com/kbukum/etlflow/observability"
	"github.com/kbukum/etlflow/redis"
	"github.com/kbukum/etlflow/runstore"
	"github.com/kbukum/etlflow/storage"
	"github.com/kbukum/etlflow/version"
	"github.com/kbukum/etlflow/warehouse"
)

// AppConfig is the configuration of the etlflow binary.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	// PipelinesDir holds extra pipeline definitions; embedded ones are always available.
	PipelinesDir string `yaml:"pipelines_dir" mapstructure:"pipelines_dir"`
	// MaxParallel bounds concurrently running tasks; zero means one per CPU.
	MaxParallel int `yaml:"max_parallel" mapstructure:"max_parallel"`

	Storage       storage.Config       `yaml:"storage" mapstructure:"storage"`
	Warehouse     warehouse.Config     `yaml:"warehouse" mapstructure:"warehouse"`
	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	RunStore      runstore.Config      `yaml:"runstore" mapstructure:"runstore"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	ETL           etl.Config           `yaml:"etl" mapstructure:"etl"`
}

// ApplyDefaults fills every section. The storage bucket follows the
// workflow bucket when unset.
func (c *AppConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "etlflow"
	}
	if c.Version == "" {
		c.Version = version.Get().String()
	}
	c.ServiceConfig.ApplyDefaults()
	c.ETL.ApplyDefaults()
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = c.ETL.Bucket
	}
	c.Storage.ApplyDefaults()
	c.Warehouse.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.RunStore.ApplyDefaults()

	c.Observability.ServiceName = c.Name
	c.Observability.ServiceVersion = c.Version
	c.Observability.Environment = c.Environment
	c.Observability.ApplyDefaults()
}

// Validate checks every enabled section.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if c.MaxParallel < 0 {
		return fmt.Errorf("max_parallel must be >= 0")
	}
	if err := c.ETL.Validate(); err != nil {
		return err
	}
	if c.Storage.Enabled {
		if err := c.Storage.Validate(); err != nil {
			return err
		}
	}
	if c.Warehouse.Enabled {
		if err := c.Warehouse.Validate(); err != nil {
			return err
		}
		if c.Warehouse.Provider == warehouse.ProviderSQL && !c.Database.Enabled {
			return fmt.Errorf("warehouse: provider sql needs database.enabled")
		}
	}
	if c.Database.Enabled {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.RunStore.Validate(); err != nil {
		return err
	}
	switch c.RunStore.Backend {
	case runstore.BackendSQL:
		if !c.Database.Enabled {
			return fmt.Errorf("runstore: backend sql needs database.enabled")
		}
	case runstore.BackendRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("runstore: backend redis needs redis.enabled")
		}
	}
	return c.Observability.Validate()
}
