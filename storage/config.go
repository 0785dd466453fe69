package storage

import (
	"fmt"

	"github.com/kbukum/etlflow/validation"
)

// Provider constants for supported storage backends.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
	ProviderGCS   = "gcs"
)

// Default configuration values.
const (
	DefaultProvider = ProviderLocal
	DefaultBasePath = "/tmp/storage"
	DefaultRegion   = "us-east-1"
)

// Config holds storage configuration. Provider-specific fields are read by
// the matching backend when no provider config is passed to New.
type Config struct {
	// Enabled controls whether the storage component is active.
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// Provider selects the storage backend: "local", "s3" or "gcs".
	Provider string `mapstructure:"provider" json:"provider" validate:"oneof=local s3 gcs"`

	// Bucket is the bucket objects are staged in. For the local provider it
	// is a directory under BasePath.
	Bucket string `mapstructure:"bucket" json:"bucket"`

	// BasePath is the root directory for local storage.
	BasePath string `mapstructure:"base_path" json:"base_path"`

	// Region is the AWS region for S3.
	Region string `mapstructure:"region" json:"region"`

	// Endpoint overrides the service endpoint (MinIO, fake-gcs-server).
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`

	// AccessKey and SecretKey are static S3 credentials.
	AccessKey string `mapstructure:"access_key" json:"access_key"`
	SecretKey string `mapstructure:"secret_key" json:"-"`

	// ProjectID is the Google Cloud project for GCS.
	ProjectID string `mapstructure:"project_id" json:"project_id"`

	// CredentialsFile is a Google service account key file. Empty uses
	// application default credentials.
	CredentialsFile string `mapstructure:"credentials_file" json:"credentials_file"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.Provider == ProviderLocal && c.BasePath == "" {
		c.BasePath = DefaultBasePath
	}
	if c.Provider == ProviderS3 && c.Region == "" {
		c.Region = DefaultRegion
	}
}

// Validate checks that the configuration is valid for the selected provider.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	v := validation.New()
	switch c.Provider {
	case ProviderLocal:
		v.Required("base_path", c.BasePath)
	case ProviderS3, ProviderGCS:
		v.Required("bucket", c.Bucket)
	}
	if c.Provider == ProviderS3 {
		v.Required("region", c.Region)
	}
	if err := v.Err(); err != nil {
		return fmt.Errorf("storage: invalid %s config: %w", c.Provider, err)
	}
	return nil
}
