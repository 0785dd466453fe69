package gcs

import (
	"errors"

	"github.com/kbukum/etlflow/storage"
)

// Config holds Google Cloud Storage configuration.
type Config struct {
	// Bucket is the GCS bucket name.
	Bucket string `mapstructure:"bucket" json:"bucket"`

	// ProjectID is the Google Cloud project owning the bucket.
	ProjectID string `mapstructure:"project_id" json:"project_id"`

	// CredentialsFile is a service account key file. Empty uses application
	// default credentials.
	CredentialsFile string `mapstructure:"credentials_file" json:"credentials_file"`

	// Endpoint overrides the JSON API endpoint, e.g. a fake-gcs-server.
	// Requests to a custom endpoint are unauthenticated.
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
}

// FromCore builds a GCS config from the shared storage config.
func FromCore(cfg storage.Config) *Config {
	return &Config{
		Bucket:          cfg.Bucket,
		ProjectID:       cfg.ProjectID,
		CredentialsFile: cfg.CredentialsFile,
		Endpoint:        cfg.Endpoint,
	}
}

// Validate checks that the GCS configuration is valid.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("gcs: bucket is required")
	}
	return nil
}
