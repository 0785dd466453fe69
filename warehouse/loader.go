package warehouse

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/etlflow/database"
	"github.com/kbukum/etlflow/logger"
	"github.com/kbukum/etlflow/storage"
	"github.com/kbukum/etlflow/validation"
)

// Loader runs load jobs.
type Loader interface {
	// Load runs job to completion. Transient failures are reported as
	// retryable COLLABORATOR_UNAVAILABLE or JOB_FAILED errors.
	Load(ctx context.Context, job LoadJob) (*JobResult, error)
}

// Provider names.
const (
	ProviderBigQuery = "bigquery"
	ProviderSQL      = "sql"
)

// Config selects and configures the warehouse backend.
type Config struct {
	Enabled  bool   `mapstructure:"enabled" json:"enabled"`
	Provider string `mapstructure:"provider" json:"provider" validate:"oneof=bigquery sql"`

	// ProjectID is the BigQuery project jobs run in. Destination tables
	// may live in other projects.
	ProjectID string `mapstructure:"project_id" json:"project_id"`

	// CredentialsFile is a service account key file. Empty uses application
	// default credentials.
	CredentialsFile string `mapstructure:"credentials_file" json:"credentials_file"`

	// Endpoint overrides the BigQuery API endpoint; requests to it are unauthenticated.
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
}

// ApplyDefaults defaults the provider to sql.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderSQL
	}
}

// Validate checks the configuration for the selected provider.
func (c *Config) Validate() error {
	v := validation.New()
	v.Merge("", validation.Validate(c))
	if c.Provider == ProviderBigQuery {
		v.Required("project_id", c.ProjectID)
	}
	if err := v.Err(); err != nil {
		return fmt.Errorf("warehouse: %w", err)
	}
	return nil
}

// Deps are the collaborators a backend may need. The SQL backend reads
// staged objects through Storage and writes tables through DB.
type Deps struct {
	Storage storage.Storage
	DB      *database.DB
}

// Factory builds a Loader for a provider.
type Factory func(ctx context.Context, cfg Config, deps Deps, log *logger.Logger) (Loader, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory registers a backend; provider packages call it from init.
func RegisterFactory(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the Loader selected by cfg.Provider.
func New(ctx context.Context, cfg Config, deps Deps, log *logger.Logger) (Loader, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("warehouse: unsupported provider %q (not registered)", cfg.Provider)
	}

	l := log.WithComponent("warehouse")
	l.Info("initializing warehouse", logger.Fields("provider", cfg.Provider))
	return f(ctx, cfg, deps, l)
}
