package runstore

import (
	"context"
	"fmt"

	"github.com/kbukum/etlflow/component"
	"github.com/kbukum/etlflow/logger"
)

// Component builds the configured Store on Start. deps is called at Start so
// that database and Redis components registered earlier are already running.
type Component struct {
	cfg   Config
	deps  func() Deps
	log   *logger.Logger
	store Store
}

// NewComponent creates a run store component.
func NewComponent(cfg Config, deps func() Deps, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, deps: deps, log: log.WithComponent("runstore")}
}

var _ component.Component = (*Component)(nil)

func (c *Component) Name() string { return "runstore" }

// Store returns the store, or Nop before Start.
func (c *Component) Store() Store {
	if c.store == nil {
		return Nop{}
	}
	return c.store
}

// Start builds the store.
func (c *Component) Start(_ context.Context) error {
	var deps Deps
	if c.deps != nil {
		deps = c.deps()
	}
	store, err := New(c.cfg, deps, c.log)
	if err != nil {
		return fmt.Errorf("runstore start: %w", err)
	}
	c.store = store
	return nil
}

// Stop is a no-op; connections belong to their own components.
func (c *Component) Stop(_ context.Context) error { return nil }

// Health reports whether the store was built.
func (c *Component) Health(_ context.Context) component.Health {
	if c.store == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "run store not initialized"}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe returns the startup summary line.
func (c *Component) Describe() component.Description {
	details := "backend=" + c.cfg.Backend
	if c.cfg.Backend == BackendRedis {
		details += " ttl=" + c.cfg.TTL
	}
	return component.Description{Name: "Run store", Type: "runstore", Details: details}
}
