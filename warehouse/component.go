package warehouse

import (
	"context"
	"fmt"

	"github.com/kbukum/etlflow/component"
	"github.com/kbukum/etlflow/logger"
)

// Component manages a Loader's lifecycle. deps is called on Start, after the
// storage and database components have started.
type Component struct {
	cfg    Config
	deps   func() Deps
	log    *logger.Logger
	loader Loader
}

// NewComponent creates a warehouse component.
func NewComponent(cfg Config, deps func() Deps, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, deps: deps, log: log.WithComponent("warehouse")}
}

var _ component.Component = (*Component)(nil)

// Name returns the component name.
func (c *Component) Name() string { return "warehouse" }

// Loader returns the started Loader, or nil.
func (c *Component) Loader() Loader { return c.loader }

// Start builds the configured Loader.
func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		c.log.Info("warehouse component is disabled")
		return nil
	}
	var deps Deps
	if c.deps != nil {
		deps = c.deps()
	}
	l, err := New(ctx, c.cfg, deps, c.log)
	if err != nil {
		return fmt.Errorf("warehouse start: %w", err)
	}
	c.loader = l
	return nil
}

// Stop closes the Loader if it holds a client.
func (c *Component) Stop(_ context.Context) error {
	l := c.loader
	c.loader = nil
	if closer, ok := l.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Health reports whether the Loader is ready.
func (c *Component) Health(_ context.Context) component.Health {
	switch {
	case !c.cfg.Enabled:
		return component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: "disabled"}
	case c.loader == nil:
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "warehouse not initialized"}
	default:
		return component.Health{Name: c.Name(), Status: component.StatusHealthy}
	}
}

// Describe returns infrastructure summary info for the bootstrap display.
func (c *Component) Describe() component.Description {
	details := "provider=" + c.cfg.Provider
	if c.cfg.ProjectID != "" {
		details += " project=" + c.cfg.ProjectID
	}
	return component.Description{Name: "Warehouse", Type: "warehouse", Details: details}
}
