// Package runstore persists run records so finished runs can be inspected
// after the process exits.
//
// Backends self-register with a factory:
//
//	import _ "github.com/kbukum/etlflow/runstore/sqlstore"
//	import _ "github.com/kbukum/etlflow/runstore/redisstore"
//
//	store, err := runstore.New(cfg, runstore.Deps{DB: db}, log)
package runstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/etlflow/dag"
	"github.com/kbukum/etlflow/database"
	"github.com/kbukum/etlflow/logger"
	"github.com/kbukum/etlflow/redis"
)

// Store saves and retrieves run snapshots.
type Store interface {
	dag.RecordStore

	// Load returns the snapshot of run id, or a NOT_FOUND error.
	Load(ctx context.Context, id string) (*dag.Snapshot, error)

	// List returns snapshots newest first.
	List(ctx context.Context, opts ListOptions) ([]dag.Snapshot, error)
}

// ListOptions filters List.
type ListOptions struct {
	// Graph restricts results to one graph; empty means all.
	Graph string
	// Limit caps the number of results; zero means DefaultListLimit.
	Limit int
}

// DefaultListLimit is the List limit when none is given.
const DefaultListLimit = 50

// EffectiveLimit returns the limit to apply.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}

// Deps are the connections a backend may need.
type Deps struct {
	DB    *database.DB
	Redis *redis.Client
}

// Factory builds a Store for a backend.
type Factory func(cfg Config, deps Deps, log *logger.Logger) (Store, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		BackendNone: func(Config, Deps, *logger.Logger) (Store, error) { return Nop{}, nil },
	}
)

// RegisterFactory registers a backend; backend packages call it from init.
func RegisterFactory(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the Store selected by cfg.Backend.
func New(cfg Config, deps Deps, log *logger.Logger) (Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factoriesMu.RLock()
	f, ok := factories[cfg.Backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("runstore: backend %q is not registered (have %v)", cfg.Backend, Backends())
	}
	return f(cfg, deps, log.WithComponent("runstore"))
}
