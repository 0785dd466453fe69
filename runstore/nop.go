package runstore

import (
	"context"

	"github.com/kbukum/etlflow/dag"
	apperrors "github.com/kbukum/etlflow/errors"
)

// Nop discards every run.
type Nop struct{}

var _ Store = Nop{}

func (Nop) Save(context.Context, dag.Snapshot) error { return nil }

func (Nop) Load(_ context.Context, id string) (*dag.Snapshot, error) {
	return nil, apperrors.NotFound("run", id)
}

func (Nop) List(context.Context, ListOptions) ([]dag.Snapshot, error) { return nil, nil }
