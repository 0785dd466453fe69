package dag

import "context"

// RecordStore persists finished runs. Implementations live in runstore.
type RecordStore interface {
	Save(ctx context.Context, snap Snapshot) error
}
