// Package redisstore keeps run snapshots in Redis as JSON documents with a
// TTL. Sorted sets keyed by start time index the runs for List.
package redisstore

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/etlflow/dag"
	apperrors "github.com/kbukum/etlflow/errors"
	"github.com/kbukum/etlflow/logger"
	"github.com/kbukum/etlflow/redis"
	"github.com/kbukum/etlflow/runstore"
)

func init() {
	runstore.RegisterFactory(runstore.BackendRedis, func(cfg runstore.Config, deps runstore.Deps, log *logger.Logger) (runstore.Store, error) {
		if deps.Redis == nil {
			return nil, fmt.Errorf("redisstore: redis is not available")
		}
		return New(deps.Redis, cfg.KeyPrefix, cfg.TTLDuration(), log), nil
	})
}

// Store implements runstore.Store.
type Store struct {
	client *redis.Client
	docs   *redis.TypedStore[dag.Snapshot]
	prefix string
	ttl    time.Duration
	log    *logger.Logger
}

var _ runstore.Store = (*Store)(nil)

// New creates a store. Keys are "<prefix>:<run id>"; ttl of zero keeps runs forever.
func New(client *redis.Client, prefix string, ttl time.Duration, log *logger.Logger) *Store {
	return &Store{
		client: client,
		docs:   redis.NewTypedStore[dag.Snapshot](client, prefix),
		prefix: prefix,
		ttl:    ttl,
		log:    log.WithComponent("redisstore"),
	}
}

func (s *Store) indexKey(graph string) string {
	if graph == "" {
		return s.prefix + ":index"
	}
	return s.prefix + ":index:" + graph
}

// Save stores snap and indexes it under its start time.
func (s *Store) Save(ctx context.Context, snap dag.Snapshot) error {
	if err := s.docs.Save(ctx, snap.ID, &snap, s.ttl); err != nil {
		return apperrors.CollaboratorUnavailable("redis", "save run", err)
	}

	member := goredis.Z{Score: float64(snap.StartedAt.UnixNano()), Member: snap.ID}
	pipe := s.client.Unwrap().TxPipeline()
	pipe.ZAdd(ctx, s.indexKey(""), member)
	pipe.ZAdd(ctx, s.indexKey(snap.Graph), member)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.CollaboratorUnavailable("redis", "index run", err)
	}
	s.log.Debug("run saved", logger.Fields(logger.FieldRunID, snap.ID, logger.FieldStatus, snap.Status))
	return nil
}

// Load returns the snapshot of run id.
func (s *Store) Load(ctx context.Context, id string) (*dag.Snapshot, error) {
	snap, err := s.docs.Load(ctx, id)
	if err != nil {
		return nil, apperrors.CollaboratorUnavailable("redis", "load run", err)
	}
	if snap == nil {
		return nil, apperrors.NotFound("run", id)
	}
	return snap, nil
}

// List returns snapshots newest first. Index entries whose document has
// expired are removed.
func (s *Store) List(ctx context.Context, opts runstore.ListOptions) ([]dag.Snapshot, error) {
	key := s.indexKey(opts.Graph)
	limit := opts.EffectiveLimit()
	out := make([]dag.Snapshot, 0, limit)

	var start int64
	for len(out) < limit {
		ids, err := s.client.Unwrap().ZRevRange(ctx, key, start, start+int64(limit)-1).Result()
		if err != nil {
			return nil, apperrors.CollaboratorUnavailable("redis", "list runs", err)
		}
		if len(ids) == 0 {
			break
		}
		start += int64(len(ids))

		var expired []any
		for _, id := range ids {
			snap, err := s.docs.Load(ctx, id)
			if err != nil {
				return nil, apperrors.CollaboratorUnavailable("redis", "load run", err)
			}
			if snap == nil {
				expired = append(expired, id)
				continue
			}
			if len(out) < limit {
				out = append(out, *snap)
			}
		}
		if len(expired) > 0 {
			if err := s.client.Unwrap().ZRem(ctx, key, expired...).Err(); err != nil {
				return nil, apperrors.CollaboratorUnavailable("redis", "prune index", err)
			}
			start -= int64(len(expired))
		}
	}
	return out, nil
}
