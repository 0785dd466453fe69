// Package redis wraps go-redis with etlflow logging, configuration and
// component lifecycle. The run store's Redis backend is built on it.
//
// TypedStore keeps JSON documents under a key prefix with an optional TTL:
//
//	store := redis.NewTypedStore[dag.Snapshot](client, "etlflow:runs")
//	err := store.Save(ctx, snap.ID, &snap, 7*24*time.Hour)
package redis
