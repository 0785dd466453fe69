// Package sqlstore keeps run snapshots in a SQL table through GORM.
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbukum/etlflow/dag"
	"github.com/kbukum/etlflow/database"
	apperrors "github.com/kbukum/etlflow/errors"
	"github.com/kbukum/etlflow/logger"
	"github.com/kbukum/etlflow/runstore"
)

func init() {
	runstore.RegisterFactory(runstore.BackendSQL, func(_ runstore.Config, deps runstore.Deps, log *logger.Logger) (runstore.Store, error) {
		if deps.DB == nil {
			return nil, fmt.Errorf("sqlstore: database is not available")
		}
		return New(context.Background(), deps.DB, log)
	})
}

// RunModel is one row per run. Snapshot holds the JSON-encoded dag.Snapshot;
// the other columns exist for filtering.
type RunModel struct {
	ID        string     `gorm:"primaryKey;size:36"`
	Graph     string     `gorm:"size:255;index:idx_runs_graph_started,priority:1"`
	Status    string     `gorm:"size:16"`
	Cancelled bool
	StartedAt time.Time  `gorm:"index:idx_runs_graph_started,priority:2"`
	EndedAt   *time.Time
	Snapshot  []byte
}

// TableName returns the run table name.
func (RunModel) TableName() string { return "etl_runs" }

// Store implements runstore.Store.
type Store struct {
	db  *database.DB
	log *logger.Logger
}

var _ runstore.Store = (*Store)(nil)

// New migrates the run table and returns a store.
func New(ctx context.Context, db *database.DB, log *logger.Logger) (*Store, error) {
	if err := db.WithContext(ctx).AutoMigrate(&RunModel{}); err != nil {
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return &Store{db: db, log: log.WithComponent("sqlstore")}, nil
}

// Save inserts or replaces the row for snap.ID.
func (s *Store) Save(ctx context.Context, snap dag.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("sqlstore: encode run %s: %w", snap.ID, err)
	}
	row := RunModel{
		ID:        snap.ID,
		Graph:     snap.Graph,
		Status:    string(snap.Status),
		Cancelled: snap.Cancelled,
		StartedAt: snap.StartedAt,
		EndedAt:   snap.EndedAt,
		Snapshot:  data,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return database.FromDatabase(err, "run")
	}
	s.log.Debug("run saved", logger.Fields(logger.FieldRunID, snap.ID, logger.FieldStatus, snap.Status))
	return nil
}

// Load returns the snapshot of run id.
func (s *Store) Load(ctx context.Context, id string) (*dag.Snapshot, error) {
	var row RunModel
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("run", id)
		}
		return nil, database.FromDatabase(err, "run")
	}
	return decode(row)
}

// List returns snapshots newest first.
func (s *Store) List(ctx context.Context, opts runstore.ListOptions) ([]dag.Snapshot, error) {
	q := s.db.WithContext(ctx).Order("started_at DESC").Limit(opts.EffectiveLimit())
	if opts.Graph != "" {
		q = q.Where("graph = ?", opts.Graph)
	}
	var rows []RunModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, database.FromDatabase(err, "run")
	}

	out := make([]dag.Snapshot, 0, len(rows))
	for _, row := range rows {
		snap, err := decode(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, nil
}

func decode(row RunModel) (*dag.Snapshot, error) {
	var snap dag.Snapshot
	if err := json.Unmarshal(row.Snapshot, &snap); err != nil {
		return nil, fmt.Errorf("sqlstore: decode run %s: %w", row.ID, err)
	}
	return &snap, nil
}
