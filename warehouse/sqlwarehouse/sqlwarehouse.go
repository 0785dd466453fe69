// Package sqlwarehouse loads staged objects into tables of a GORM database.
//
// A destination dataset.table maps to the table "<dataset>__<table>"; the
// project is ignored. With autodetect on, column names come from the header
// row and column types (INTEGER, REAL, BOOLEAN, TEXT) from the values. The
// write disposition is applied inside a single transaction, so a failed load
// leaves the previous contents in place.
package sqlwarehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kbukum/etlflow/database"
	apperrors "github.com/kbukum/etlflow/errors"
	"github.com/kbukum/etlflow/logger"
	"github.com/kbukum/etlflow/storage"
	"github.com/kbukum/etlflow/warehouse"
)

// DefaultBatchSize is the number of rows per INSERT.
const DefaultBatchSize = 500

func init() {
	warehouse.RegisterFactory(warehouse.ProviderSQL, func(_ context.Context, _ warehouse.Config, deps warehouse.Deps, log *logger.Logger) (warehouse.Loader, error) {
		if deps.DB == nil {
			return nil, fmt.Errorf("sqlwarehouse: database is not available")
		}
		if deps.Storage == nil {
			return nil, fmt.Errorf("sqlwarehouse: storage is not available")
		}
		return New(deps.DB, deps.Storage, log), nil
	})
}

// Loader implements warehouse.Loader on a GORM database.
type Loader struct {
	db        *database.DB
	objects   storage.Storage
	log       *logger.Logger
	batchSize int
	now       func() time.Time
}

// New creates a loader writing to db and reading staged objects from objects.
func New(db *database.DB, objects storage.Storage, log *logger.Logger) *Loader {
	return &Loader{
		db:        db,
		objects:   objects,
		log:       log.WithComponent("sqlwarehouse"),
		batchSize: DefaultBatchSize,
		now:       time.Now,
	}
}

// TableName returns the SQL table backing ref.
func TableName(ref warehouse.TableRef) string {
	return ref.DatasetID + "__" + ref.TableID
}

// Load reads every source object, then replaces, appends to or fills the
// destination table according to job.WriteDisposition.
func (l *Loader) Load(ctx context.Context, job warehouse.LoadJob) (*warehouse.JobResult, error) {
	job, err := warehouse.NewLoadJob(job)
	if err != nil {
		return nil, err
	}

	result := &warehouse.JobResult{
		JobID:       "sql_" + uuid.NewString(),
		Destination: job.Destination,
		Location:    job.Location,
		StartedAt:   l.now(),
	}
	log := l.log.WithFields(logger.Fields("job_id", result.JobID, "table", job.Destination.String()))

	data, err := l.read(ctx, job)
	if err != nil {
		return nil, err
	}

	table := TableName(job.Destination)
	err = l.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		return l.write(tx, table, job, data)
	})
	if err != nil {
		if _, ok := apperrors.AsAppError(err); ok {
			return nil, err
		}
		return nil, database.FromDatabase(err, table)
	}

	result.RowsLoaded = int64(len(data.rows))
	result.EndedAt = l.now()
	log.Info("load job done",
		logger.DurationFields("load", result.EndedAt.Sub(result.StartedAt)),
		logger.Fields("rows", result.RowsLoaded, "disposition", string(job.WriteDisposition)),
	)
	return result, nil
}

// read downloads and decodes every source URI into one table.
func (l *Loader) read(ctx context.Context, job warehouse.LoadJob) (*tableData, error) {
	var data *tableData
	for _, uri := range job.SourceURIs {
		ref, err := storage.ParseObjectURI(uri)
		if err != nil {
			return nil, err
		}

		rc, err := l.objects.Download(ctx, ref.Name)
		if err != nil {
			if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.ErrCodeNotFound {
				return nil, err
			}
			return nil, apperrors.CollaboratorUnavailable("storage", "download "+uri, err)
		}

		part, err := decode(rc, job)
		rc.Close() //nolint:errcheck,gosec // read-only
		if err != nil {
			return nil, fmt.Errorf("sqlwarehouse: decode %s: %w", uri, err)
		}
		if data == nil {
			data = part
			continue
		}
		if err := data.appendFrom(part); err != nil {
			return nil, fmt.Errorf("sqlwarehouse: %s: %w", uri, err)
		}
	}
	return data, nil
}

func (l *Loader) write(tx *gorm.DB, table string, job warehouse.LoadJob, data *tableData) error {
	migrator := tx.Migrator()
	exists := migrator.HasTable(table)

	switch {
	case !exists && job.CreateDisposition == warehouse.CreateNever:
		return apperrors.NotFound("table", job.Destination.String())
	case exists && job.WriteDisposition == warehouse.WriteEmpty:
		var count int64
		if err := tx.Table(table).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperrors.New(apperrors.ErrCodeInvalidInput,
				fmt.Sprintf("table %s already contains data", job.Destination.String())).
				WithDetail("rows", count)
		}
	case exists && job.WriteDisposition == warehouse.WriteTruncate:
		if job.Autodetect {
			if err := migrator.DropTable(table); err != nil {
				return err
			}
			exists = false
		} else if err := tx.Exec("DELETE FROM " + tx.Statement.Quote(table)).Error; err != nil {
			return err
		}
	}

	if !exists {
		if err := tx.Exec(createTableSQL(tx, table, data.columns, job.Autodetect)).Error; err != nil {
			return err
		}
	}
	if len(data.rows) == 0 {
		return nil
	}
	return tx.Table(table).CreateInBatches(data.records(), l.batchSize).Error
}

// compile-time check
var _ warehouse.Loader = (*Loader)(nil)
