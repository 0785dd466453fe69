// Package bigquery runs warehouse load jobs on Google BigQuery from objects
// staged in Cloud Storage.
package bigquery

import (
	"context"
	"fmt"
	"time"

	bq "cloud.google.com/go/bigquery"
	"google.golang.org/api/option"

	apperrors "github.com/kbukum/etlflow/errors"
	"github.com/kbukum/etlflow/logger"
	"github.com/kbukum/etlflow/storage"
	"github.com/kbukum/etlflow/warehouse"
)

func init() {
	warehouse.RegisterFactory(warehouse.ProviderBigQuery, func(ctx context.Context, cfg warehouse.Config, _ warehouse.Deps, log *logger.Logger) (warehouse.Loader, error) {
		return New(ctx, cfg, log)
	})
}

// Loader implements warehouse.Loader with BigQuery load jobs.
type Loader struct {
	client *bq.Client
	log    *logger.Logger
	now    func() time.Time
}

// ClientOptions returns the client options for cfg. A custom endpoint is
// used without authentication.
func ClientOptions(cfg warehouse.Config) []option.ClientOption {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return opts
}

// New creates a BigQuery client for cfg.ProjectID.
func New(ctx context.Context, cfg warehouse.Config, log *logger.Logger) (*Loader, error) {
	client, err := bq.NewClient(ctx, cfg.ProjectID, ClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("bigquery: create client: %w", err)
	}
	return NewWithClient(client, log), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *bq.Client, log *logger.Logger) *Loader {
	return &Loader{client: client, log: log.WithComponent("bigquery"), now: time.Now}
}

// Load submits job and waits for it to finish.
func (l *Loader) Load(ctx context.Context, job warehouse.LoadJob) (*warehouse.JobResult, error) {
	job, err := warehouse.NewLoadJob(job)
	if err != nil {
		return nil, err
	}
	ref, err := gcsReference(job)
	if err != nil {
		return nil, err
	}

	dst := job.Destination
	loader := l.client.DatasetInProject(dst.ProjectID, dst.DatasetID).Table(dst.TableID).LoaderFrom(ref)
	loader.WriteDisposition = bq.TableWriteDisposition(job.WriteDisposition)
	loader.CreateDisposition = bq.TableCreateDisposition(job.CreateDisposition)
	loader.Location = job.Location

	started := l.now()
	running, err := loader.Run(ctx)
	if err != nil {
		return nil, apperrors.CollaboratorUnavailable("bigquery", "submit load job", err)
	}
	log := l.log.WithFields(logger.Fields("job_id", running.ID(), "table", dst.String()))
	log.Debug("load job submitted")

	status, err := running.Wait(ctx)
	if err != nil {
		return nil, apperrors.CollaboratorUnavailable("bigquery", "wait for load job", err)
	}
	if err := status.Err(); err != nil {
		log.Warn("load job failed", logger.Fields(logger.FieldError, err.Error()))
		return nil, apperrors.JobFailed(running.ID(), err)
	}

	result := &warehouse.JobResult{
		JobID:       running.ID(),
		Destination: dst,
		Location:    running.Location(),
		StartedAt:   started,
		EndedAt:     l.now(),
	}
	if status.Statistics != nil {
		if stats, ok := status.Statistics.Details.(*bq.LoadStatistics); ok {
			result.RowsLoaded = stats.OutputRows
		}
	}
	log.Info("load job done", logger.Fields("rows", result.RowsLoaded))
	return result, nil
}

// Close releases the client.
func (l *Loader) Close() error {
	return l.client.Close()
}

func gcsReference(job warehouse.LoadJob) (*bq.GCSReference, error) {
	for i, uri := range job.SourceURIs {
		ref, err := storage.ParseObjectURI(uri)
		if err != nil {
			return nil, err
		}
		if ref.Scheme != storage.SchemeGCS {
			return nil, apperrors.InvalidInput(fmt.Sprintf("source_uris[%d]", i),
				fmt.Sprintf("bigquery loads only from %s:// objects, got %s://", storage.SchemeGCS, ref.Scheme))
		}
	}

	ref := bq.NewGCSReference(job.SourceURIs...)
	switch job.SourceFormat {
	case warehouse.FormatJSON:
		ref.SourceFormat = bq.JSON
	default:
		ref.SourceFormat = bq.CSV
	}
	ref.AutoDetect = job.Autodetect
	ref.SkipLeadingRows = int64(job.SkipLeadingRows)
	return ref, nil
}

var _ warehouse.Loader = (*Loader)(nil)
