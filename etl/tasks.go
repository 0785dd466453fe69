package etl

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kbukum/etlflow/dag"
	apperrors "github.com/kbukum/etlflow/errors"
	"github.com/kbukum/etlflow/logger"
	"github.com/kbukum/etlflow/storage"
	"github.com/kbukum/etlflow/tabular"
	"github.com/kbukum/etlflow/warehouse"
)

// Component names; the embedded pipeline uses them as task IDs too.
const (
	ComponentExtractAndClean = "extract_and_clean"
	ComponentUploadToGCS     = "upload_to_gcs"
	ComponentLoadToBigQuery  = "load_to_bigquery"
)

// Deps are the collaborators of the workflow.
type Deps struct {
	// Storage receives the cleaned file.
	Storage storage.Storage
	// Provider is the storage provider name; it selects the staged URI scheme.
	Provider string
	// Loader runs the warehouse load.
	Loader warehouse.Loader
}

// CleanResult is the output of extract_and_clean.
type CleanResult struct {
	Path  string        `json:"path"`
	Stats tabular.Stats `json:"stats"`
}

// UploadResult is the output of upload_to_gcs.
type UploadResult struct {
	URI    string `json:"uri"`
	Object string `json:"object"`
	Bytes  int64  `json:"bytes"`
}

type workflow struct {
	cfg  Config
	deps Deps
	log  *logger.Logger
}

// NewRegistry registers the workflow's run functions.
func NewRegistry(cfg Config, deps Deps, log *logger.Logger) *dag.Registry {
	cfg.ApplyDefaults()
	w := &workflow{cfg: cfg, deps: deps, log: log.WithComponent("etl")}

	reg := dag.NewRegistry()
	reg.Register(ComponentExtractAndClean, w.extractAndClean)
	reg.Register(ComponentUploadToGCS, w.upload)
	reg.Register(ComponentLoadToBigQuery, w.load)
	return reg
}

func (w *workflow) extractAndClean(_ context.Context, _ dag.Inputs) (any, error) {
	stats, err := tabular.Clean(w.cfg.SourcePath, w.cfg.CleanedPath)
	if err != nil {
		return nil, err
	}
	w.log.Info("source cleaned", logger.Fields(
		"source", w.cfg.SourcePath,
		"rows_kept", stats.RowsKept,
		"rows_dropped", stats.RowsDropped,
	))
	return CleanResult{Path: w.cfg.CleanedPath, Stats: stats}, nil
}

func (w *workflow) upload(ctx context.Context, in dag.Inputs) (any, error) {
	cleaned, err := dag.Input[CleanResult](in, ComponentExtractAndClean)
	if err != nil {
		return nil, err
	}
	if w.deps.Storage == nil {
		return nil, apperrors.CollaboratorUnavailable("storage", "upload", fmt.Errorf("storage is not configured"))
	}

	f, err := os.Open(cleaned.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("cleaned file", cleaned.Path)
		}
		return nil, fmt.Errorf("etl: open %s: %w", cleaned.Path, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("etl: stat %s: %w", cleaned.Path, err)
	}
	if err := w.deps.Storage.Upload(ctx, w.cfg.ObjectName, f); err != nil {
		return nil, collaboratorError("storage", "upload "+w.cfg.ObjectName, err)
	}

	uri := storage.ObjectURI(w.deps.Provider, w.cfg.Bucket, w.cfg.ObjectName)
	w.log.Info("cleaned file staged", logger.Fields("uri", uri, "bytes", info.Size()))
	return UploadResult{URI: uri, Object: w.cfg.ObjectName, Bytes: info.Size()}, nil
}

func (w *workflow) load(ctx context.Context, in dag.Inputs) (any, error) {
	staged, err := dag.Input[UploadResult](in, ComponentUploadToGCS)
	if err != nil {
		return nil, err
	}
	if w.deps.Loader == nil {
		return nil, apperrors.CollaboratorUnavailable("warehouse", "load", fmt.Errorf("warehouse is not configured"))
	}

	job, err := w.cfg.LoadJob(staged.URI)
	if err != nil {
		return nil, err
	}
	res, err := w.deps.Loader.Load(ctx, job)
	if err != nil {
		return nil, collaboratorError("warehouse", "load "+job.Destination.String(), err)
	}
	return *res, nil
}

// collaboratorError keeps typed errors and wraps the rest as retryable
// COLLABORATOR_UNAVAILABLE errors.
func collaboratorError(collaborator, op string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperrors.CollaboratorUnavailable(collaborator, op, err)
}
