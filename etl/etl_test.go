package etl

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"

	"github.com/kbukum/etlflow/dag"
	"github.com/kbukum/etlflow/database"
	apperrors "github.com/kbukum/etlflow/errors"
	"github.com/kbukum/etlflow/logger"
	"github.com/kbukum/etlflow/storage"
	"github.com/kbukum/etlflow/storage/local"
	"github.com/kbukum/etlflow/warehouse"
	"github.com/kbukum/etlflow/warehouse/sqlwarehouse"
)

const rawProducts = `product_id,name,price
1,Widget,9.99
2,,4.50
3,Gadget,NaN
4,Doohickey,1.25
`

// flakyStorage fails the first failUploads uploads, then stores in memory.
type flakyStorage struct {
	storage.Storage
	mu          sync.Mutex
	failUploads int
	uploads     int
	objects     map[string][]byte
}

func (s *flakyStorage) Upload(_ context.Context, path string, r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.uploads <= s.failUploads {
		return stderrors.New("503 service unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[path] = data
	return nil
}

type recordingLoader struct {
	mu   sync.Mutex
	jobs []warehouse.LoadJob
	err  error
}

func (l *recordingLoader) Load(_ context.Context, job warehouse.LoadJob) (*warehouse.JobResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jobs = append(l.jobs, job)
	if l.err != nil {
		return nil, l.err
	}
	return &warehouse.JobResult{JobID: "job-1", Destination: job.Destination, RowsLoaded: 2}, nil
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "raw_products.csv")
	if err := os.WriteFile(src, []byte(rawProducts), 0o600); err != nil {
		t.Fatal(err)
	}
	return Config{SourcePath: src, CleanedPath: filepath.Join(dir, "out", "products_cleaned.csv")}
}

// fastPipeline is the default pipeline with millisecond backoffs.
func fastPipeline() *dag.Pipeline {
	p := DefaultPipeline()
	for i := range p.Tasks {
		if p.Tasks[i].Retry != nil {
			p.Tasks[i].Retry.Backoff.Initial = time.Millisecond
			p.Tasks[i].Retry.Backoff.Max = time.Millisecond
		}
	}
	return p
}

func run(t *testing.T, cfg Config, deps Deps) *dag.RunRecord {
	t.Helper()
	g, err := dag.BuildPipeline(fastPipeline(), NewRegistry(cfg, deps, logger.Nop()), Pipelines())
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	rec, err := dag.NewExecutor(dag.WithLogger(logger.Nop())).Run(context.Background(), g)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return rec
}

func TestDefaultPipeline(t *testing.T) {
	p := DefaultPipeline()
	if p.Name != PipelineName {
		t.Fatalf("Name = %q", p.Name)
	}
	want := []string{ComponentExtractAndClean, ComponentUploadToGCS, ComponentLoadToBigQuery}
	if len(p.Tasks) != len(want) {
		t.Fatalf("tasks = %d", len(p.Tasks))
	}
	for i, def := range p.Tasks {
		if def.TaskID() != want[i] || def.Component != want[i] {
			t.Errorf("task %d = %+v", i, def)
		}
	}
	for _, def := range p.Tasks[1:] {
		if def.Retry == nil || def.Retry.MaxAttempts != 3 || def.Retry.Backoff.Initial != 2*time.Second {
			t.Errorf("%s retry = %+v", def.TaskID(), def.Retry)
		}
	}

	g, err := dag.BuildPipeline(p, NewRegistry(Config{}, Deps{}, logger.Nop()), Pipelines())
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	if got := strings.Join(g.Order(), ","); got != strings.Join(want, ",") {
		t.Errorf("order = %s", got)
	}
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	job, err := cfg.LoadJob("gs://my-airflow-etl-bucket/products_cleaned.csv")
	if err != nil {
		t.Fatalf("LoadJob: %v", err)
	}
	if job.SourceFormat != warehouse.FormatCSV || !job.Autodetect || job.SkipLeadingRows != 1 ||
		job.WriteDisposition != warehouse.WriteTruncate || job.Location != "US" {
		t.Errorf("job = %+v", job)
	}
	if job.Destination.String() != "third-flare-464317-r8.demo_etl.products_cleaned" {
		t.Errorf("destination = %s", job.Destination)
	}
}

func TestConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Config)
		field string
	}{
		{"bad disposition", func(c *Config) { c.Load.WriteDisposition = "WRITE_SOMETIMES" }, "write_disposition"},
		{"bad table", func(c *Config) { c.Destination.TableID = "products cleaned" }, "destination.table_id"},
		{"negative skip", func(c *Config) { n := -1; c.Load.SkipLeadingRows = &n }, "skip_leading_rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mod(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.field) {
				t.Fatalf("Validate() = %v, want error on %s", err, tt.field)
			}
		})
	}
}

func TestWorkflow_Succeeds(t *testing.T) {
	cfg := testConfig(t)
	st := &flakyStorage{}
	loader := &recordingLoader{}

	rec := run(t, cfg, Deps{Storage: st, Provider: storage.ProviderGCS, Loader: loader})
	if rec.Overall() != dag.StatusSucceeded {
		t.Fatalf("overall = %s, summary %v", rec.Overall(), rec.Summary())
	}

	cleaned := st.objects[DefaultObjectName]
	want := "product_id,name,price\n1,Widget,9.99\n4,Doohickey,1.25\n"
	if string(cleaned) != want {
		t.Errorf("uploaded object = %q, want %q", cleaned, want)
	}

	if len(loader.jobs) != 1 {
		t.Fatalf("load jobs = %d", len(loader.jobs))
	}
	if uri := loader.jobs[0].SourceURIs[0]; uri != "gs://my-airflow-etl-bucket/products_cleaned.csv" {
		t.Errorf("source uri = %s", uri)
	}

	entry, _ := rec.Entry(ComponentExtractAndClean)
	stats := entry.Output.(CleanResult).Stats
	if stats.RowsRead != 4 || stats.RowsKept != 2 || stats.RowsDropped != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWorkflow_RetriesTransientUpload(t *testing.T) {
	cfg := testConfig(t)
	st := &flakyStorage{failUploads: 2}

	rec := run(t, cfg, Deps{Storage: st, Provider: storage.ProviderGCS, Loader: &recordingLoader{}})
	if rec.Overall() != dag.StatusSucceeded {
		t.Fatalf("overall = %s", rec.Overall())
	}
	entry, _ := rec.Entry(ComponentUploadToGCS)
	if entry.Attempts != 3 {
		t.Errorf("upload attempts = %d, want 3", entry.Attempts)
	}
}

func TestWorkflow_UploadExhaustsRetries(t *testing.T) {
	cfg := testConfig(t)
	loader := &recordingLoader{}
	rec := run(t, cfg, Deps{Storage: &flakyStorage{failUploads: 10}, Provider: storage.ProviderGCS, Loader: loader})

	if rec.Overall() != dag.StatusFailed {
		t.Fatalf("overall = %s", rec.Overall())
	}
	upload, _ := rec.Entry(ComponentUploadToGCS)
	var execErr *dag.TaskExecutionError
	if !stderrors.As(upload.Err, &execErr) || execErr.Attempts != 3 {
		t.Fatalf("upload err = %v", upload.Err)
	}
	if appErr, ok := apperrors.AsAppError(upload.Err); !ok || appErr.Code != apperrors.ErrCodeCollaboratorUnavailable {
		t.Errorf("cause = %v, want COLLABORATOR_UNAVAILABLE", upload.Err)
	}
	if state, _ := rec.Status(ComponentLoadToBigQuery); state != dag.StateSkipped {
		t.Errorf("load state = %s, want skipped", state)
	}
	if len(loader.jobs) != 0 {
		t.Error("loader must not run")
	}
}

func TestWorkflow_MissingSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.SourcePath = filepath.Join(t.TempDir(), "absent.csv")
	rec := run(t, cfg, Deps{Storage: &flakyStorage{}, Provider: storage.ProviderGCS, Loader: &recordingLoader{}})

	if rec.Overall() != dag.StatusFailed {
		t.Fatalf("overall = %s", rec.Overall())
	}
	summary := rec.Summary()
	if summary[dag.StateFailed] != 1 || summary[dag.StateSkipped] != 2 {
		t.Errorf("summary = %v", summary)
	}
}

func TestWorkflow_LoaderErrorWrapped(t *testing.T) {
	cfg := testConfig(t)
	loader := &recordingLoader{err: stderrors.New("connection reset")}
	rec := run(t, cfg, Deps{Storage: &flakyStorage{}, Provider: storage.ProviderGCS, Loader: loader})

	if len(loader.jobs) != 3 {
		t.Errorf("load attempts = %d, want 3", len(loader.jobs))
	}
	entry, _ := rec.Entry(ComponentLoadToBigQuery)
	if appErr, ok := apperrors.AsAppError(entry.Err); !ok || appErr.Code != apperrors.ErrCodeCollaboratorUnavailable {
		t.Errorf("err = %v", entry.Err)
	}
}

// TestWorkflow_LocalAndSQL runs the workflow end to end against filesystem
// storage and an in-memory SQLite warehouse, twice.
func TestWorkflow_LocalAndSQL(t *testing.T) {
	cfg := testConfig(t)
	objects, err := local.NewStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	dbCfg := database.Config{Enabled: true, LogLevel: "silent"}
	dbCfg.ApplyDefaults()
	db, err := database.NewWithContext(context.Background(), sqlite.Open(dbCfg.DSN), dbCfg, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	deps := Deps{Storage: objects, Provider: storage.ProviderLocal, Loader: sqlwarehouse.New(db, objects, logger.Nop())}
	for i := 0; i < 2; i++ {
		rec := run(t, cfg, deps)
		if rec.Overall() != dag.StatusSucceeded {
			entry, _ := rec.Entry(ComponentLoadToBigQuery)
			t.Fatalf("run %d overall = %s (%v)", i+1, rec.Overall(), entry.Err)
		}
	}

	var rows int64
	table := sqlwarehouse.TableName(warehouse.TableRef{DatasetID: DefaultDatasetID, TableID: DefaultTableID})
	if err := db.GormDB.Table(table).Count(&rows).Error; err != nil {
		t.Fatal(err)
	}
	if rows != 2 {
		t.Errorf("rows after two truncating runs = %d, want 2", rows)
	}

	rc, err := objects.Download(context.Background(), DefaultObjectName)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	buf.ReadFrom(rc)
	if !strings.HasPrefix(buf.String(), "product_id,name,price\n") {
		t.Errorf("staged object = %q", buf.String())
	}
}
