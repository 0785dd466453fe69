// Command etlflow runs one workflow graph to completion.
//
//	etlflow [graph]
//
// The graph defaults to etl_to_bq. The exit status is 0 when every task
// succeeded, 1 when a task failed or was skipped, and 2 when the graph could
// not be built or the process could not start.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/kbukum/etlflow/bootstrap"
	"github.com/kbukum/etlflow/config"
	"github.com/kbukum/etlflow/dag"
	"github.com/kbukum/etlflow/database"
	"github.com/kbukum/etlflow/etl"
	"github.com/kbukum/etlflow/logger"
	"github.com/kbukum/etlflow/observability"
	"github.com/kbukum/etlflow/redis"
	"github.com/kbukum/etlflow/runstore"
	"github.com/kbukum/etlflow/storage"
	"github.com/kbukum/etlflow/warehouse"

	_ "github.com/kbukum/etlflow/runstore/redisstore"
	_ "github.com/kbukum/etlflow/runstore/sqlstore"
	_ "github.com/kbukum/etlflow/storage/gcs"
	_ "github.com/kbukum/etlflow/storage/local"
	_ "github.com/kbukum/etlflow/storage/s3"
	_ "github.com/kbukum/etlflow/warehouse/bigquery"
	_ "github.com/kbukum/etlflow/warehouse/sqlwarehouse"
)

// Exit codes.
const (
	exitSucceeded = 0
	exitFailed    = 1
	exitStartup   = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	if len(args) > 1 {
		fmt.Fprintln(stderr, "usage: etlflow [graph]")
		return exitStartup
	}
	graph := etl.PipelineName
	if len(args) == 1 {
		graph = args[0]
	}

	var cfg AppConfig
	if err := config.LoadConfig("etlflow", &cfg, config.WithConfigFile(os.Getenv("ETLFLOW_CONFIG"))); err != nil {
		fmt.Fprintf(stderr, "etlflow: %v\n", err)
		return exitStartup
	}
	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		fmt.Fprintf(stderr, "etlflow: %v\n", err)
		return exitStartup
	}
	return execute(ctx, app, graph)
}

// graphError reports that the selected graph could not be loaded or built.
type graphError struct {
	graph string
	err   error
}

func (e *graphError) Error() string { return fmt.Sprintf("graph %s: %v", e.graph, e.err) }
func (e *graphError) Unwrap() error { return e.err }

// execute registers the components, runs graph and maps the outcome to an
// exit code.
func execute(ctx context.Context, app *bootstrap.App[*AppConfig], graph string) int {
	cfg := app.Cfg
	log := app.Logger

	shutdownTelemetry, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		log.Error("observability setup failed", logger.ErrorFields("setup", err))
		return exitStartup
	}
	app.OnStop(bootstrap.Hook(shutdownTelemetry))

	db := database.NewComponent(cfg.Database, log)
	rdb := redis.NewComponent(cfg.Redis, log)
	objects := storage.NewComponent(cfg.Storage, nil, log)
	wh := warehouse.NewComponent(cfg.Warehouse, func() warehouse.Deps {
		return warehouse.Deps{Storage: objects.Storage(), DB: db.DB()}
	}, log)
	runs := runstore.NewComponent(cfg.RunStore, func() runstore.Deps {
		return runstore.Deps{DB: db.DB(), Redis: rdb.Client()}
	}, log)

	for _, err := range []error{
		app.RegisterComponent(db),
		app.RegisterComponent(rdb),
		app.RegisterComponent(objects),
		app.RegisterComponent(wh),
		app.RegisterComponent(runs),
	} {
		if err != nil {
			log.Error("component registration failed", logger.ErrorFields("register", err))
			return exitStartup
		}
	}
	app.Summary.AddDetail("graph: %s", graph)

	var status dag.Status
	err = app.RunTask(ctx, func(ctx context.Context) error {
		deps := etl.Deps{Storage: objects.Storage(), Provider: objects.Config().Provider, Loader: wh.Loader()}
		g, err := buildGraph(graph, cfg, etl.NewRegistry(cfg.ETL, deps, log))
		if err != nil {
			return &graphError{graph: graph, err: err}
		}

		rec, err := newExecutor(cfg, log, runs.Store()).Run(ctx, g)
		if rec != nil {
			status = rec.Overall()
		}
		return err
	})

	var startupErr *bootstrap.StartupError
	var buildErr *graphError
	switch {
	case stderrors.As(err, &startupErr), stderrors.As(err, &buildErr):
		log.Error("etlflow could not run", logger.Fields(logger.FieldGraph, graph, logger.FieldError, err.Error()))
		return exitStartup
	case err != nil:
		log.Error("run finished with errors", logger.Fields(logger.FieldGraph, graph, logger.FieldError, err.Error()))
		return exitFailed
	case status != dag.StatusSucceeded:
		return exitFailed
	}
	return exitSucceeded
}

// buildGraph loads graph from pipelines_dir first, then the embedded set.
func buildGraph(graph string, cfg *AppConfig, reg *dag.Registry) (*dag.Graph, error) {
	var loaders dag.ChainLoader
	if cfg.PipelinesDir != "" {
		loaders = append(loaders, dag.NewFilePipelineLoader(cfg.PipelinesDir))
	}
	loaders = append(loaders, etl.Pipelines())

	p, err := loaders.Load(graph)
	if err != nil {
		return nil, err
	}
	return dag.BuildPipeline(p, reg, loaders)
}

func newExecutor(cfg *AppConfig, log *logger.Logger, store runstore.Store) *dag.Executor {
	opts := []dag.Option{
		dag.WithMaxParallel(cfg.MaxParallel),
		dag.WithLogger(log),
		dag.WithStore(store),
		dag.WithObserver(dag.NewLoggingObserver(log)),
	}
	if cfg.Observability.Enabled {
		opts = append(opts, dag.WithObserver(dag.NewTracingObserver()))
		if metrics, err := observability.NewWorkflowMetrics(observability.Meter()); err == nil {
			opts = append(opts, dag.WithObserver(dag.NewMetricsObserver(metrics)))
		} else {
			log.Warn("workflow metrics unavailable", logger.ErrorFields("metrics", err))
		}
	}
	return dag.NewExecutor(opts...)
}
