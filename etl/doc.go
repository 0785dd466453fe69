// Package etl wires the etl_to_bq workflow: clean a raw CSV export, stage
// the cleaned file in object storage, then load it into a warehouse table.
//
//	reg := etl.NewRegistry(cfg, etl.Deps{Storage: st, Provider: "gcs", Loader: wh}, log)
//	g, err := dag.BuildPipeline(etl.DefaultPipeline(), reg, etl.Pipelines())
//	rec, err := dag.NewExecutor().Run(ctx, g)
package etl
