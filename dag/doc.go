// Package dag builds task dependency graphs and executes them.
//
// A graph is built once from tasks and their declared dependencies. Build
// rejects unknown dependencies, duplicate identifiers and cycles before anything
// runs:
//
//	g, err := dag.Build(
//	    &dag.Task{ID: "extract_and_clean", Run: clean},
//	    &dag.Task{ID: "upload_to_gcs", Run: upload, DependsOn: []string{"extract_and_clean"}},
//	)
//
// An Executor runs a graph in dependency order with bounded parallelism,
// retries each task per its resilience.Policy and records every state
// transition in a fresh RunRecord:
//
//	rec, err := dag.NewExecutor(dag.WithMaxParallel(4)).Run(ctx, g)
//	fmt.Println(rec.Overall())
//
// A task whose upstream failed or was skipped is skipped without running.
// Task failures are reported in the record, not as the returned error.
//
// Graphs can also be declared in YAML pipelines whose task components are
// looked up in a Registry.
package dag
