// Package observability wires OpenTelemetry tracing and metrics for etlflow.
//
// When no endpoint is configured the global no-op providers stay in place and
// every span and instrument is free. With an endpoint, OTLP/HTTP exporters are
// installed as the global providers:
//
//	shutdown, err := observability.Setup(ctx, cfg)
//	defer shutdown(context.Background())
//
// Workflow instruments (task attempts, task duration, run outcome) live in
// WorkflowMetrics.
package observability
