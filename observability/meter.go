package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/etlflow/logger"
)

// InitMeter installs an OTLP/HTTP meter provider as the global provider.
// The returned provider must be shut down on exit.
func InitMeter(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricInterval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(newResource(cfg)),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"interval", cfg.MetricInterval.String(),
	))
	return mp, nil
}

// Meter returns the etlflow meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(InstrumentationName)
}

// WorkflowMetrics holds the instruments recorded while graphs execute.
type WorkflowMetrics struct {
	attempts     metric.Int64Counter
	failures     metric.Int64Counter
	tasks        metric.Int64Counter
	taskDuration metric.Float64Histogram
	runs         metric.Int64Counter
	runDuration  metric.Float64Histogram
}

// NewWorkflowMetrics creates the workflow instruments on meter.
func NewWorkflowMetrics(meter metric.Meter) (*WorkflowMetrics, error) {
	attempts, err := meter.Int64Counter("etlflow.task.attempts",
		metric.WithDescription("Task attempts started"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating etlflow.task.attempts counter: %w", err)
	}

	failures, err := meter.Int64Counter("etlflow.task.attempt_failures",
		metric.WithDescription("Task attempts that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating etlflow.task.attempt_failures counter: %w", err)
	}

	tasks, err := meter.Int64Counter("etlflow.task.total",
		metric.WithDescription("Tasks reaching a terminal state"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating etlflow.task.total counter: %w", err)
	}

	taskDuration, err := meter.Float64Histogram("etlflow.task.duration",
		metric.WithDescription("Task duration across all attempts"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating etlflow.task.duration histogram: %w", err)
	}

	runs, err := meter.Int64Counter("etlflow.run.total",
		metric.WithDescription("Completed runs by overall status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating etlflow.run.total counter: %w", err)
	}

	runDuration, err := meter.Float64Histogram("etlflow.run.duration",
		metric.WithDescription("Run duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating etlflow.run.duration histogram: %w", err)
	}

	return &WorkflowMetrics{
		attempts:     attempts,
		failures:     failures,
		tasks:        tasks,
		taskDuration: taskDuration,
		runs:         runs,
		runDuration:  runDuration,
	}, nil
}

// RecordAttempt counts a started attempt.
func (m *WorkflowMetrics) RecordAttempt(ctx context.Context, graph, task string) {
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGraph, graph),
		attribute.String(AttrTask, task),
	))
}

// RecordAttemptFailure counts a failed attempt.
func (m *WorkflowMetrics) RecordAttemptFailure(ctx context.Context, graph, task string) {
	m.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGraph, graph),
		attribute.String(AttrTask, task),
	))
}

// RecordTask records a task reaching terminal state.
func (m *WorkflowMetrics) RecordTask(ctx context.Context, graph, task, state string, duration time.Duration) {
	m.tasks.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGraph, graph),
		attribute.String(AttrTask, task),
		attribute.String(AttrState, state),
	))
	if duration > 0 {
		m.taskDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String(AttrGraph, graph),
			attribute.String(AttrTask, task),
		))
	}
}

// RecordRun records a finished run.
func (m *WorkflowMetrics) RecordRun(ctx context.Context, graph, status string, duration time.Duration) {
	m.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGraph, graph),
		attribute.String(AttrStatus, status),
	))
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrGraph, graph),
	))
}
