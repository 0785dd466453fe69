package dag

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/etlflow/logger"
	"github.com/kbukum/etlflow/observability"
)

// TaskEvent describes a task lifecycle event.
type TaskEvent struct {
	RunID   string
	Graph   string
	Task    string
	Attempt int
	State   State
	Err     error
	// Duration is set on TaskFinished for tasks that ran.
	Duration time.Duration
}

// Observer receives execution events. Calls are made from the executor's
// coordinator goroutine, one at a time per run; implementations must not block.
type Observer interface {
	RunStarted(ctx context.Context, rec *RunRecord)
	// TaskStarted is called at the start of every attempt.
	TaskStarted(ctx context.Context, ev TaskEvent)
	AttemptFailed(ctx context.Context, ev TaskEvent)
	// TaskFinished is called once per task when it reaches a terminal state.
	TaskFinished(ctx context.Context, ev TaskEvent)
	RunFinished(ctx context.Context, rec *RunRecord)
}

// NopObserver ignores every event. Embed it to implement a subset of Observer.
type NopObserver struct{}

func (NopObserver) RunStarted(context.Context, *RunRecord)   {}
func (NopObserver) TaskStarted(context.Context, TaskEvent)   {}
func (NopObserver) AttemptFailed(context.Context, TaskEvent) {}
func (NopObserver) TaskFinished(context.Context, TaskEvent)  {}
func (NopObserver) RunFinished(context.Context, *RunRecord)  {}

// Observers fans events out to each observer in order.
type Observers []Observer

func (o Observers) RunStarted(ctx context.Context, rec *RunRecord) {
	for _, obs := range o {
		obs.RunStarted(ctx, rec)
	}
}

func (o Observers) TaskStarted(ctx context.Context, ev TaskEvent) {
	for _, obs := range o {
		obs.TaskStarted(ctx, ev)
	}
}

func (o Observers) AttemptFailed(ctx context.Context, ev TaskEvent) {
	for _, obs := range o {
		obs.AttemptFailed(ctx, ev)
	}
}

func (o Observers) TaskFinished(ctx context.Context, ev TaskEvent) {
	for _, obs := range o {
		obs.TaskFinished(ctx, ev)
	}
}

func (o Observers) RunFinished(ctx context.Context, rec *RunRecord) {
	for _, obs := range o {
		obs.RunFinished(ctx, rec)
	}
}

// LoggingObserver logs task and run events.
type LoggingObserver struct {
	log *logger.Logger
}

// NewLoggingObserver returns an observer that logs to log.
func NewLoggingObserver(log *logger.Logger) *LoggingObserver {
	return &LoggingObserver{log: log.WithComponent("dag")}
}

func (o *LoggingObserver) RunStarted(_ context.Context, rec *RunRecord) {
	o.log.Info("run started", logger.Fields(
		logger.FieldRunID, rec.ID,
		logger.FieldGraph, rec.Graph,
		"tasks", len(rec.Tasks()),
	))
}

func (o *LoggingObserver) TaskStarted(_ context.Context, ev TaskEvent) {
	msg := "task started"
	if ev.Attempt > 1 {
		msg = "task retrying"
	}
	o.log.Info(msg, eventFields(ev))
}

func (o *LoggingObserver) AttemptFailed(_ context.Context, ev TaskEvent) {
	o.log.Warn("task attempt failed", eventFields(ev))
}

func (o *LoggingObserver) TaskFinished(_ context.Context, ev TaskEvent) {
	fields := eventFields(ev)
	switch ev.State {
	case StateFailed:
		o.log.Error("task failed", fields)
	case StateSkipped:
		o.log.Warn("task skipped", fields)
	default:
		o.log.Info("task succeeded", fields)
	}
}

func (o *LoggingObserver) RunFinished(_ context.Context, rec *RunRecord) {
	fields := logger.Fields(
		logger.FieldRunID, rec.ID,
		logger.FieldGraph, rec.Graph,
		logger.FieldStatus, string(rec.Overall()),
		logger.FieldDuration, rec.EndedAt().Sub(rec.StartedAt).Milliseconds(),
		"cancelled", rec.Cancelled(),
	)
	for state, n := range rec.Summary() {
		fields[string(state)] = n
	}
	if rec.Overall() == StatusSucceeded {
		o.log.Info("run finished", fields)
	} else {
		o.log.Warn("run finished", fields)
	}
}

func eventFields(ev TaskEvent) map[string]interface{} {
	fields := logger.Fields(
		logger.FieldRunID, ev.RunID,
		logger.FieldTask, ev.Task,
		logger.FieldState, string(ev.State),
	)
	if ev.Attempt > 0 {
		fields[logger.FieldAttempt] = ev.Attempt
	}
	if ev.Duration > 0 {
		fields[logger.FieldDuration] = ev.Duration.Milliseconds()
	}
	if ev.Err != nil {
		fields[logger.FieldError] = ev.Err.Error()
	}
	return fields
}

// TracingObserver records a span per run and a child span per task.
// Failed attempts are recorded as span events.
type TracingObserver struct {
	tracer trace.Tracer

	mu    sync.Mutex
	runs  map[string]runSpan
	tasks map[string]trace.Span
}

type runSpan struct {
	ctx  context.Context
	span trace.Span
}

// NewTracingObserver returns a tracing observer using the global tracer provider.
func NewTracingObserver() *TracingObserver {
	return NewTracingObserverWith(observability.Tracer())
}

// NewTracingObserverWith returns a tracing observer using tracer.
func NewTracingObserverWith(tracer trace.Tracer) *TracingObserver {
	return &TracingObserver{
		tracer: tracer,
		runs:   make(map[string]runSpan),
		tasks:  make(map[string]trace.Span),
	}
}

func (o *TracingObserver) RunStarted(ctx context.Context, rec *RunRecord) {
	ctx, span := o.tracer.Start(ctx, observability.SpanRun, trace.WithAttributes(
		attribute.String(observability.AttrRunID, rec.ID),
		attribute.String(observability.AttrGraph, rec.Graph),
	))
	o.mu.Lock()
	o.runs[rec.ID] = runSpan{ctx: ctx, span: span}
	o.mu.Unlock()
}

func (o *TracingObserver) TaskStarted(ctx context.Context, ev TaskEvent) {
	key := ev.RunID + "/" + ev.Task

	o.mu.Lock()
	defer o.mu.Unlock()

	if span, ok := o.tasks[key]; ok {
		span.AddEvent("retry", trace.WithAttributes(attribute.Int(observability.AttrAttempt, ev.Attempt)))
		return
	}
	if run, ok := o.runs[ev.RunID]; ok {
		ctx = run.ctx
	}
	_, span := o.tracer.Start(ctx, observability.SpanTask, trace.WithAttributes(
		attribute.String(observability.AttrRunID, ev.RunID),
		attribute.String(observability.AttrTask, ev.Task),
	))
	o.tasks[key] = span
}

func (o *TracingObserver) AttemptFailed(_ context.Context, ev TaskEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if span, ok := o.tasks[ev.RunID+"/"+ev.Task]; ok && ev.Err != nil {
		span.RecordError(ev.Err, trace.WithAttributes(attribute.Int(observability.AttrAttempt, ev.Attempt)))
	}
}

func (o *TracingObserver) TaskFinished(ctx context.Context, ev TaskEvent) {
	key := ev.RunID + "/" + ev.Task

	o.mu.Lock()
	defer o.mu.Unlock()

	span, ok := o.tasks[key]
	if !ok {
		// Skipped tasks never started; give them a zero-length span.
		if run, found := o.runs[ev.RunID]; found {
			ctx = run.ctx
		}
		_, span = o.tracer.Start(ctx, observability.SpanTask, trace.WithAttributes(
			attribute.String(observability.AttrRunID, ev.RunID),
			attribute.String(observability.AttrTask, ev.Task),
		))
	}
	delete(o.tasks, key)

	span.SetAttributes(
		attribute.String(observability.AttrState, string(ev.State)),
		attribute.Int(observability.AttrAttempt, ev.Attempt),
	)
	if ev.State == StateFailed {
		observability.SetSpanError(span, ev.Err)
	}
	span.End()
}

func (o *TracingObserver) RunFinished(_ context.Context, rec *RunRecord) {
	o.mu.Lock()
	run, ok := o.runs[rec.ID]
	delete(o.runs, rec.ID)
	o.mu.Unlock()
	if !ok {
		return
	}
	run.span.SetAttributes(attribute.String(observability.AttrStatus, string(rec.Overall())))
	run.span.End()
}

// MetricsObserver records workflow metrics.
type MetricsObserver struct {
	NopObserver
	metrics *observability.WorkflowMetrics
}

// NewMetricsObserver returns an observer recording into metrics.
func NewMetricsObserver(metrics *observability.WorkflowMetrics) *MetricsObserver {
	return &MetricsObserver{metrics: metrics}
}

func (o *MetricsObserver) TaskStarted(ctx context.Context, ev TaskEvent) {
	o.metrics.RecordAttempt(ctx, ev.Graph, ev.Task)
}

func (o *MetricsObserver) AttemptFailed(ctx context.Context, ev TaskEvent) {
	o.metrics.RecordAttemptFailure(ctx, ev.Graph, ev.Task)
}

func (o *MetricsObserver) TaskFinished(ctx context.Context, ev TaskEvent) {
	o.metrics.RecordTask(ctx, ev.Graph, ev.Task, string(ev.State), ev.Duration)
}

func (o *MetricsObserver) RunFinished(ctx context.Context, rec *RunRecord) {
	o.metrics.RecordRun(ctx, rec.Graph, string(rec.Overall()), rec.EndedAt().Sub(rec.StartedAt))
}
