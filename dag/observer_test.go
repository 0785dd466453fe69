package dag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/etlflow/logger"
	"github.com/kbukum/etlflow/observability"
	"github.com/kbukum/etlflow/resilience"
)

type recordingObserver struct {
	NopObserver
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) add(s string) {
	o.mu.Lock()
	o.events = append(o.events, s)
	o.mu.Unlock()
}

func (o *recordingObserver) RunStarted(context.Context, *RunRecord) { o.add("run:start") }
func (o *recordingObserver) TaskStarted(_ context.Context, ev TaskEvent) {
	o.add("start:" + ev.Task)
}
func (o *recordingObserver) AttemptFailed(_ context.Context, ev TaskEvent) {
	o.add("fail:" + ev.Task)
}
func (o *recordingObserver) TaskFinished(_ context.Context, ev TaskEvent) {
	o.add("finish:" + ev.Task + ":" + string(ev.State))
}
func (o *recordingObserver) RunFinished(_ context.Context, rec *RunRecord) {
	o.add("run:" + string(rec.Overall()))
}

func failingGraph(t *testing.T) *Graph {
	return mustBuild(t,
		&Task{ID: "a", Retry: resilience.Policy{MaxAttempts: 2}, Run: func(context.Context, Inputs) (any, error) {
			return nil, errors.New("nope")
		}},
		task("b", "a"),
	)
}

func TestObserver_EventSequence(t *testing.T) {
	obs := &recordingObserver{}
	second := &recordingObserver{}
	mustRun(t, newTestExecutor(WithObserver(obs), WithObserver(second)), failingGraph(t))

	want := []string{
		"run:start",
		"start:a", "fail:a",
		"start:a", "fail:a",
		"finish:a:failed",
		"finish:b:skipped",
		"run:failed",
	}
	if strings.Join(obs.events, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, obs.events)
	}
	if len(second.events) != len(want) {
		t.Errorf("second observer: expected %d events, got %d", len(want), len(second.events))
	}
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "etlflow", &buf)

	mustRun(t, newTestExecutor(WithObserver(NewLoggingObserver(log))), failingGraph(t))

	var messages []string
	var sawAttempt bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		messages = append(messages, entry["message"].(string))
		if entry["message"] == "task attempt failed" && entry[logger.FieldAttempt] != nil {
			sawAttempt = true
		}
		if entry[logger.FieldRunID] == nil {
			t.Errorf("log line without run id: %s", line)
		}
	}

	for _, want := range []string{"run started", "task started", "task retrying", "task failed", "task skipped", "run finished"} {
		found := false
		for _, m := range messages {
			if m == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing log message %q in %v", want, messages)
		}
	}
	if !sawAttempt {
		t.Error("expected attempt field on failed attempts")
	}
}

func TestTracingObserver(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	mustRun(t, newTestExecutor(WithObserver(NewTracingObserverWith(tp.Tracer("test")))), failingGraph(t))

	ended := recorder.Ended()
	if len(ended) != 3 {
		t.Fatalf("expected run span and two task spans, got %d", len(ended))
	}

	var runSpan sdktrace.ReadOnlySpan
	for _, s := range ended {
		if s.Name() == observability.SpanRun {
			runSpan = s
		}
	}
	if runSpan == nil {
		t.Fatal("missing run span")
	}
	for _, s := range ended {
		if s.Name() == observability.SpanTask && s.Parent().SpanID() != runSpan.SpanContext().SpanID() {
			t.Errorf("task span %v is not a child of the run span", s.Attributes())
		}
	}
}

func TestMetricsObserver(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observability.NewWorkflowMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}

	mustRun(t, newTestExecutor(WithObserver(NewMetricsObserver(metrics))), failingGraph(t))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if s, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}

	if sums["etlflow.task.attempts"] != 2 || sums["etlflow.task.attempt_failures"] != 2 {
		t.Errorf("unexpected attempt counts %v", sums)
	}
	if sums["etlflow.task.total"] != 2 || sums["etlflow.run.total"] != 1 {
		t.Errorf("unexpected totals %v", sums)
	}
}
