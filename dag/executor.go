package dag

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/kbukum/etlflow/logger"
	"github.com/kbukum/etlflow/resilience"
)

// DefaultAttemptGrace is how long a timed-out attempt may take to return
// before it is abandoned.
const DefaultAttemptGrace = 5 * time.Second

// Executor runs graphs.
type Executor struct {
	maxParallel int
	grace       time.Duration
	log         *logger.Logger
	observer    Observer
	store       RecordStore
	now         func() time.Time
	newID       func() string
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxParallel bounds how many tasks run at once. Values below 1 select
// runtime.NumCPU().
func WithMaxParallel(n int) Option {
	return func(e *Executor) { e.maxParallel = n }
}

// WithLogger sets the logger for executor diagnostics.
func WithLogger(log *logger.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// WithObserver adds an observer. Repeated calls add more observers.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		if existing, ok := e.observer.(Observers); ok {
			e.observer = append(existing, o)
			return
		}
		e.observer = Observers{o}
	}
}

// WithStore persists a snapshot of every finished run.
func WithStore(s RecordStore) Option {
	return func(e *Executor) { e.store = s }
}

// WithAttemptGrace sets how long a timed-out attempt may keep running before
// it is abandoned. Values below zero select DefaultAttemptGrace.
func WithAttemptGrace(d time.Duration) Option {
	return func(e *Executor) { e.grace = d }
}

// WithClock replaces time.Now for recorded timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		grace: DefaultAttemptGrace,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxParallel < 1 {
		e.maxParallel = runtime.NumCPU()
	}
	if e.grace < 0 {
		e.grace = DefaultAttemptGrace
	}
	if e.log == nil {
		e.log = logger.GetGlobalLogger()
	}
	e.log = e.log.WithComponent("dag.executor")
	if e.observer == nil {
		e.observer = NopObserver{}
	}
	return e
}

// MaxParallel returns the worker bound.
func (e *Executor) MaxParallel() int { return e.maxParallel }

type eventKind int

const (
	eventAttempt eventKind = iota + 1
	eventAttemptFailed
	eventDone
)

type event struct {
	kind    eventKind
	task    string
	attempt int
	output  any
	err     error
}

// run is the coordinator state of one execution.
type run struct {
	e        *Executor
	g        *Graph
	rec      *RunRecord
	log      *logger.Logger
	events   chan event
	inflight int
	failure  error
}

// Run executes g and returns its record.
//
// Tasks run in dependency order on at most MaxParallel workers. A task whose
// upstream contains a failed or skipped task is skipped. When ctx is
// cancelled, pending tasks are skipped and running tasks see the cancelled
// context; no new attempt starts.
//
// Task failures are reported in the record. The returned error is non-nil only
// when g is nil, the record could not be maintained, or persisting it failed.
func (e *Executor) Run(ctx context.Context, g *Graph) (*RunRecord, error) {
	if g == nil {
		return nil, errors.New("dag: nil graph")
	}

	rec := newRunRecord(e.newID(), g.Name(), g.order, e.now())
	r := &run{
		e:      e,
		g:      g,
		rec:    rec,
		log:    e.log.WithFields(logger.Fields(logger.FieldRunID, rec.ID, logger.FieldGraph, rec.Graph)),
		events: make(chan event, e.maxParallel*2),
	}

	e.observer.RunStarted(ctx, rec)
	cancelled := r.coordinate(ctx)
	rec.finish(e.now(), cancelled)
	e.observer.RunFinished(ctx, rec)

	if r.failure != nil {
		return rec, r.failure
	}
	if e.store != nil {
		if err := e.store.Save(context.WithoutCancel(ctx), rec.Snapshot()); err != nil {
			return rec, fmt.Errorf("dag: saving run %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}

// coordinate owns every record mutation until all tasks are terminal.
// It reports whether ctx was cancelled before the run finished.
func (r *run) coordinate(ctx context.Context) bool {
	workers := pool.New().WithMaxGoroutines(r.e.maxParallel)
	defer workers.Wait()

	done := ctx.Done()
	cancelled := false

	for {
		if !cancelled && ctx.Err() != nil {
			cancelled = true
			done = nil
			r.log.Warn("run cancelled, skipping pending tasks", logger.Fields(logger.FieldError, ctx.Err().Error()))
		}
		r.schedule(ctx, workers, cancelled)

		if r.inflight == 0 {
			return cancelled
		}

		select {
		case ev := <-r.events:
			r.handle(ctx, ev)
		case <-done:
		}
	}
}

// schedule walks the topological order once. Upstream states are final for
// this pass because every dependency precedes its dependents.
func (r *run) schedule(ctx context.Context, workers *pool.Pool, cancelled bool) {
	for _, id := range r.g.order {
		if st, _ := r.rec.Status(id); st != StatePending {
			continue
		}
		if cancelled || r.upstreamBlocked(id) {
			r.skip(ctx, id)
			continue
		}
		if r.upstreamSucceeded(id) && r.inflight < r.e.maxParallel {
			r.dispatch(ctx, workers, id)
		}
	}
}

func (r *run) upstreamBlocked(id string) bool {
	for _, up := range r.g.upstream[id] {
		if st, _ := r.rec.Status(up); st == StateFailed || st == StateSkipped {
			return true
		}
	}
	return false
}

func (r *run) upstreamSucceeded(id string) bool {
	for _, up := range r.g.upstream[id] {
		if st, _ := r.rec.Status(up); st != StateSucceeded {
			return false
		}
	}
	return true
}

func (r *run) skip(ctx context.Context, id string) {
	if !r.apply(id, StateSkipped, 0, nil, nil) {
		return
	}
	r.e.observer.TaskFinished(ctx, TaskEvent{RunID: r.rec.ID, Graph: r.rec.Graph, Task: id, State: StateSkipped})
}

func (r *run) dispatch(ctx context.Context, workers *pool.Pool, id string) {
	if !r.apply(id, StateRunning, 1, nil, nil) {
		return
	}
	r.inflight++
	r.e.observer.TaskStarted(ctx, TaskEvent{RunID: r.rec.ID, Graph: r.rec.Graph, Task: id, Attempt: 1, State: StateRunning})

	task := r.g.tasks[id]
	in := make(Inputs, len(r.g.upstream[id]))
	for _, up := range r.g.upstream[id] {
		in[up] = r.rec.output(up)
	}

	workers.Go(func() {
		r.work(ctx, task, in)
	})
}

func (r *run) handle(ctx context.Context, ev event) {
	base := TaskEvent{RunID: r.rec.ID, Graph: r.rec.Graph, Task: ev.task, Attempt: ev.attempt}

	switch ev.kind {
	case eventAttempt:
		if r.apply(ev.task, StateRunning, ev.attempt, nil, nil) {
			base.State = StateRunning
			r.e.observer.TaskStarted(ctx, base)
		}
	case eventAttemptFailed:
		base.State = StateRunning
		base.Err = ev.err
		r.e.observer.AttemptFailed(ctx, base)
	case eventDone:
		r.inflight--
		to := StateSucceeded
		if ev.err != nil {
			to = StateFailed
		}
		if r.apply(ev.task, to, ev.attempt, ev.output, ev.err) {
			entry, _ := r.rec.Entry(ev.task)
			base.State = to
			base.Err = ev.err
			base.Duration = entry.EndedAt.Sub(entry.StartedAt)
			r.e.observer.TaskFinished(ctx, base)
		}
	}
}

// apply records a transition; an illegal one is kept as the run's failure.
func (r *run) apply(id string, to State, attempt int, output any, err error) bool {
	if terr := r.rec.transition(id, to, attempt, r.e.now(), output, err); terr != nil {
		r.log.Error("record transition rejected", logger.Fields(logger.FieldTask, id, logger.FieldError, terr.Error()))
		if r.failure == nil {
			r.failure = terr
		}
		return false
	}
	return true
}

// work runs on a pool goroutine. It talks to the coordinator only through events.
func (r *run) work(ctx context.Context, t *Task, in Inputs) {
	attempts := 0
	out, err := resilience.Retry(ctx, resilience.RetryConfig{
		Policy: t.Retry,
		// Every failure is retried, timeouts included, until the run is cancelled.
		// An abandoned attempt may still be running, so it is never retried.
		RetryIf: func(err error) bool {
			var te *TimeoutError
			if errors.As(err, &te) && te.Abandoned {
				return false
			}
			return ctx.Err() == nil
		},
	}, func(ctx context.Context, attempt int) (any, error) {
		attempts = attempt
		if attempt > 1 {
			r.events <- event{kind: eventAttempt, task: t.ID, attempt: attempt}
		}
		out, err := runAttempt(ctx, t, in, attempt, r.e.grace)
		if err != nil {
			r.events <- event{kind: eventAttemptFailed, task: t.ID, attempt: attempt, err: err}
		}
		return out, err
	})

	if err != nil {
		// attempts stays 0 when the run was cancelled before the first attempt.
		err = &TaskExecutionError{Task: t.ID, Attempts: attempts, Err: err}
		out = nil
	}
	r.events <- event{kind: eventDone, task: t.ID, attempt: attempts, output: out, err: err}
}

type attemptResult struct {
	out any
	err error
}

// runAttempt calls t.Run once, bounded by t.Timeout. After the deadline the
// attempt keeps its worker slot until t.Run returns or grace elapses, so two
// attempts of one task never overlap.
func runAttempt(ctx context.Context, t *Task, in Inputs, attempt int, grace time.Duration) (any, error) {
	if t.Timeout <= 0 {
		return safeRun(ctx, t, in)
	}

	actx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	result := make(chan attemptResult, 1)
	go func() {
		out, err := safeRun(actx, t, in)
		result <- attemptResult{out: out, err: err}
	}()

	select {
	case res := <-result:
		if res.err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Task: t.ID, Attempt: attempt, Timeout: t.Timeout}
		}
		return res.out, res.err
	case <-actx.Done():
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case res := <-result:
		if ctx.Err() != nil {
			return res.out, res.err
		}
		return nil, &TimeoutError{Task: t.ID, Attempt: attempt, Timeout: t.Timeout}
	case <-timer.C:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TimeoutError{Task: t.ID, Attempt: attempt, Timeout: t.Timeout, Abandoned: true}
	}
}

func safeRun(ctx context.Context, t *Task, in Inputs) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("dag: task %q panicked: %v", t.ID, p)
		}
	}()
	return t.Run(ctx, in)
}
