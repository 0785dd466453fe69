package dag

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StatePending, StateRunning, true},
		{StatePending, StateSkipped, true},
		{StatePending, StateSucceeded, false},
		{StatePending, StateFailed, false},
		{StateRunning, StateRunning, true},
		{StateRunning, StateSucceeded, true},
		{StateRunning, StateFailed, true},
		{StateRunning, StateSkipped, false},
		{StateRunning, StatePending, false},
		{StateSucceeded, StateRunning, false},
		{StateFailed, StateRunning, false},
		{StateSkipped, StateRunning, false},
	}
	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestRunRecord_RejectsIllegalTransition(t *testing.T) {
	now := time.Now()
	rec := newRunRecord("run-1", "g", []string{"a"}, now)

	err := rec.transition("a", StateSucceeded, 1, now, nil, nil)
	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if terr.From != StatePending || terr.To != StateSucceeded {
		t.Errorf("unexpected error fields %+v", terr)
	}
	if st, _ := rec.Status("a"); st != StatePending {
		t.Errorf("state must be unchanged, got %s", st)
	}
	if len(rec.Transitions()) != 0 {
		t.Error("rejected transition must not be logged")
	}
	if err := rec.transition("ghost", StateRunning, 1, now, nil, nil); err == nil {
		t.Error("expected error for unknown task")
	}
}

func TestRunRecord_Lifecycle(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := newRunRecord("run-1", "etl_to_bq", []string{"a", "b"}, start)

	if rec.Overall() != StatusRunning || rec.IsTerminal() {
		t.Fatal("new record must be running")
	}

	steps := []struct {
		task    string
		to      State
		attempt int
	}{
		{"a", StateRunning, 1},
		{"a", StateRunning, 2},
		{"a", StateSucceeded, 2},
		{"b", StateSkipped, 0},
	}
	for i, s := range steps {
		at := start.Add(time.Duration(i+1) * time.Second)
		if err := rec.transition(s.task, s.to, s.attempt, at, "out", nil); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	rec.finish(start.Add(10*time.Second), false)

	a, _ := rec.Entry("a")
	if a.Attempts != 2 || !a.StartedAt.Equal(start.Add(time.Second)) || !a.EndedAt.Equal(start.Add(3*time.Second)) {
		t.Errorf("unexpected entry %+v", a)
	}
	if rec.Overall() != StatusPartial {
		t.Errorf("expected partial, got %s", rec.Overall())
	}
	if got := rec.Summary(); got[StateSucceeded] != 1 || got[StateSkipped] != 1 || got[StatePending] != 0 {
		t.Errorf("unexpected summary %v", got)
	}
	if len(rec.Transitions()) != 4 {
		t.Errorf("expected 4 transitions, got %d", len(rec.Transitions()))
	}
}

func TestRunRecord_SnapshotJSON(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := newRunRecord("run-1", "etl_to_bq", []string{"extract", "upload"}, now)
	_ = rec.transition("extract", StateRunning, 1, now, nil, nil)
	_ = rec.transition("extract", StateSucceeded, 1, now, map[string]int{"rows": 3}, nil)
	_ = rec.transition("upload", StateRunning, 1, now, nil, nil)
	_ = rec.transition("upload", StateFailed, 1, now, nil, &TaskExecutionError{Task: "upload", Attempts: 1, Err: errors.New("refused")})
	rec.finish(now, false)

	data, err := json.Marshal(rec.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.Status != StatusFailed || snap.Graph != "etl_to_bq" {
		t.Errorf("unexpected snapshot header %+v", snap)
	}
	upload, ok := snap.Task("upload")
	if !ok || upload.State != StateFailed || upload.ErrorCode != "TASK_EXECUTION_FAILED" || upload.Error == "" {
		t.Errorf("unexpected upload snapshot %+v", upload)
	}
	if snap.Summary[StateFailed] != 1 {
		t.Errorf("unexpected summary %v", snap.Summary)
	}
	if len(snap.Transitions) != 4 {
		t.Errorf("expected 4 transitions, got %d", len(snap.Transitions))
	}
}
