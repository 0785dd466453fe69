package runstore

import (
	"context"
	"testing"

	"github.com/kbukum/etlflow/dag"
	apperrors "github.com/kbukum/etlflow/errors"
	"github.com/kbukum/etlflow/logger"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"redis with ttl", Config{Backend: BackendRedis, TTL: "1h"}, false},
		{"keep forever", Config{Backend: BackendRedis, TTL: "0s"}, false},
		{"unknown backend", Config{Backend: "mongo"}, true},
		{"bad ttl", Config{TTL: "a week"}, true},
		{"negative ttl", Config{TTL: "-1h"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.ApplyDefaults()
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_Nop(t *testing.T) {
	store, err := New(Config{}, Deps{}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := store.Save(ctx, dag.Snapshot{ID: "r1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_, err = store.Load(ctx, "r1")
	if appErr, ok := apperrors.AsAppError(err); !ok || appErr.Code != apperrors.ErrCodeNotFound {
		t.Errorf("Load = %v, want NOT_FOUND", err)
	}
}

func TestNew_UnregisteredBackend(t *testing.T) {
	if _, err := New(Config{Backend: BackendSQL}, Deps{}, logger.Nop()); err == nil {
		t.Fatal("expected error for unregistered backend")
	}
}

func TestComponent(t *testing.T) {
	c := NewComponent(Config{}, nil, logger.Nop())
	if _, ok := c.Store().(Nop); !ok {
		t.Fatalf("Store before start = %T", c.Store())
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := c.Describe().Details; got != "backend=none" {
		t.Errorf("Describe = %q", got)
	}
}

func TestListOptions_EffectiveLimit(t *testing.T) {
	if got := (ListOptions{}).EffectiveLimit(); got != DefaultListLimit {
		t.Errorf("zero limit = %d", got)
	}
	if got := (ListOptions{Limit: 3}).EffectiveLimit(); got != 3 {
		t.Errorf("limit = %d", got)
	}
}
