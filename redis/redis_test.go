package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/etlflow/component"
	"github.com/kbukum/etlflow/logger"
)

type runDoc struct {
	ID    string   `json:"id"`
	Tasks []string `json:"tasks"`
}

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)

	client, err := New(Config{Enabled: true, Addr: mini.Addr()}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, mini
}

func TestTypedStore_SaveAndLoad(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[runDoc](client, "etlflow:runs")
	ctx := context.Background()

	if err := store.Save(ctx, "r1", &runDoc{ID: "r1", Tasks: []string{"a", "b"}}, 0); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx, "r1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || got.ID != "r1" || len(got.Tasks) != 2 {
		t.Fatalf("got %+v", got)
	}
	if !mini.Exists("etlflow:runs:r1") {
		t.Error("expected prefixed key")
	}
}

func TestTypedStore_Missing(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[runDoc](client, "")

	got, err := store.Load(context.Background(), "nope")
	if err != nil || got != nil {
		t.Fatalf("Load missing = %+v, %v", got, err)
	}
	if store.Key("nope") != "nope" {
		t.Errorf("Key without prefix = %q", store.Key("nope"))
	}
}

func TestTypedStore_TTLAndDelete(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[runDoc](client, "t")
	ctx := context.Background()

	store.Save(ctx, "ttl", &runDoc{ID: "ttl"}, 2*time.Second)
	store.Save(ctx, "keep", &runDoc{ID: "keep"}, 0)
	mini.FastForward(3 * time.Second)

	if got, _ := store.Load(ctx, "ttl"); got != nil {
		t.Errorf("expected expiry, got %+v", got)
	}
	if err := store.Delete(ctx, "keep"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := store.Load(ctx, "keep"); got != nil {
		t.Errorf("expected deletion, got %+v", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled skips checks", Config{Addr: ""}, false},
		{"defaults", Config{Enabled: true}, false},
		{"bad duration", Config{Enabled: true, DialTimeout: "soon"}, true},
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

func TestComponent_Lifecycle(t *testing.T) {
	mini := miniredis.RunT(t)
	c := NewComponent(Config{Enabled: true, Addr: mini.Addr()}, logger.Nop())
	ctx := context.Background()

	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("health before start = %s", h.Status)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("health after start = %s (%s)", h.Status, h.Message)
	}
	if c.Client() == nil {
		t.Fatal("client not set")
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestComponent_StartUnreachable(t *testing.T) {
	mini := miniredis.RunT(t)
	addr := mini.Addr()
	mini.Close()

	c := NewComponent(Config{Enabled: true, Addr: addr, DialTimeout: "100ms", MaxRetries: 1}, logger.Nop())
	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
}
