package dag

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	apperrors "github.com/kbukum/etlflow/errors"
)

const etlPipeline = `
name: etl_to_bq
defaults:
  timeout: 30s
tasks:
  - id: extract_and_clean
    component: clean
  - id: upload_to_gcs
    component: upload
    depends_on: [extract_and_clean]
    retry:
      max_attempts: 3
      initial_backoff: 2s
      factor: 2
  - id: load_to_bigquery
    component: load
    depends_on: [upload_to_gcs]
    timeout: 5m
`

func testRegistry() *Registry {
	reg := NewRegistry()
	for _, name := range []string{"clean", "upload", "load"} {
		reg.Register(name, noop)
	}
	return reg
}

func TestLoadPipelineBytes(t *testing.T) {
	p, err := LoadPipelineBytes([]byte(etlPipeline))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "etl_to_bq" || len(p.Tasks) != 3 {
		t.Fatalf("unexpected pipeline %+v", p)
	}
	upload := p.Tasks[1]
	if upload.Retry == nil || upload.Retry.MaxAttempts != 3 || upload.Retry.Backoff.Initial != 2*time.Second {
		t.Errorf("unexpected retry %+v", upload.Retry)
	}
	if p.Defaults.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", p.Defaults.Timeout)
	}
}

func TestLoadPipelineBytes_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing name":      "tasks:\n  - component: a\n",
		"missing component": "name: p\ntasks:\n  - id: a\n",
		"unknown key":       "name: p\ntasks:\n  - component: a\n    retries: 3\n",
		"malformed":         "name: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadPipelineBytes([]byte(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBuildPipeline(t *testing.T) {
	p, err := LoadPipelineBytes([]byte(etlPipeline))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g, err := BuildPipeline(p, testRegistry(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Name() != "etl_to_bq" {
		t.Errorf("expected graph name etl_to_bq, got %q", g.Name())
	}
	want := []string{"extract_and_clean", "upload_to_gcs", "load_to_bigquery"}
	if !reflect.DeepEqual(g.Order(), want) {
		t.Errorf("expected %v, got %v", want, g.Order())
	}

	clean, _ := g.Task("extract_and_clean")
	if clean.Timeout != 30*time.Second || clean.Retry.Attempts() != 1 {
		t.Errorf("expected defaults on clean task, got %+v", clean)
	}
	load, _ := g.Task("load_to_bigquery")
	if load.Timeout != 5*time.Minute {
		t.Errorf("expected overridden timeout, got %v", load.Timeout)
	}
	upload, _ := g.Task("upload_to_gcs")
	if upload.Retry.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", upload.Retry.MaxAttempts)
	}
}

func TestResolvePipeline_UnknownComponent(t *testing.T) {
	p := &Pipeline{Name: "p", Tasks: []TaskDef{{Component: "missing"}}}
	_, err := ResolvePipeline(p, NewRegistry(), nil)
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestResolvePipeline_Includes(t *testing.T) {
	reg := testRegistry()
	loader := MapLoader{
		"base":   {Name: "base", Tasks: []TaskDef{{ID: "extract_and_clean", Component: "clean"}}},
		"upload": {Name: "upload", Includes: []string{"base"}, Tasks: []TaskDef{{ID: "upload_to_gcs", Component: "upload", DependsOn: []string{"extract_and_clean"}}}},
	}
	top := &Pipeline{
		Name:     "full",
		Includes: []string{"base", "upload"},
		Tasks:    []TaskDef{{ID: "load_to_bigquery", Component: "load", DependsOn: []string{"upload_to_gcs"}}},
	}

	g, err := BuildPipeline(top, reg, loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Len() != 3 {
		t.Errorf("expected diamond include to dedupe, got %v", g.Order())
	}
}

func TestResolvePipeline_IncludeCycle(t *testing.T) {
	loader := MapLoader{
		"a": {Name: "a", Includes: []string{"b"}},
		"b": {Name: "b", Includes: []string{"a"}},
	}
	if _, err := ResolvePipeline(loader["a"], NewRegistry(), loader); err == nil {
		t.Fatal("expected include cycle error")
	}
}

func TestFilePipelineLoader(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "etl_to_bq.yaml"), []byte(etlPipeline), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "nested", "other.yml"), []byte("name: other\ntasks:\n  - component: load\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: ["), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := NewFilePipelineLoader(dir)

	p, err := loader.Load("etl_to_bq")
	if err != nil || p.Name != "etl_to_bq" {
		t.Fatalf("expected etl_to_bq, got %v, %v", p, err)
	}
	p, err = loader.Load("other")
	if err != nil || p.Name != "other" {
		t.Fatalf("expected nested pipeline, got %v, %v", p, err)
	}
	if _, err := loader.Load("broken"); err == nil {
		t.Error("expected parse error for broken pipeline")
	}

	_, err = loader.Load("nonexistent")
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestChainLoader(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "custom.yaml"), []byte("name: custom\ntasks:\n  - component: load\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	chain := ChainLoader{
		MapLoader{"etl_to_bq": {Name: "etl_to_bq"}},
		NewFilePipelineLoader(dir),
	}

	for _, name := range []string{"etl_to_bq", "custom"} {
		if p, err := chain.Load(name); err != nil || p.Name != name {
			t.Errorf("%s: got %v, %v", name, p, err)
		}
	}
	if _, err := chain.Load("none"); err == nil {
		t.Error("expected not found")
	}
}

func TestRegistry_List(t *testing.T) {
	reg := testRegistry()
	if got := reg.List(); !reflect.DeepEqual(got, []string{"clean", "load", "upload"}) {
		t.Errorf("unexpected list %v", got)
	}
	if _, ok := reg.Get("clean"); !ok {
		t.Fatal("expected clean component")
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("unexpected component")
	}
}
