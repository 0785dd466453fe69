package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/kbukum/etlflow/logger"
)

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "etlflow"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected debug log level, got %q", cfg.Logging.Level)
		}
		if cfg.Logging.ServiceName != "etlflow" {
			t.Errorf("expected service name propagated to logging, got %q", cfg.Logging.ServiceName)
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "etlflow", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected info log level, got %q", cfg.Logging.Level)
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr string
	}{
		{"valid development", ServiceConfig{Name: "etlflow", Environment: "development"}, ""},
		{"valid production", ServiceConfig{Name: "etlflow", Environment: "production"}, ""},
		{"missing name", ServiceConfig{Environment: "production"}, "name"},
		{"invalid environment", ServiceConfig{Name: "etlflow", Environment: "qa"}, "environment"},
		{"invalid log level", ServiceConfig{Name: "etlflow", Environment: "staging", Logging: loggingWithLevel("loud")}, "config.logging"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Logging.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	ETL           struct {
		Bucket      string `mapstructure:"bucket"`
		Destination struct {
			TableID string `mapstructure:"table_id"`
		} `mapstructure:"destination"`
		SkipLeadingRows int `mapstructure:"skip_leading_rows"`
	} `mapstructure:"etl"`
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	content := `
name: etlflow
environment: staging
etl:
  bucket: my-airflow-etl-bucket
  skip_leading_rows: 1
  destination:
    table_id: products_cleaned
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg testConfig
	if err := LoadConfig("etlflow", &cfg, WithConfigFile(configPath), WithEnvPrefix("ETLFLOW_TEST_NONE")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "etlflow" || cfg.Environment != "staging" {
		t.Errorf("unexpected service config: %+v", cfg.ServiceConfig)
	}
	if cfg.ETL.Bucket != "my-airflow-etl-bucket" {
		t.Errorf("expected bucket, got %q", cfg.ETL.Bucket)
	}
	if cfg.ETL.Destination.TableID != "products_cleaned" {
		t.Errorf("expected table id, got %q", cfg.ETL.Destination.TableID)
	}
	if cfg.ETL.SkipLeadingRows != 1 {
		t.Errorf("expected skip 1, got %d", cfg.ETL.SkipLeadingRows)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(configPath, []byte("name: etlflow\netl:\n  bucket: from-file\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("ETLFLOWTEST_ETL_DESTINATION_TABLE_ID=from_dotenv\n"), 0o644); err != nil {
		t.Fatalf("failed to write env: %v", err)
	}
	t.Setenv("ETLFLOWTEST_ETL_BUCKET", "from-env")
	t.Setenv("ETLFLOWTEST_ETL_SKIP_LEADING_ROWS", "2")
	t.Cleanup(func() { os.Unsetenv("ETLFLOWTEST_ETL_DESTINATION_TABLE_ID") })

	var cfg testConfig
	err := LoadConfig("etlflow", &cfg,
		WithConfigFile(configPath),
		WithEnvFile(envPath),
		WithEnvPrefix("ETLFLOWTEST"),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.ETL.Bucket != "from-env" {
		t.Errorf("expected env to override file, got %q", cfg.ETL.Bucket)
	}
	if cfg.ETL.Destination.TableID != "from_dotenv" {
		t.Errorf("expected .env value, got %q", cfg.ETL.Destination.TableID)
	}
	if cfg.ETL.SkipLeadingRows != 2 {
		t.Errorf("expected skip 2 from env, got %d", cfg.ETL.SkipLeadingRows)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("nonexistent", &cfg, WithConfigFile("/nonexistent/path.yml"), WithEnvPrefix("ETLFLOW_TEST_NONE"))
	if err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

func TestLoadConfigUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(configPath, []byte("name: [unclosed\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	var cfg testConfig
	if err := LoadConfig("etlflow", &cfg, WithConfigFile(configPath)); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestResolverWithMockFS(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"../cmd/etlflow/config.yml": true,
		"./.env":                    true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("etlflow", LoaderConfig{})
	if files.ConfigFile != "../cmd/etlflow/config.yml" {
		t.Errorf("expected ../cmd/etlflow/config.yml, got %q", files.ConfigFile)
	}
	if files.EnvFile != "./.env" {
		t.Errorf("expected ./.env, got %q", files.EnvFile)
	}

	explicit := resolver.ResolveFiles("etlflow", LoaderConfig{ConfigFile: "/etc/etlflow.yml"})
	if explicit.ConfigFile != "/etc/etlflow.yml" {
		t.Errorf("expected explicit path to win, got %q", explicit.ConfigFile)
	}
}

func TestLoadConfigWithFileSystem(t *testing.T) {
	fs := &mockFS{files: map[string]bool{"./.env": true}, loadErr: os.ErrPermission}
	var cfg testConfig
	err := LoadConfig("etlflow", &cfg, WithFileSystem(fs), WithConfigFile("/absent.yml"))
	if err == nil || !strings.Contains(err.Error(), "load env file ./.env") {
		t.Fatalf("expected env file error, got %v", err)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	variants := envKeyVariants("ETL_DESTINATION_TABLE_ID")
	for _, want := range []string{"etl_destination_table_id", "etl.destination.table_id", "etl.destination_table_id"} {
		if !slices.Contains(variants, want) {
			t.Errorf("expected variant %q in %v", want, variants)
		}
	}
	if got := envKeyVariants("NAME"); len(got) != 1 || got[0] != "name" {
		t.Errorf("expected single variant, got %v", got)
	}
}

type mockFS struct {
	files   map[string]bool
	loadErr error
}

func (m *mockFS) Exists(path string) bool  { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return m.loadErr }

func loggingWithLevel(level string) logger.Config {
	return logger.Config{Level: level}
}
