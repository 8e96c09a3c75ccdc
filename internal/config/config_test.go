package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMinimalAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "scheduler.toml")
	data := `
enable_storage = false
`
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	cfg, err := LoadConfig(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageType != "memory" {
		t.Fatalf("expected default storage_type memory, got %q", cfg.StorageType)
	}
	if cfg.PoolSize != 8 {
		t.Fatalf("expected default pool_size 8, got %d", cfg.PoolSize)
	}
	if cfg.AwaitTermSec != 60 {
		t.Fatalf("expected default await_termination_seconds 60, got %d", cfg.AwaitTermSec)
	}
}

func TestLoadConfigHandlerDeclarations(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "scheduler.toml")
	data := `
[[handlers]]
bean_class_name = "ReportJob"
bean_name = "reportJob"
method_name = "run"
  [[handlers.specs]]
  cron = "0/5 * * * * *"
  desc = "emit report"
  max_exec_count = 3
`
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	cfg, err := LoadConfig(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Handlers) != 1 {
		t.Fatalf("expected 1 handler declaration, got %d", len(cfg.Handlers))
	}
	h := cfg.Handlers[0]
	if h.BeanClassName != "ReportJob" || len(h.Specs) != 1 {
		t.Fatalf("unexpected handler decl: %+v", h)
	}
	if h.Specs[0].MaxExecCount != 3 {
		t.Fatalf("expected max_exec_count 3, got %d", h.Specs[0].MaxExecCount)
	}
}

func TestLoadConfigRejectsUnknownStorageType(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "scheduler.toml")
	data := `storage_type = "bogus"`
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	if _, err := LoadConfig(file); err == nil {
		t.Fatalf("expected error for unknown storage_type")
	}
}

func TestLoadConfigRequiresDataSourceForJDBC(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "scheduler.toml")
	data := `
enable_storage = true
storage_type = "jdbc"
`
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	if _, err := LoadConfig(file); err == nil {
		t.Fatalf("expected error for missing data_source.url")
	}
}
