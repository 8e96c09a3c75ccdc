package applog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewWritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	log := New(Config{Dir: dir})
	log.Info("hello", "key", "value")

	path := filepath.Join(dir, "scheduler.log")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file at %s: %v", path, err)
	}
}

func TestNewDefaultsToColorConsoleWithoutDestination(t *testing.T) {
	log := New(Config{})
	if log == nil {
		t.Fatalf("expected non-nil logger")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]bool{"debug": true, "warn": true, "error": true, "info": true, "": true}
	for lvl := range cases {
		_ = parseLevel(lvl)
	}
}
