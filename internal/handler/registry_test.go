package handler

import (
	"errors"
	"testing"
)

func TestResolveRegistered(t *testing.T) {
	r := New()
	called := false
	r.Register("ReportJob", "reportJob", "run", func() error { called = true; return nil })

	fn, err := r.Resolve("ReportJob", "reportJob", "run")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := fn(); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !called {
		t.Fatalf("expected callable to run")
	}
}

func TestResolveUnknownClass(t *testing.T) {
	r := New()
	if _, err := r.Resolve("Ghost", "x", "run"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveUnknownMethodOnKnownClass(t *testing.T) {
	r := New()
	r.Register("ReportJob", "reportJob", "run", func() error { return nil })
	if _, err := r.Resolve("ReportJob", "reportJob", "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
