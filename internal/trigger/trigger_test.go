package trigger

import (
	"testing"
	"time"
)

func TestNewValidExpr(t *testing.T) {
	tr, err := New("0 0/2 * * * *")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ref := time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)
	next := tr.Next(ref)
	if next.Before(ref) {
		t.Fatalf("expected next fire after ref, got %v", next)
	}
}

func TestNewInvalidExpr(t *testing.T) {
	if _, err := New("not a cron"); err == nil {
		t.Fatalf("expected error for invalid cron expression")
	}
}

func TestDeterministic(t *testing.T) {
	tr, err := New("@every 1m")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ref := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := tr.Next(ref)
	b := tr.Next(ref)
	if !a.Equal(b) {
		t.Fatalf("expected deterministic next-fire, got %v and %v", a, b)
	}
}
