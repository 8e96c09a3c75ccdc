package taskstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryIncrementExecCountAtomicity(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.PutExec(ctx, ExecDetail{Key: "e1", MaxExecCount: 10}))

	const n = 50
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			_, _ = m.IncrementExecCount(ctx, "e1", time.Now())
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	e, err := m.GetExec(ctx, "e1")
	require.NoError(t, err)
	require.EqualValues(t, n, e.ExecCount)
}

func TestMemoryNotFound(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, err := m.GetExec(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRecoverFiltersTerminal(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.PutExec(ctx, ExecDetail{Key: "running", State: StateRunning}))
	require.NoError(t, m.PutExec(ctx, ExecDetail{Key: "errored", State: StateError}))

	recs, err := m.Recover(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "running", recs[0].Key)
}
