package taskstore

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory Store for testing and for enableStorage=false
// deployments. Grounded on the mutex+map idiom of the teacher's
// internal/manager.Manager.
type Memory struct {
	mu       sync.RWMutex
	handlers map[string]TaskHandler
	execs    map[string]ExecDetail
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		handlers: make(map[string]TaskHandler),
		execs:    make(map[string]ExecDetail),
	}
}

func (m *Memory) PutHandler(_ context.Context, h TaskHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[h.Key] = h
	return nil
}

func (m *Memory) GetHandler(_ context.Context, key string) (TaskHandler, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handlers[key]
	if !ok {
		return TaskHandler{}, ErrNotFound
	}
	return h, nil
}

func (m *Memory) ListHandlers(_ context.Context) ([]TaskHandler, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TaskHandler, 0, len(m.handlers))
	for _, h := range m.handlers {
		out = append(out, h)
	}
	return out, nil
}

func (m *Memory) PutExec(_ context.Context, e ExecDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs[e.Key] = e
	return nil
}

func (m *Memory) GetExec(_ context.Context, key string) (ExecDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.execs[key]
	if !ok {
		return ExecDetail{}, ErrNotFound
	}
	return e, nil
}

func (m *Memory) ListExecs(_ context.Context) ([]ExecDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ExecDetail, 0, len(m.execs))
	for _, e := range m.execs {
		out = append(out, e)
	}
	return out, nil
}

func (m *Memory) UpdateExec(_ context.Context, e ExecDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.execs[e.Key]; !ok {
		return ErrNotFound
	}
	m.execs[e.Key] = e
	return nil
}

func (m *Memory) DeleteExec(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.execs, key)
	return nil
}

func (m *Memory) UpdateState(_ context.Context, key string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.execs[key]
	if !ok {
		return ErrNotFound
	}
	e.State = state
	m.execs[key] = e
	return nil
}

func (m *Memory) UpdateStateToError(_ context.Context, key string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.execs[key]
	if !ok {
		return ErrNotFound
	}
	e.State = StateError
	e.ErrorMsg = errMsg
	m.execs[key] = e
	return nil
}

func (m *Memory) IncrementExecCount(_ context.Context, key string, lastExecTime time.Time) (ExecDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.execs[key]
	if !ok {
		return ExecDetail{}, ErrNotFound
	}
	e.ExecCount++
	e.LastExecTime = lastExecTime
	m.execs[key] = e
	return e, nil
}

func (m *Memory) Recover(_ context.Context) ([]ExecDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ExecDetail, 0)
	for _, e := range m.execs {
		if e.State.NonTerminal() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
