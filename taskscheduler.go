// Package taskscheduler is the root facade over the scheduler engine,
// grounded on the teacher's provisr.go: thin type aliases and a
// delegating wrapper struct so embedding applications get a small,
// stable surface instead of reaching into internal packages.
package taskscheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/comradexy/mw-stm-go/internal/adminapi"
	"github.com/comradexy/mw-stm-go/internal/handler"
	"github.com/comradexy/mw-stm-go/internal/recovery"
	"github.com/comradexy/mw-stm-go/internal/registration"
	"github.com/comradexy/mw-stm-go/internal/scheduler"
	"github.com/comradexy/mw-stm-go/internal/taskstore"
)

type (
	// TaskHandler is the durable identity of a callable.
	TaskHandler = taskstore.TaskHandler
	// ExecDetail is one schedule attached to a TaskHandler.
	ExecDetail = taskstore.ExecDetail
	// State is an ExecDetail's lifecycle state.
	State = taskstore.State
	// Store is the durable backing contract (memory/sqlite/postgres/redis).
	Store = taskstore.Store
	// HandlerFunc is a zero-argument callable a declaration resolves to.
	HandlerFunc = handler.Func
	// Declaration is one host-side handler declaration with its
	// execution specs, consumed by Registration.
	Declaration = registration.Declaration
	// ExecSpec is one cron schedule attached to a Declaration.
	ExecSpec = registration.ExecSpec
	// SchedulerConfig holds the worker-pool tunables of §6.
	SchedulerConfig = scheduler.Config
	// Envelope is the uniform {code, info, data} admin response shape.
	Envelope = adminapi.Envelope
)

const (
	StateInit    = taskstore.StateInit
	StateRunning = taskstore.StateRunning
	StatePaused  = taskstore.StatePaused
	StateBlocked = taskstore.StateBlocked
	StateError   = taskstore.StateError
)

// Engine bundles a Store, HandlerRegistry, and Scheduler behind one
// entry point — the thin wrapper provisr.go's Manager embodies for
// internal/manager.Manager.
type Engine struct {
	store     taskstore.Store
	registry  *handler.Registry
	scheduler *scheduler.Scheduler
	admin     *adminapi.API
}

// New constructs an Engine. store may be taskscheduler.NewMemoryStore()
// or a durable backend from the sqlite/postgres/redisstore packages.
func New(store taskstore.Store, cfg SchedulerConfig, log *slog.Logger) *Engine {
	registry := handler.New()
	sched := scheduler.New(store, registry, cfg, log)
	return &Engine{
		store:     store,
		registry:  registry,
		scheduler: sched,
		admin:     adminapi.New(store, sched),
	}
}

// NewMemoryStore returns an in-memory Store, e.g. for enableStorage=false.
func NewMemoryStore() Store { return taskstore.NewMemory() }

// DefaultSchedulerConfig returns the documented defaults (pool size 8,
// 60s graceful shutdown).
func DefaultSchedulerConfig() SchedulerConfig { return scheduler.DefaultConfig() }

// Register ingests decls into the store and binds their callables
// into the HandlerRegistry. Call once at startup, before Recover.
func (e *Engine) Register(ctx context.Context, decls []Declaration) error {
	return registration.Run(ctx, e.store, e.registry, decls)
}

// ExecKey computes the deterministic ExecDetail key for the i-th spec
// of a (beanClassName, methodName) declaration, so a caller can invoke
// ScheduleTask immediately after Register without re-reading the store.
func ExecKey(beanClassName, methodName, cronExpr string, index int) string {
	return registration.ExecKey(beanClassName, methodName, cronExpr, index)
}

// Recover re-arms every non-terminal ExecDetail from durable state.
// Call once at startup, after Register.
func (e *Engine) Recover(ctx context.Context, log *slog.Logger) error {
	return recovery.Run(ctx, e.store, e.scheduler, log)
}

// Admin exposes the management operations of §6 behind the envelope
// response type.
func (e *Engine) Admin() *adminapi.API { return e.admin }

func (e *Engine) ScheduleTask(ctx context.Context, key string) error {
	return e.scheduler.ScheduleTask(ctx, key)
}

func (e *Engine) ResumeTask(ctx context.Context, key string) error {
	return e.scheduler.ResumeTask(ctx, key)
}

func (e *Engine) PauseTask(ctx context.Context, key string) error {
	return e.scheduler.PauseTask(ctx, key)
}

func (e *Engine) DeleteTask(ctx context.Context, key string) error {
	return e.scheduler.DeleteTask(ctx, key)
}

func (e *Engine) NextFire(ctx context.Context, key string) (time.Time, error) {
	return e.scheduler.NextFire(ctx, key)
}

func (e *Engine) ListMatching(ctx context.Context, pattern string) ([]ExecDetail, error) {
	return e.scheduler.ListMatching(ctx, pattern)
}

// Shutdown cancels every live timer. It does not wait for a fire
// already in progress to finish.
func (e *Engine) Shutdown() { e.scheduler.Shutdown() }

// Store exposes the underlying durable store for callers that need
// direct read access (e.g. an admin HTTP layer built outside this core).
func (e *Engine) Store() Store { return e.store }
