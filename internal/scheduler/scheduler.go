// Package scheduler implements the Scheduler: the live timer table,
// the five-step arming routine, the retry-on-rejection policy, and
// the admin-facing lifecycle operations. Grounded on the teacher's
// internal/manager.Manager (mutex-guarded map of live entries, a
// monitor goroutine per entry, ReconcileOnce-style invalid-entry
// sweep) generalized from OS processes to durable ExecDetail records.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/comradexy/mw-stm-go/internal/handler"
	"github.com/comradexy/mw-stm-go/internal/metrics"
	"github.com/comradexy/mw-stm-go/internal/runnable"
	"github.com/comradexy/mw-stm-go/internal/taskstore"
	"github.com/comradexy/mw-stm-go/internal/trigger"
)

// ErrIllegalState is an optional, explicit surfacing of the source's
// silently-ignored illegal-transition requests (scheduleTask on
// non-INIT, resumeTask on a state it cannot resume). See DESIGN.md
// "Open Questions" for why this is logged-and-ignored by default,
// matching §7's documented behavior, rather than returned.
var ErrIllegalState = errors.New("scheduler: illegal state transition")

// Config holds the tunables of §6's options table that are the
// Scheduler's own concern (storage selection lives in the caller's
// wiring, not here).
type Config struct {
	PoolSize                int
	AwaitTerminationSeconds int
}

// DefaultConfig matches the documented defaults: pool size 8, 60s
// graceful shutdown wait.
func DefaultConfig() Config {
	return Config{PoolSize: 8, AwaitTerminationSeconds: 60}
}

// Scheduler owns the live timer table and all admin lifecycle
// operations.
type Scheduler struct {
	mu         sync.Mutex
	liveTimers map[string]*LiveTimer

	store    taskstore.Store
	registry *handler.Registry
	pool     *pool
	cfg      Config
	log      *slog.Logger

	shutdownOnce sync.Once
}

// New constructs a Scheduler over store and registry with cfg.
func New(store taskstore.Store, registry *handler.Registry, cfg Config, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 8
	}
	if cfg.AwaitTerminationSeconds <= 0 {
		cfg.AwaitTerminationSeconds = 60
	}
	return &Scheduler{
		liveTimers: make(map[string]*LiveTimer),
		store:      store,
		registry:   registry,
		pool:       newPool(cfg.PoolSize),
		cfg:        cfg,
		log:        log,
	}
}

// CancelTimer implements runnable.Canceller: it lets a Runnable
// self-retire on the races described in §4.4 step 2 without the
// Scheduler needing to poll for it.
func (s *Scheduler) CancelTimer(key string) {
	s.mu.Lock()
	lt, ok := s.liveTimers[key]
	if ok {
		delete(s.liveTimers, key)
	}
	s.mu.Unlock()
	if ok {
		lt.Cancel()
		s.pool.release()
		metrics.SetLiveTimers(s.liveTimerCount())
	}
}

// ScheduleTask starts an INIT job. Logged-and-ignored (no error) if
// the job is already live or not in INIT, per §7's documented
// duplicate/illegal-transition policy.
func (s *Scheduler) ScheduleTask(ctx context.Context, key string) error {
	return s.startWithRetry(ctx, key, func(e taskstore.ExecDetail) bool {
		return e.State == taskstore.StateInit
	})
}

// ResumeTask starts a job that is PAUSED, BLOCKED, or RUNNING (the
// last covers crash recovery, where durable state was left RUNNING by
// a prior process that never reached shutdown). Logged-and-ignored
// otherwise.
func (s *Scheduler) ResumeTask(ctx context.Context, key string) error {
	return s.startWithRetry(ctx, key, func(e taskstore.ExecDetail) bool {
		switch e.State {
		case taskstore.StatePaused, taskstore.StateBlocked, taskstore.StateRunning:
			return true
		default:
			return false
		}
	})
}

func (s *Scheduler) startWithRetry(ctx context.Context, key string, allowed func(taskstore.ExecDetail) bool) error {
	s.clearInvalidTasks(ctx)

	exec, err := s.store.GetExec(ctx, key)
	if err != nil {
		return err
	}
	if !allowed(exec) {
		s.log.Info("scheduler: ignoring illegal state transition", "key", key, "state", exec.State.String())
		return nil
	}

	attempts, err := retryOnReject(ctx, func() error {
		return s.runTask(ctx, key)
	})
	metrics.ObserveRetryAttempts(attempts)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			_ = s.updateStateToError(ctx, key, "retry exhausted: "+err.Error())
			return err
		}
		return err
	}
	return nil
}

// runTask is the central arming routine described in §4.5.
func (s *Scheduler) runTask(ctx context.Context, key string) error {
	// 1. Sweep stale entries before arming a new one.
	s.clearInvalidTasks(ctx)

	exec, err := s.store.GetExec(ctx, key)
	if err != nil {
		return err
	}

	// 2. Cap guard.
	if exec.AtCap() {
		return s.store.DeleteExec(ctx, key)
	}

	handlerRec, err := s.store.GetHandler(ctx, exec.TaskHandlerKey)
	if err != nil {
		_ = s.updateStateToError(ctx, key, fmt.Sprintf("task handler %q not found: %v", exec.TaskHandlerKey, err))
		return nil
	}

	// 3. Resolve the callable.
	fn, err := s.registry.Resolve(handlerRec.BeanClassName, handlerRec.BeanName, handlerRec.MethodName)
	if err != nil {
		_ = s.updateStateToError(ctx, key, err.Error())
		return nil
	}

	// 4. Build the Trigger and the Runnable.
	trig, err := trigger.New(exec.CronExpr)
	if err != nil {
		_ = s.updateStateToError(ctx, key, err.Error())
		return nil
	}

	// 5. Submit: acquire a pool slot. Rejection triggers BLOCKED +
	// retry per the caller's retry policy.
	if !s.pool.tryAcquire() {
		_ = s.updateState(ctx, key, taskstore.StateBlocked)
		metrics.IncRejected()
		return ErrRejected
	}

	runCtx, cancel := context.WithCancel(context.Background())
	lt := newLiveTimer(cancel)
	s.mu.Lock()
	s.liveTimers[key] = lt
	s.mu.Unlock()

	if err := s.updateState(ctx, key, taskstore.StateRunning); err != nil {
		lt.Cancel()
		s.pool.release()
		s.mu.Lock()
		delete(s.liveTimers, key)
		s.mu.Unlock()
		return err
	}

	metrics.SetLiveTimers(s.liveTimerCount())
	run := runnable.New(key, s.store, fn, s)
	go s.fireLoop(runCtx, key, run, trig)
	return nil
}

// fireLoop self-reschedules after each fire, using the completion
// instant as the next reference time — dropped fires, not queued
// ones, for long-running callables, per §5's ordering guarantees.
func (s *Scheduler) fireLoop(ctx context.Context, key string, run *runnable.Runnable, trig trigger.Trigger) {
	for {
		next := trig.Next(time.Now())
		if next.IsZero() {
			s.CancelTimer(key)
			return
		}
		d := time.Until(next)
		if d < 0 {
			d = 0
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		metrics.IncFires()
		run.Run(context.Background())

		exec, err := s.store.GetExec(context.Background(), key)
		if err != nil || exec.State != taskstore.StateRunning {
			return
		}
	}
}

// updateState and updateStateToError are the sole entry points through
// which the Scheduler writes ExecDetail.State, so every transition is
// reflected in the state_transitions_total metric.
func (s *Scheduler) updateState(ctx context.Context, key string, state taskstore.State) error {
	err := s.store.UpdateState(ctx, key, state)
	if err == nil {
		metrics.RecordStateTransition(state.String())
	}
	return err
}

func (s *Scheduler) updateStateToError(ctx context.Context, key string, errMsg string) error {
	err := s.store.UpdateStateToError(ctx, key, errMsg)
	if err == nil {
		metrics.RecordStateTransition(taskstore.StateError.String())
	}
	return err
}

func (s *Scheduler) liveTimerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.liveTimers)
}

// PauseTask cancels the live timer, then marks the record PAUSED.
// The ordering is load-bearing: cancelling first prevents a
// concurrent runTask sweep from resurrecting the timer before the
// durable state reflects PAUSED (see DESIGN.md Open Questions).
func (s *Scheduler) PauseTask(ctx context.Context, key string) error {
	s.cancelTask(key)
	return s.updateState(ctx, key, taskstore.StatePaused)
}

// cancelTask cancels the live timer only; it does not touch durable
// state. Internal helper used by PauseTask and DeleteTask.
func (s *Scheduler) cancelTask(key string) {
	s.mu.Lock()
	lt, ok := s.liveTimers[key]
	if ok {
		delete(s.liveTimers, key)
	}
	s.mu.Unlock()
	if ok {
		lt.Cancel()
		s.pool.release()
		metrics.SetLiveTimers(s.liveTimerCount())
	}
}

// DeleteTask cancels the live timer and removes the durable record.
// Idempotent: deleting twice has the same effect as once.
func (s *Scheduler) DeleteTask(ctx context.Context, key string) error {
	s.cancelTask(key)
	if err := s.store.DeleteExec(ctx, key); err != nil && !errors.Is(err, taskstore.ErrNotFound) {
		return err
	}
	return nil
}

// Shutdown cancels every live timer. Durable state is left untouched:
// jobs still RUNNING in the store are re-armed by Recovery on the next
// start. The AwaitTerminationSeconds-bounded loop below waits for the
// live timer table to empty, which cancelTask has already done, so
// Shutdown returns without waiting for a fire already in progress to
// finish.
func (s *Scheduler) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		keys := make([]string, 0, len(s.liveTimers))
		for k := range s.liveTimers {
			keys = append(keys, k)
		}
		s.mu.Unlock()

		for _, k := range keys {
			s.cancelTask(k)
		}

		deadline := time.Now().Add(time.Duration(s.cfg.AwaitTerminationSeconds) * time.Second)
		for time.Now().Before(deadline) {
			if s.liveTimerCount() == 0 {
				break
			}
			time.Sleep(50 * time.Millisecond)
		}
	})
}

// clearInvalidTasks sweeps liveTimers for entries whose durable state
// is no longer RUNNING and removes them. The source's equivalent
// method mutated the map mid-iteration (Java
// `scheduledTasks.remove(...)` inside a `forEach`); this
// implementation snapshots keys first, avoiding that iterator-
// invalidation bug (see DESIGN.md Open Questions).
func (s *Scheduler) clearInvalidTasks(ctx context.Context) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.liveTimers))
	for k := range s.liveTimers {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	var doomed []string
	for _, k := range keys {
		exec, err := s.store.GetExec(ctx, k)
		if err != nil || exec.State != taskstore.StateRunning {
			doomed = append(doomed, k)
		}
	}
	for _, k := range doomed {
		s.cancelTask(k)
	}
}

// NextFire reports the next instant key is due to fire, computed
// fresh from the Trigger rather than stored, mirroring the teacher's
// CronJob.GetNextSchedule introspection.
func (s *Scheduler) NextFire(ctx context.Context, key string) (time.Time, error) {
	exec, err := s.store.GetExec(ctx, key)
	if err != nil {
		return time.Time{}, err
	}
	trig, err := trigger.New(exec.CronExpr)
	if err != nil {
		return time.Time{}, err
	}
	return trig.Next(time.Now()), nil
}

// ListMatching returns every ExecDetail whose Key matches pattern, a
// simple prefix/suffix wildcard matcher grounded on the teacher's
// cronjob.Manager.matchesPattern.
func (s *Scheduler) ListMatching(ctx context.Context, pattern string) ([]taskstore.ExecDetail, error) {
	all, err := s.store.ListExecs(ctx)
	if err != nil {
		return nil, err
	}
	if pattern == "" || pattern == "*" {
		return all, nil
	}
	out := make([]taskstore.ExecDetail, 0, len(all))
	for _, e := range all {
		if matchesPattern(pattern, e.Key) {
			out = append(out, e)
		}
	}
	return out, nil
}

func matchesPattern(pattern, name string) bool {
	switch {
	case len(pattern) >= 2 && strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*"):
		mid := pattern[1 : len(pattern)-1]
		return mid == "" || strings.Contains(name, mid)
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(name, pattern[1:])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	default:
		return pattern == name
	}
}
