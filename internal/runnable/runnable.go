// Package runnable implements ScheduledRunnable: the per-fire wrapper
// around one ExecDetail key and its resolved callable.
package runnable

import (
	"context"
	"fmt"
	"time"

	"github.com/comradexy/mw-stm-go/internal/handler"
	"github.com/comradexy/mw-stm-go/internal/taskstore"
)

// Canceller cancels the live timer for a key without touching durable
// state; the Scheduler supplies this so ScheduledRunnable can self-
// retire on races without importing the scheduler package back.
type Canceller interface {
	CancelTimer(key string)
}

// Runnable wraps one ExecDetail.Key plus its resolved callable. Every
// fire re-validates the record against the store before running, per
// the five-step fire protocol.
type Runnable struct {
	Key    string
	Store  taskstore.Store
	Fn     handler.Func
	Timers Canceller
}

// New builds a Runnable for key, using fn as the resolved callable.
func New(key string, store taskstore.Store, fn handler.Func, timers Canceller) *Runnable {
	return &Runnable{Key: key, Store: store, Fn: fn, Timers: timers}
}

// Run executes one fire. It never lets an error from Fn escape to the
// caller: execution errors are recorded as durable state and the live
// timer is cancelled locally.
func (r *Runnable) Run(ctx context.Context) {
	// 1. Re-fetch; if gone, the job was deleted concurrently.
	exec, err := r.Store.GetExec(ctx, r.Key)
	if err != nil {
		r.Timers.CancelTimer(r.Key)
		return
	}

	// 2. Defend against races with pause/delete: only a RUNNING
	// record may fire.
	if exec.State != taskstore.StateRunning {
		r.Timers.CancelTimer(r.Key)
		return
	}

	// 3. Advance counters before invoking the callable.
	now := time.Now()
	exec, err = r.Store.IncrementExecCount(ctx, r.Key, now)
	if err != nil {
		r.Timers.CancelTimer(r.Key)
		return
	}

	// 4. Invoke; any error becomes a terminal ERROR state, never a
	// panic/propagation to the worker pool.
	if err := r.invoke(); err != nil {
		_ = r.Store.UpdateStateToError(ctx, r.Key, err.Error())
		r.Timers.CancelTimer(r.Key)
		return
	}

	// 5. Cap check: remove the record once it has fired maxExecCount
	// times.
	if exec.AtCap() {
		r.Timers.CancelTimer(r.Key)
		_ = r.Store.DeleteExec(ctx, r.Key)
	}
}

func (r *Runnable) invoke() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in handler: %v", p)
		}
	}()
	return r.Fn()
}
