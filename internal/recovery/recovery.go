// Package recovery implements the one-shot startup routine that
// rebuilds live scheduler state from durable state (§4.6).
package recovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/comradexy/mw-stm-go/internal/taskstore"
)

// Resumer is the subset of Scheduler Recovery needs, kept narrow so
// this package has no import-cycle dependency on internal/scheduler.
type Resumer interface {
	ScheduleTask(ctx context.Context, key string) error
	ResumeTask(ctx context.Context, key string) error
}

// Run must be called once after the HandlerRegistry is populated and
// the TaskStore is live. It fetches every non-terminal ExecDetail and
// arms it: INIT records (freshly registered, never armed) go through
// ScheduleTask, everything else (PAUSED/BLOCKED/RUNNING left over from
// a prior process) goes through ResumeTask, per §4.6's recovery set.
// Records whose handler no longer resolves are transitioned to ERROR
// rather than armed.
func Run(ctx context.Context, store taskstore.Store, resumer Resumer, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	execs, err := store.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recovery: listing non-terminal execs: %w", err)
	}

	for _, e := range execs {
		if _, err := store.GetHandler(ctx, e.TaskHandlerKey); err != nil {
			msg := fmt.Sprintf("task handler %q not found at recovery", e.TaskHandlerKey)
			if uerr := store.UpdateStateToError(ctx, e.Key, msg); uerr != nil {
				log.Error("recovery: failed to mark exec as error", "key", e.Key, "error", uerr)
			}
			continue
		}

		var armErr error
		if e.State == taskstore.StateInit {
			armErr = resumer.ScheduleTask(ctx, e.Key)
		} else {
			armErr = resumer.ResumeTask(ctx, e.Key)
		}
		if armErr != nil {
			log.Warn("recovery: arm failed", "key", e.Key, "state", e.State.String(), "error", armErr)
		}
	}
	return nil
}
