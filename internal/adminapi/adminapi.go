// Package adminapi is the seam an external HTTP admin surface (out of
// scope for this core) would sit behind: a plain Go facade over the
// Scheduler's lifecycle operations plus the {code, info, data}
// response envelope from §6. Grounded on the teacher's provisr.go
// thin-facade idiom (a root type delegating to an internal engine)
// and on internal/server's ErrorResponse/respond* envelope shape.
package adminapi

import (
	"context"
	"errors"

	"github.com/comradexy/mw-stm-go/internal/taskstore"
)

// Envelope is the uniform response shape of §6: success is Code 200,
// failures carry a human-readable Info.
type Envelope struct {
	Code int    `json:"code"`
	Info string `json:"info"`
	Data any    `json:"data,omitempty"`
}

func ok(data any) Envelope       { return Envelope{Code: 200, Info: "ok", Data: data} }
func fail(err error) Envelope    { return Envelope{Code: 500, Info: err.Error()} }
func notFound(err error) Envelope { return Envelope{Code: 404, Info: err.Error()} }

// lifecycle is the subset of *scheduler.Scheduler the admin facade
// depends on; kept as an interface to avoid an import cycle and to
// keep this package independently testable.
type lifecycle interface {
	ScheduleTask(ctx context.Context, key string) error
	ResumeTask(ctx context.Context, key string) error
	PauseTask(ctx context.Context, key string) error
	DeleteTask(ctx context.Context, key string) error
}

// API exposes the Scheduler's management operations (§6) behind the
// envelope type.
type API struct {
	store     taskstore.Store
	scheduler lifecycle
}

// New builds an API over store and scheduler.
func New(store taskstore.Store, scheduler lifecycle) *API {
	return &API{store: store, scheduler: scheduler}
}

func (a *API) List(ctx context.Context) Envelope {
	execs, err := a.store.ListExecs(ctx)
	if err != nil {
		return fail(err)
	}
	return ok(execs)
}

func (a *API) Query(ctx context.Context, key string) Envelope {
	e, err := a.store.GetExec(ctx, key)
	if err != nil {
		if errors.Is(err, taskstore.ErrNotFound) {
			return notFound(err)
		}
		return fail(err)
	}
	return ok(e)
}

func (a *API) QueryHandler(ctx context.Context, key string) Envelope {
	h, err := a.store.GetHandler(ctx, key)
	if err != nil {
		if errors.Is(err, taskstore.ErrNotFound) {
			return notFound(err)
		}
		return fail(err)
	}
	return ok(h)
}

func (a *API) Schedule(ctx context.Context, key string) Envelope {
	if err := a.scheduler.ScheduleTask(ctx, key); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func (a *API) Resume(ctx context.Context, key string) Envelope {
	if err := a.scheduler.ResumeTask(ctx, key); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func (a *API) Pause(ctx context.Context, key string) Envelope {
	if err := a.scheduler.PauseTask(ctx, key); err != nil {
		return fail(err)
	}
	return ok(nil)
}

// Delete implements the cancel/delete(key) operation of §6.
func (a *API) Delete(ctx context.Context, key string) Envelope {
	if err := a.scheduler.DeleteTask(ctx, key); err != nil {
		return fail(err)
	}
	return ok(nil)
}
