// Package registration implements the one-shot startup routine that
// ingests declared (handler, execution-spec) pairs into the TaskStore
// (§4.7). The core never scans for handlers itself; an external
// discovery collaborator (explicitly out of scope) presents the
// declarations, and this package is what turns them into durable
// TaskHandler/ExecDetail rows.
package registration

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/comradexy/mw-stm-go/internal/handler"
	"github.com/comradexy/mw-stm-go/internal/taskstore"
)

// ExecSpec is one schedule attached to a declared handler method.
type ExecSpec struct {
	CronExpr     string
	Desc         string
	MaxExecCount int64 // 0 means unbounded
}

// Declaration is a host-side handler declaration: a zero-argument
// method on a named bean, with one or more execution specs. N specs
// fan out into N ExecDetail rows sharing one TaskHandler row.
type Declaration struct {
	BeanClassName string
	BeanName      string
	MethodName    string
	Fn            handler.Func
	Specs         []ExecSpec
}

// Run registers every declaration's callable with registry and
// ingests the handler/exec rows into store. A TaskHandler key
// collision reuses the existing row; an ExecDetail key collision
// keeps the durable row and skips the fresh insert — this is what
// preserves execCount across restarts.
func Run(ctx context.Context, store taskstore.Store, registry *handler.Registry, decls []Declaration) error {
	now := time.Now()
	for _, d := range decls {
		if d.Fn == nil {
			return fmt.Errorf("registration: declaration for %s.%s has no callable", d.BeanClassName, d.MethodName)
		}
		registry.Register(d.BeanClassName, d.BeanName, d.MethodName, d.Fn)

		handlerKey := deriveHandlerKey(d.BeanClassName, d.BeanName, d.MethodName)
		if _, err := store.GetHandler(ctx, handlerKey); errors.Is(err, taskstore.ErrNotFound) {
			if err := store.PutHandler(ctx, taskstore.TaskHandler{
				Key:           handlerKey,
				BeanName:      d.BeanName,
				BeanClassName: d.BeanClassName,
				MethodName:    d.MethodName,
			}); err != nil {
				return fmt.Errorf("registration: put handler %s: %w", handlerKey, err)
			}
		} else if err != nil {
			return fmt.Errorf("registration: get handler %s: %w", handlerKey, err)
		}

		for i, spec := range d.Specs {
			execKey := deriveExecKey(d.BeanClassName, d.MethodName, spec.CronExpr, i)
			if _, err := store.GetExec(ctx, execKey); err == nil {
				continue // durable row wins: preserves execCount across restarts
			} else if !errors.Is(err, taskstore.ErrNotFound) {
				return fmt.Errorf("registration: get exec %s: %w", execKey, err)
			}

			if err := store.PutExec(ctx, taskstore.ExecDetail{
				Key:            execKey,
				Desc:           spec.Desc,
				CronExpr:       spec.CronExpr,
				TaskHandlerKey: handlerKey,
				InitTime:       now,
				MaxExecCount:   spec.MaxExecCount,
				State:          taskstore.StateInit,
			}); err != nil {
				return fmt.Errorf("registration: put exec %s: %w", execKey, err)
			}
		}
	}
	return nil
}

// keyNamespace roots every derived UUID so keys from this package
// never collide with a UUID minted for an unrelated purpose elsewhere
// in the host application.
var keyNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("mw-stm-go/taskstore"))

// deriveHandlerKey and deriveExecKey are stable across restarts for
// the same declaration, per §4.7's key-derivation requirement: a
// name-based UUID (RFC 4122 §4.3), over class name, bean name and
// method name for a handler key and over class name, method name, cron
// expression and index for an exec key, rather than a random one, since the key must
// reproduce identically on every restart for the same declaration.
func deriveHandlerKey(beanClassName, beanName, methodName string) string {
	return uuidKey(beanClassName, beanName, methodName)
}

func deriveExecKey(beanClassName, methodName, cronExpr string, index int) string {
	return uuidKey(beanClassName, methodName, cronExpr, strconv.Itoa(index))
}

// HandlerKey exposes deriveHandlerKey so a caller that just ran Run
// can compute the TaskHandler key for a declaration without re-reading
// it back from the store.
func HandlerKey(beanClassName, beanName, methodName string) string {
	return deriveHandlerKey(beanClassName, beanName, methodName)
}

// ExecKey exposes deriveExecKey so a caller can compute an ExecDetail
// key for the i-th spec of a declaration and pass it straight to
// Scheduler.ScheduleTask.
func ExecKey(beanClassName, methodName, cronExpr string, index int) string {
	return deriveExecKey(beanClassName, methodName, cronExpr, index)
}

func uuidKey(parts ...string) string {
	var name string
	for _, p := range parts {
		name += p + "\x00"
	}
	return uuid.NewSHA1(keyNamespace, []byte(name)).String()
}
