// Package trigger provides the pure next-fire-time capability the
// scheduler consumes; it never owns a clock or a goroutine.
package trigger

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCron is returned when a cron expression cannot be parsed.
var ErrInvalidCron = errors.New("trigger: invalid cron expression")

// Trigger computes the next fire instant for a schedule given a
// reference instant. Implementations must be deterministic and
// side-effect-free.
type Trigger interface {
	// Next returns the next instant strictly after ref at which the job
	// should fire. A zero time.Time means "never again".
	Next(ref time.Time) time.Time
}

var parser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// cronTrigger adapts a parsed robfig/cron schedule to the Trigger
// contract.
type cronTrigger struct {
	expr     string
	schedule cron.Schedule
}

// New parses expr (six-field cron with a required leading seconds
// field, or a descriptor like "@every 1m") and returns a Trigger. Returns
// ErrInvalidCron wrapping the parser's message on syntax errors.
func New(expr string) (Trigger, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCron, expr, err)
	}
	return &cronTrigger{expr: expr, schedule: sched}, nil
}

func (t *cronTrigger) Next(ref time.Time) time.Time {
	return t.schedule.Next(ref)
}

// Expr returns the cron expression this Trigger was built from.
func (t *cronTrigger) Expr() string { return t.expr }

// Validate reports whether expr is a syntactically valid cron
// expression, without constructing a Trigger.
func Validate(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCron, expr, err)
	}
	return nil
}
