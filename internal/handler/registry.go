// Package handler implements the HandlerRegistry: the bridge between
// a persisted (beanClassName, beanName, methodName) string identifier
// and a live, invokable callable in the current process. Grounded on
// the teacher's registration idiom in internal/manager (explicit
// registration, no reflection) rather than a DI-container lookup.
package handler

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNotFound is returned by Resolve when no callable matches.
var ErrNotFound = errors.New("handler: not found")

// Func is a zero-argument callable a TaskHandler resolves to.
type Func func() error

// byName indexes the callables registered under one class name.
type byName map[string]Func

// Registry resolves (beanClassName, beanName, methodName) triples to
// callables. The persisted schema only ever carries strings, and the
// live binding is re-established fresh on every process start by
// whatever startup collaborator calls Register. Register does not
// reject calls made after startup; later registrations are added to
// the same table.
type Registry struct {
	mu    sync.RWMutex
	types map[string]byName // beanClassName -> beanName -> Func
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{types: make(map[string]byName)}
}

// Register binds beanClassName/beanName/methodName to fn. The triple
// is folded into one registry key; methodName participates in the key
// because one bean may expose more than one zero-argument method.
func (r *Registry) Register(beanClassName, beanName, methodName string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names, ok := r.types[beanClassName]
	if !ok {
		names = make(byName)
		r.types[beanClassName] = names
	}
	names[key(beanName, methodName)] = fn
}

// Resolve looks up the callable for beanClassName/beanName/methodName.
//
// Resolution strategy, per the registry contract: look up by type
// first; if the type is unknown, NotFound. If the type is known but
// ambiguous (more than one bean of that type registered) narrow by
// beanName; if the narrowed lookup still misses, NotFound.
func (r *Registry) Resolve(beanClassName, beanName, methodName string) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names, ok := r.types[beanClassName]
	if !ok {
		return nil, fmt.Errorf("%w: class %q", ErrNotFound, beanClassName)
	}
	// Unambiguous: exactly one bean of this type exposes methodName.
	var only Func
	matches := 0
	for k, fn := range names {
		if strings.HasSuffix(k, "#"+methodName) {
			only = fn
			matches++
		}
	}
	if matches == 1 {
		return only, nil
	}
	// Ambiguous: narrow by beanName.
	if fn, ok := names[key(beanName, methodName)]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("%w: class %q bean %q method %q", ErrNotFound, beanClassName, beanName, methodName)
}

func key(beanName, methodName string) string { return beanName + "#" + methodName }
