package stackcapture

import (
	"context"
	"runtime"
	"sync"

	"github.com/edirooss/slowdog/pkg/fmtt"
)

// Var is a published local variable, already rendered.
type Var struct {
	Name string
	Repr string
}

// Locals collects variables that request code publishes for the watchdog.
// Each value is recorded under the function that published it, so the
// renderer can show it beneath the matching frame. Safe for concurrent use.
//
// Values are rendered with fmtt.Repr on the publishing goroutine, so the
// watchdog never reads a value its owner may still be mutating. Publishing
// again refreshes the snapshot.
type Locals struct {
	mu   sync.Mutex
	vars map[string][]Var // function → vars, in first-publish order
}

func NewLocals() *Locals {
	return &Locals{vars: make(map[string][]Var)}
}

// Set records name=value under the calling function. Publishing the same
// name again from the same function replaces the value.
func (l *Locals) Set(name string, value any) {
	l.set(2, name, value)
}

// SetFor records name=value under an explicitly named function, for callers
// that publish on behalf of another frame.
func (l *Locals) SetFor(function, name string, value any) {
	if l == nil {
		return
	}
	l.store(function, name, value)
}

func (l *Locals) set(skip int, name string, value any) {
	if l == nil {
		return
	}
	l.store(callerName(skip), name, value)
}

func (l *Locals) store(fn, name string, value any) {
	repr := fmtt.Repr(value)

	l.mu.Lock()
	defer l.mu.Unlock()

	vars := l.vars[fn]
	for i := range vars {
		if vars[i].Name == name {
			vars[i].Repr = repr
			return
		}
	}
	l.vars[fn] = append(vars, Var{Name: name, Repr: repr})
}

// For returns a copy of the variables published by function fn.
func (l *Locals) For(fn string) []Var {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	vars := l.vars[fn]
	if len(vars) == 0 {
		return nil
	}
	out := make([]Var, len(vars))
	copy(out, vars)
	return out
}

type localsKey struct{}

// WithLocals attaches l to ctx.
func WithLocals(ctx context.Context, l *Locals) context.Context {
	return context.WithValue(ctx, localsKey{}, l)
}

// LocalsFrom returns the Locals attached to ctx, or nil.
func LocalsFrom(ctx context.Context) *Locals {
	l, _ := ctx.Value(localsKey{}).(*Locals)
	return l
}

// Publish records name=value under the calling function in the Locals
// attached to ctx. It is a no-op when ctx carries none.
func Publish(ctx context.Context, name string, value any) {
	LocalsFrom(ctx).set(2, name, value)
}

func callerName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip + 1)
	if !ok {
		return ""
	}
	f := runtime.FuncForPC(pc)
	if f == nil {
		return ""
	}
	return f.Name()
}
