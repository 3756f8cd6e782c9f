// Package suspend gates domain event dispatch per execution scope.
//
// A scope stands in for "the calling thread": each job execution enters its
// own scope and carries it in its context.Context, so suspending dispatch
// inside one job never silences events fired by another job or by callers
// outside any job. Nested Suspend/Resume pairs within one scope must balance.
package suspend

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/dirjobs/errors"
)

// Registry hands out execution scopes and tracks their suspend counters.
// Each Registry is independent: scopes entered on one are invisible to another.
type Registry struct {
	strict    bool
	log       *zap.SugaredLogger
	suspended atomic.Int64 // scopes whose counter is currently > 0
}

// Scope is one execution context's suspend counter. It is owned by the
// goroutine that entered it; the counter is atomic only so that other
// goroutines may observe it.
type Scope struct {
	id    string
	depth atomic.Int32
}

// ID returns the scope's unique identifier, used in log fields
func (s *Scope) ID() string { return s.id }

// Depth returns the current suspend counter
func (s *Scope) Depth() int { return int(s.depth.Load()) }

type scopeKey struct{ r *Registry }

// NewRegistry creates a registry. In strict mode, resuming a scope whose
// counter is already zero panics with an assertion failure; otherwise the
// counter is clamped at zero and a warning is logged.
func NewRegistry(strict bool, log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Registry{strict: strict, log: log}
}

// Enter returns a context carrying an execution scope. If ctx already
// carries a scope from this registry, that scope is reused so nested calls
// on the same execution share one counter.
func (r *Registry) Enter(ctx context.Context) (context.Context, *Scope) {
	if s := r.scope(ctx); s != nil {
		return ctx, s
	}
	s := &Scope{id: uuid.NewString()}
	return context.WithValue(ctx, scopeKey{r}, s), s
}

// Suspend increments the counter of the scope carried by ctx.
func (r *Registry) Suspend(ctx context.Context) {
	s := r.scope(ctx)
	if s == nil {
		r.violation("suspend called outside an execution scope", "")
		return
	}
	if s.depth.Add(1) == 1 {
		r.suspended.Add(1)
	}
	r.log.Debugw("Event dispatch suspended", "scope_id", s.id, "depth", s.Depth())
}

// Resume decrements the counter of the scope carried by ctx.
// The counter never goes below zero.
func (r *Registry) Resume(ctx context.Context) {
	s := r.scope(ctx)
	if s == nil {
		r.violation("resume called outside an execution scope", "")
		return
	}
	for {
		cur := s.depth.Load()
		if cur <= 0 {
			r.violation("resume without matching suspend", s.id)
			return
		}
		if s.depth.CompareAndSwap(cur, cur-1) {
			if cur == 1 {
				r.suspended.Add(-1)
			}
			r.log.Debugw("Event dispatch resumed", "scope_id", s.id, "depth", cur-1)
			return
		}
	}
}

// IsSuspended reports whether dispatch is suspended for the scope carried
// by ctx. Contexts without a scope are never suspended.
func (r *Registry) IsSuspended(ctx context.Context) bool {
	s := r.scope(ctx)
	return s != nil && s.depth.Load() > 0
}

// Depth returns the suspend counter for ctx's scope, or 0 without a scope.
func (r *Registry) Depth(ctx context.Context) int {
	if s := r.scope(ctx); s != nil {
		return s.Depth()
	}
	return 0
}

// SuspendedScopes returns how many scopes currently have dispatch suspended.
func (r *Registry) SuspendedScopes() int {
	return int(r.suspended.Load())
}

func (r *Registry) scope(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{r}).(*Scope)
	return s
}

func (r *Registry) violation(msg, scopeID string) {
	if r.strict {
		panic(errors.AssertionFailedf("suspend registry: %s (scope %q)", msg, scopeID))
	}
	r.log.Warnw("Suspend registry invariant violated", "reason", msg, "scope_id", scopeID)
}
