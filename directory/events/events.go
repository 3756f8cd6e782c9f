// Package events dispatches domain change events to listeners, skipping
// dispatch while the firing execution scope is suspended.
//
// Every code path that announces a change to the directory model goes
// through Registry.Fire. Bulk jobs suspend their scope during the mutation
// phase so per-entry events are dropped, then fire one consolidated event.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/dirjobs/pulse/suspend"
)

// Kind classifies a change event
type Kind string

const (
	KindConnectionOpened    Kind = "connection_opened"
	KindConnectionClosed    Kind = "connection_closed"
	KindEntryUpdated        Kind = "entry_updated"
	KindChildrenInitialized Kind = "children_initialized"
	KindSearchUpdated       Kind = "search_updated"
)

// Event is one change notification
type Event struct {
	Kind    Kind
	Subject string      // what changed, e.g. a DN or "<host>:<port>"
	Source  interface{} // who fired it, usually the job payload
	At      time.Time
}

// Listener receives dispatched events
type Listener func(Event)

// Registry holds listeners and gates dispatch on the suspension registry.
type Registry struct {
	suspension *suspend.Registry
	log        *zap.SugaredLogger

	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64

	dispatched atomic.Int64
	dropped    atomic.Int64
}

// NewRegistry creates an event registry gated by suspension
func NewRegistry(suspension *suspend.Registry, log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Registry{
		suspension: suspension,
		log:        log,
		listeners:  make(map[uint64]Listener),
	}
}

// Subscribe registers l and returns a function that unregisters it
func (r *Registry) Subscribe(l Listener) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = l
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Fire dispatches ev to every listener unless ctx's scope is suspended.
// Returns whether the event was dispatched.
func (r *Registry) Fire(ctx context.Context, ev Event) bool {
	if r.suspension != nil && r.suspension.IsSuspended(ctx) {
		r.dropped.Add(1)
		r.log.Debugw("Event suppressed while suspended", "kind", ev.Kind, "subject", ev.Subject)
		return false
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	r.mu.RLock()
	targets := make([]Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		targets = append(targets, l)
	}
	r.mu.RUnlock()

	for _, l := range targets {
		l(ev)
	}
	r.dispatched.Add(1)
	return true
}

// Stats returns how many events were dispatched and how many were dropped
// because their scope was suspended.
func (r *Registry) Stats() (dispatched, dropped int64) {
	return r.dispatched.Load(), r.dropped.Load()
}
