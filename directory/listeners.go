package directory

import (
	"sync"

	"github.com/teranos/dirjobs/pulse/monitor"
)

// ConnectionListener is notified when connections open or close.
// Calls happen synchronously on the goroutine of the job that changed the
// connection state; listeners must not block for long.
type ConnectionListener interface {
	ConnectionOpened(conn Connection, mon monitor.Monitor)
	ConnectionClosed(conn Connection, mon monitor.Monitor)
}

// ListenerRegistry holds the registered connection listeners.
// Thread-safe for concurrent registration and notification.
type ListenerRegistry struct {
	mu        sync.RWMutex
	listeners []ConnectionListener
}

// NewListenerRegistry creates an empty registry
func NewListenerRegistry() *ListenerRegistry {
	return &ListenerRegistry{}
}

// Add registers a listener. Adding the same listener twice notifies it twice.
func (r *ListenerRegistry) Add(l ConnectionListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Remove unregisters the first occurrence of l
func (r *ListenerRegistry) Remove(l ConnectionListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.listeners {
		if existing == l {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered listeners
func (r *ListenerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

// NotifyConnectionOpened calls ConnectionOpened on every listener
func (r *ListenerRegistry) NotifyConnectionOpened(conn Connection, mon monitor.Monitor) {
	for _, l := range r.snapshot() {
		l.ConnectionOpened(conn, mon)
	}
}

// NotifyConnectionClosed calls ConnectionClosed on every listener
func (r *ListenerRegistry) NotifyConnectionClosed(conn Connection, mon monitor.Monitor) {
	for _, l := range r.snapshot() {
		l.ConnectionClosed(conn, mon)
	}
}

// snapshot lets listeners add or remove listeners while being notified
func (r *ListenerRegistry) snapshot() []ConnectionListener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ConnectionListener(nil), r.listeners...)
}
