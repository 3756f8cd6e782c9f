package jobs

import (
	"context"
	"fmt"

	"github.com/teranos/dirjobs/directory"
	"github.com/teranos/dirjobs/directory/events"
	"github.com/teranos/dirjobs/errors"
	"github.com/teranos/dirjobs/pulse/async"
	"github.com/teranos/dirjobs/pulse/lock"
	"github.com/teranos/dirjobs/pulse/monitor"
)

// CloseConnectionsPayload unbinds and disconnects connections. Listeners
// are told about every closed connection once, after all are closed.
type CloseConnectionsPayload struct {
	Conns     []directory.Connection
	Listeners *directory.ListenerRegistry
	Events    *events.Registry

	closed []directory.Connection
	mon    monitor.Monitor
}

func (p *CloseConnectionsPayload) Run(ctx context.Context, mon monitor.Monitor) error {
	p.mon = mon
	p.closed = nil
	mon.BeginTask("Closing connections", len(p.Conns))
	for _, conn := range p.Conns {
		if lock.IsNil(conn) || !conn.IsConnected() {
			mon.Worked(1)
			continue
		}
		if mon.IsCanceled() {
			return nil
		}
		mon.SetTaskName(fmt.Sprintf("Closing connection %s", directory.Describe(conn)))

		if err := conn.Unbind(); err != nil {
			mon.ReportError(errors.Wrapf(err, "failed to unbind %s", directory.Address(conn)))
		}
		if err := conn.Disconnect(); err != nil {
			mon.ReportError(errors.Wrapf(err, "failed to disconnect %s", directory.Address(conn)))
			mon.Worked(1)
			continue
		}
		p.closed = append(p.closed, conn)
		mon.Worked(1)
	}
	return nil
}

func (p *CloseConnectionsPayload) RunNotification(ctx context.Context) {
	for _, conn := range p.closed {
		if p.Listeners != nil {
			p.Listeners.NotifyConnectionClosed(conn, p.mon)
		}
		if p.Events != nil {
			p.Events.Fire(ctx, events.Event{
				Kind:    events.KindConnectionClosed,
				Subject: directory.Address(conn),
				Source:  p,
			})
		}
	}
}

// CloseConnections builds the descriptor for closing conns. The job locks
// every connection so no other close of the same connection runs alongside.
func CloseConnections(conns []directory.Connection, listeners *directory.ListenerRegistry, ev *events.Registry) async.Descriptor {
	locked := make([]interface{}, 0, len(conns))
	for _, conn := range conns {
		if !lock.IsNil(conn) {
			locked = append(locked, conn)
		}
	}
	return async.Descriptor{
		Name:          fmt.Sprintf("Close %d connections", len(locked)),
		Type:          "close-connections",
		ErrorMessage:  "Error while closing connections",
		LockedObjects: locked,
		Payload: async.Bulk(&CloseConnectionsPayload{
			Conns:     conns,
			Listeners: listeners,
			Events:    ev,
		}),
	}
}
