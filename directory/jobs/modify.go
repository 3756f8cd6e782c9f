// Package jobs holds the directory jobs built on the async scheduler.
package jobs

import (
	"context"
	"fmt"

	"github.com/teranos/dirjobs/directory"
	"github.com/teranos/dirjobs/directory/events"
	"github.com/teranos/dirjobs/pulse/async"
	"github.com/teranos/dirjobs/pulse/monitor"
)

// Modifier is a connection able to modify entries
type Modifier interface {
	directory.Connection
	Modify(ctx context.Context, dn string) error
}

// ModifyEntriesPayload modifies a batch of entries on one connection.
// Each modification fires an entry event, suppressed while the batch runs;
// one search-updated event is fired once the batch is over.
type ModifyEntriesPayload struct {
	Conn   Modifier
	DNs    []string
	Events *events.Registry

	modified []string
}

// Run modifies every DN until cancelled. A failed modification is reported
// and the batch continues.
func (p *ModifyEntriesPayload) Run(ctx context.Context, mon monitor.Monitor) error {
	mon.BeginTask(fmt.Sprintf("Modifying %d entries on %s", len(p.DNs), directory.Describe(p.Conn)), len(p.DNs))
	for _, dn := range p.DNs {
		if mon.IsCanceled() {
			return nil
		}
		mon.ReportProgress(dn)
		if err := p.Conn.Modify(ctx, dn); err != nil {
			mon.ReportError(err)
			mon.Worked(1)
			continue
		}
		p.modified = append(p.modified, dn)
		p.fire(ctx, events.KindEntryUpdated, dn)
		mon.Worked(1)
	}
	return nil
}

// RunNotification announces the batch, including a partial one
func (p *ModifyEntriesPayload) RunNotification(ctx context.Context) {
	p.fire(ctx, events.KindSearchUpdated, directory.Address(p.Conn))
}

// Modified returns the DNs modified by the last run
func (p *ModifyEntriesPayload) Modified() []string {
	return append([]string(nil), p.modified...)
}

func (p *ModifyEntriesPayload) fire(ctx context.Context, kind events.Kind, subject string) {
	if p.Events == nil {
		return
	}
	p.Events.Fire(ctx, events.Event{Kind: kind, Subject: subject, Source: p})
}

// ModifyEntries builds the descriptor for a ModifyEntriesPayload. The job
// locks its connection and requires it open.
func ModifyEntries(conn Modifier, dns []string, ev *events.Registry) async.Descriptor {
	return async.Descriptor{
		Name:                fmt.Sprintf("Modify %d entries", len(dns)),
		Type:                "modify-entries",
		ErrorMessage:        "Error while modifying entries",
		LockedObjects:       []interface{}{conn},
		RequiredConnections: []directory.Connection{conn},
		Payload:             async.Bulk(&ModifyEntriesPayload{Conn: conn, DNs: dns, Events: ev}),
	}
}
