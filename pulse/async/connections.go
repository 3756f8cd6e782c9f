package async

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/teranos/dirjobs/directory"
	"github.com/teranos/dirjobs/directory/events"
	"github.com/teranos/dirjobs/errors"
	"github.com/teranos/dirjobs/pulse/lock"
	"github.com/teranos/dirjobs/pulse/monitor"
)

// connectionOpener connects and binds a job's required connections before
// its payload runs.
type connectionOpener struct {
	listeners *directory.ListenerRegistry
	events    *events.Registry
	log       *zap.SugaredLogger
}

// open attempts every connection that is not already connected. A failure,
// including a panic in the connection or in a listener, is recorded on mon
// and the remaining connections are still attempted; the caller checks
// mon.ErrorsReported afterwards. Nil entries, typed or not, are skipped.
func (o *connectionOpener) open(ctx context.Context, conns []directory.Connection, mon monitor.Monitor) {
	for _, conn := range conns {
		if lock.IsNil(conn) {
			continue
		}
		if err := o.openGuarded(ctx, conn, mon); err != nil {
			desc := describeConnection(conn)
			o.log.Warnw("Connection setup failed",
				"connection", desc,
				"error", err,
			)
			mon.ReportError(setupError(desc, err))
		}
	}
}

// openGuarded connects, binds and announces one connection. Panics are
// returned as errors.
func (o *connectionOpener) openGuarded(ctx context.Context, conn directory.Connection, mon monitor.Monitor) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = recoveredError(p)
		}
	}()

	if conn.IsConnected() {
		return nil
	}
	mon.SetTaskName(fmt.Sprintf("Opening connection %s", directory.Describe(conn)))

	if err := conn.Connect(ctx, mon); err != nil {
		return err
	}
	if err := conn.Bind(ctx, mon); err != nil {
		return err
	}
	if !conn.IsConnected() {
		return nil
	}

	o.log.Debugw("Connection opened", "connection", directory.Address(conn))
	if o.listeners != nil {
		o.listeners.NotifyConnectionOpened(conn, mon)
	}
	if o.events != nil {
		o.events.Fire(ctx, events.Event{
			Kind:    events.KindConnectionOpened,
			Subject: directory.Address(conn),
			Source:  conn,
		})
	}
	return nil
}

// describeConnection renders conn for errors, falling back to its Go type
// when the connection cannot describe itself
func describeConnection(conn directory.Connection) (desc string) {
	defer func() {
		if recover() != nil {
			desc = fmt.Sprintf("%T", conn)
		}
	}()
	return directory.Describe(conn)
}

// setupError keeps err's message while marking it as a setup failure
func setupError(desc string, err error) error {
	marked := errors.Mark(err, errors.ErrConnectionSetup)
	return errors.WithDetailf(marked, "Connection: %s", desc)
}
