package async

import (
	"context"
	"fmt"

	"github.com/teranos/dirjobs/errors"
	"github.com/teranos/dirjobs/pulse/monitor"
	"github.com/teranos/dirjobs/pulse/suspend"
)

// runPayload dispatches on the payload variant. Plain payloads run with
// event dispatch enabled; bulk payloads go through runBulk.
func runPayload(ctx context.Context, p Payload, suspension *suspend.Registry, mon monitor.Monitor) {
	switch p.Kind() {
	case PayloadPlain:
		mon.ReportError(runGuarded(ctx, p.plain, mon))
	case PayloadBulk:
		runBulk(ctx, p.bulk, suspension, mon)
	default:
		mon.ReportError(errors.AssertionFailedf("payload kind %s cannot run", p.Kind()))
	}
}

// runBulk suspends dispatch for ctx's scope, runs the mutation phase,
// resumes on every exit path, then runs the notification phase exactly once.
func runBulk(ctx context.Context, b BulkRunnable, suspension *suspend.Registry, mon monitor.Monitor) {
	func() {
		suspension.Suspend(ctx)
		defer suspension.Resume(ctx)
		mon.ReportError(runGuarded(ctx, b, mon))
	}()
	mon.ReportError(notifyGuarded(ctx, b))
}

// runGuarded runs r and converts both returned errors and panics into
// ErrPayload-marked errors.
func runGuarded(ctx context.Context, r Runnable, mon monitor.Monitor) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicError(p)
		}
	}()
	if runErr := r.Run(ctx, mon); runErr != nil {
		return errors.Mark(runErr, errors.ErrPayload)
	}
	return nil
}

const notificationPrefix = "notification phase"

func notifyGuarded(ctx context.Context, b BulkRunnable) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Wrap(panicError(p), notificationPrefix)
		}
	}()
	b.RunNotification(ctx)
	return nil
}

func panicError(p interface{}) error {
	return errors.Mark(recoveredError(p), errors.ErrPayload)
}

// recoveredError turns a recovered panic value into an error with a stack
func recoveredError(p interface{}) error {
	if e, ok := p.(error); ok {
		return errors.WithStack(e)
	}
	return errors.Newf("panic: %s", fmt.Sprint(p))
}
