package async

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/dirjobs/directory/events"
	"github.com/teranos/dirjobs/errors"
	"github.com/teranos/dirjobs/pulse/monitor"
	"github.com/teranos/dirjobs/pulse/suspend"
)

// bulkProbe observes the suspension state seen by each phase
type bulkProbe struct {
	registry      *suspend.Registry
	suspendedIn   bool
	notifications int
	notifyDepth   int
	panicWith     interface{}
	err           error
}

func (p *bulkProbe) Run(ctx context.Context, mon monitor.Monitor) error {
	p.suspendedIn = p.registry.IsSuspended(ctx)
	if p.panicWith != nil {
		panic(p.panicWith)
	}
	return p.err
}

func (p *bulkProbe) RunNotification(ctx context.Context) {
	p.notifications++
	p.notifyDepth = p.registry.Depth(ctx)
}

func TestRunBulkBalancesSuspension(t *testing.T) {
	tests := []struct {
		name      string
		panicWith interface{}
		err       error
	}{
		{"normal return", nil, nil},
		{"returned error", nil, errors.New("modify failed")},
		{"panic with string", "boom", nil},
		{"panic with error", errors.New("kaboom"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := suspend.NewRegistry(true, testLogger())
			ctx, scope := reg.Enter(context.Background())
			probe := &bulkProbe{registry: reg, panicWith: tt.panicWith, err: tt.err}
			mon := monitor.NewOwned(nil)

			require.NotPanics(t, func() { runBulk(ctx, probe, reg, mon) })

			assert.True(t, probe.suspendedIn, "mutation phase runs suspended")
			assert.Equal(t, 1, probe.notifications, "notification runs exactly once")
			assert.Equal(t, 0, probe.notifyDepth, "notification runs after resume")
			assert.Equal(t, 0, scope.Depth())
			assert.Equal(t, 0, reg.SuspendedScopes())
			assert.Equal(t, tt.panicWith != nil || tt.err != nil, mon.ErrorsReported())
		})
	}
}

func TestRunBulkNestedScope(t *testing.T) {
	reg := suspend.NewRegistry(true, testLogger())
	ctx, scope := reg.Enter(context.Background())
	reg.Suspend(ctx)

	probe := &bulkProbe{registry: reg}
	runBulk(ctx, probe, reg, monitor.NewOwned(nil))

	assert.Equal(t, 1, scope.Depth(), "outer suspension untouched")
	assert.Equal(t, 1, probe.notifyDepth)
	reg.Resume(ctx)
	assert.Equal(t, 0, scope.Depth())
}

func TestRunPayloadPlainNotSuspended(t *testing.T) {
	reg := suspend.NewRegistry(true, testLogger())
	ctx, _ := reg.Enter(context.Background())

	var suspended atomic.Bool
	suspended.Store(true)
	payload := Plain(RunFunc(func(ctx context.Context, mon monitor.Monitor) error {
		suspended.Store(reg.IsSuspended(ctx))
		return nil
	}))

	runPayload(ctx, payload, reg, monitor.NewOwned(nil))
	assert.False(t, suspended.Load())
}

func TestRunGuardedMarksPayloadErrors(t *testing.T) {
	mon := monitor.NewOwned(nil)

	err := runGuarded(context.Background(), RunFunc(func(context.Context, monitor.Monitor) error {
		return errors.New("timeout")
	}), mon)
	require.Error(t, err)
	assert.Equal(t, "timeout", err.Error())
	assert.True(t, errors.Is(err, errors.ErrPayload))

	err = runGuarded(context.Background(), RunFunc(func(context.Context, monitor.Monitor) error {
		var m map[string]int
		m["x"] = 1
		return nil
	}), mon)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPayload))
}

func TestNotificationPanicRecorded(t *testing.T) {
	reg := suspend.NewRegistry(false, testLogger())
	ctx, _ := reg.Enter(context.Background())
	mon := monitor.NewOwned(nil)

	runBulk(ctx, BulkFuncs{
		NotificationFn: func(context.Context) { panic("listener exploded") },
	}, reg, mon)

	require.True(t, mon.ErrorsReported())
	err := mon.Errors()[0]
	assert.Contains(t, err.Error(), "listener exploded")
	assert.Equal(t, StageNotification, stageOf(err))
}

func TestBulkEventsDeferred(t *testing.T) {
	reg := suspend.NewRegistry(true, testLogger())
	ev := events.NewRegistry(reg, testLogger())

	var received atomic.Int32
	ev.Subscribe(func(events.Event) { received.Add(1) })

	ctx, _ := reg.Enter(context.Background())
	var duringRun int32
	runBulk(ctx, BulkFuncs{
		RunFn: func(ctx context.Context, mon monitor.Monitor) error {
			for i := 0; i < 5; i++ {
				ev.Fire(ctx, events.Event{Kind: events.KindEntryUpdated, Subject: "cn=entry"})
			}
			duringRun = received.Load()
			return nil
		},
		NotificationFn: func(ctx context.Context) {
			ev.Fire(ctx, events.Event{Kind: events.KindSearchUpdated, Subject: "ou=people"})
		},
	}, reg, monitor.NewOwned(nil))

	assert.Equal(t, int32(0), duringRun)
	assert.Equal(t, int32(1), received.Load())
	dispatched, dropped := ev.Stats()
	assert.Equal(t, int64(1), dispatched)
	assert.Equal(t, int64(5), dropped)
}

func TestPayloadVariants(t *testing.T) {
	assert.Equal(t, PayloadNone, Payload{}.Kind())
	assert.Equal(t, PayloadNone, Plain(nil).Kind())
	assert.Equal(t, PayloadNone, Bulk(nil).Kind())
	assert.Equal(t, PayloadPlain, Plain(noop{}).Kind())
	assert.Equal(t, PayloadBulk, Bulk(BulkFuncs{}).Kind())
	assert.Nil(t, Payload{}.Runnable())

	err := Descriptor{Name: "empty"}.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
}
