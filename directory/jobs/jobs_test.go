package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/dirjobs/directory"
	"github.com/teranos/dirjobs/directory/events"
	"github.com/teranos/dirjobs/pulse/async"
	"github.com/teranos/dirjobs/pulse/monitor"
)

func newScheduler(t *testing.T, listeners *directory.ListenerRegistry) *async.Scheduler {
	t.Helper()
	cfg := async.DefaultSchedulerConfig()
	cfg.PollInterval = 10 * time.Millisecond
	s := async.NewScheduler(context.Background(), cfg, zap.NewNop().Sugar(), async.Options{Listeners: listeners})
	s.Start()
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) add(ev events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds() []events.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	var kinds []events.Kind
	for _, ev := range l.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

type closeListener struct {
	mu     sync.Mutex
	closed []string
}

func (l *closeListener) ConnectionOpened(directory.Connection, monitor.Monitor) {}

func (l *closeListener) ConnectionClosed(conn directory.Connection, _ monitor.Monitor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = append(l.closed, directory.Address(conn))
}

func TestModifyEntriesFiresOneEvent(t *testing.T) {
	s := newScheduler(t, nil)
	log := &eventLog{}
	s.Events().Subscribe(log.add)

	conn := directory.NewSimulatedConnection("primary", "ldap.example.com", 389)
	dns := []string{"cn=a", "cn=b", "cn=c", "cn=d", "cn=e"}
	desc := ModifyEntries(conn, dns, s.Events())

	h, err := s.Submit(desc)
	require.NoError(t, err)
	require.True(t, h.Join().IsOk())

	assert.Equal(t, dns, conn.Modified())
	// Connection auto-open announces itself before the batch; the batch adds exactly one event
	assert.Equal(t, []events.Kind{events.KindConnectionOpened, events.KindSearchUpdated}, log.kinds())

	worked, total := h.Progress()
	assert.Equal(t, 5, worked)
	assert.Equal(t, 5, total)
}

func TestModifyEntriesSameConnectionSerialized(t *testing.T) {
	s := newScheduler(t, nil)
	conn := directory.NewSimulatedConnection("primary", "ldap.example.com", 389)
	conn.Latency = 20 * time.Millisecond

	first := ModifyEntries(conn, []string{"cn=a", "cn=b"}, s.Events())
	second := ModifyEntries(conn, []string{"cn=c"}, s.Events())

	h1, err := s.Submit(first)
	require.NoError(t, err)
	h2, err := s.Submit(second)
	require.NoError(t, err)

	h1.Join()
	h2.Join()
	assert.Equal(t, []string{"cn=a", "cn=b", "cn=c"}, conn.Modified())
}

func TestCloseConnectionsNotifiesAfterBatch(t *testing.T) {
	listener := &closeListener{}
	listeners := directory.NewListenerRegistry()
	listeners.Add(listener)
	s := newScheduler(t, listeners)

	log := &eventLog{}
	s.Events().Subscribe(log.add)

	a := directory.NewSimulatedConnection("a", "a.example.com", 389)
	b := directory.NewSimulatedConnection("b", "b.example.com", 636)
	idle := directory.NewSimulatedConnection("idle", "idle.example.com", 389)
	ctx := context.Background()
	for _, c := range []*directory.SimulatedConnection{a, b} {
		require.NoError(t, c.Connect(ctx, nil))
		require.NoError(t, c.Bind(ctx, nil))
	}

	var closedDuringRun int
	listeners.Add(&probeListener{onClose: func() {
		if a.IsConnected() || b.IsConnected() {
			closedDuringRun++
		}
	}})

	var missing *directory.SimulatedConnection
	desc := CloseConnections([]directory.Connection{a, nil, b, missing, idle}, listeners, s.Events())
	assert.Len(t, desc.LockedObjects, 3)

	h, err := s.Submit(desc)
	require.NoError(t, err)
	require.True(t, h.Join().IsOk())

	assert.False(t, a.IsConnected())
	assert.False(t, b.IsConnected())
	assert.Equal(t, []string{"a.example.com:389", "b.example.com:636"}, listener.closed)
	assert.Zero(t, closedDuringRun, "listeners run only after every connection closed")
	assert.Equal(t, []events.Kind{events.KindConnectionClosed, events.KindConnectionClosed}, log.kinds())
}

type probeListener struct{ onClose func() }

func (p *probeListener) ConnectionOpened(directory.Connection, monitor.Monitor) {}
func (p *probeListener) ConnectionClosed(directory.Connection, monitor.Monitor) { p.onClose() }
