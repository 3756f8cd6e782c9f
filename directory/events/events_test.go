package events

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/dirjobs/pulse/suspend"
)

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) listen(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestFireDispatchesToListeners(t *testing.T) {
	reg := NewRegistry(suspend.NewRegistry(true, nil), nil)
	var a, b collector
	reg.Subscribe(a.listen)
	reg.Subscribe(b.listen)

	ok := reg.Fire(context.Background(), Event{Kind: KindEntryUpdated, Subject: "cn=alice"})

	assert.True(t, ok)
	require.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
	assert.False(t, a.events[0].At.IsZero(), "timestamp is filled in")
}

func TestFireSkippedWhileSuspended(t *testing.T) {
	susp := suspend.NewRegistry(true, nil)
	reg := NewRegistry(susp, nil)
	var c collector
	reg.Subscribe(c.listen)

	ctx, _ := susp.Enter(context.Background())
	susp.Suspend(ctx)
	for i := 0; i < 5; i++ {
		assert.False(t, reg.Fire(ctx, Event{Kind: KindEntryUpdated}))
	}
	susp.Resume(ctx)
	assert.True(t, reg.Fire(ctx, Event{Kind: KindChildrenInitialized}))

	assert.Equal(t, 1, c.count())
	dispatched, dropped := reg.Stats()
	assert.Equal(t, int64(1), dispatched)
	assert.Equal(t, int64(5), dropped)
}

func TestSuspensionDoesNotSilenceOtherScopes(t *testing.T) {
	susp := suspend.NewRegistry(true, nil)
	reg := NewRegistry(susp, nil)
	var c collector
	reg.Subscribe(c.listen)

	bulk, _ := susp.Enter(context.Background())
	susp.Suspend(bulk)
	defer susp.Resume(bulk)

	other, _ := susp.Enter(context.Background())
	assert.True(t, reg.Fire(other, Event{Kind: KindEntryUpdated}))
	assert.True(t, reg.Fire(context.Background(), Event{Kind: KindEntryUpdated}))
	assert.Equal(t, 2, c.count())
}

func TestUnsubscribe(t *testing.T) {
	reg := NewRegistry(nil, nil)
	var c collector
	unsubscribe := reg.Subscribe(c.listen)

	reg.Fire(context.Background(), Event{Kind: KindEntryUpdated})
	unsubscribe()
	reg.Fire(context.Background(), Event{Kind: KindEntryUpdated})

	assert.Equal(t, 1, c.count())
}
