package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
	"github.com/zatekoja/itineraryconcierge/internal/domain/providers"
)

func TestMemoryEventBus_DeliversToSubscribers(t *testing.T) {
	bus := NewMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := providers.GetPlanChannel("trip-1")
	events, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)

	event := entities.NewPlanEvent("trip-1", entities.PlanEventTypeUpdated, 3, []string{"/schedule/0"})
	require.NoError(t, bus.Publish(context.Background(), channel, event))

	select {
	case got := <-events:
		assert.Equal(t, event.ID, got.ID)
		assert.Equal(t, int64(3), got.Version)
		assert.Equal(t, []string{"/schedule/0"}, got.ChangedPaths)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestMemoryEventBus_ClosesOnContextDone(t *testing.T) {
	bus := NewMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	events, err := bus.Subscribe(ctx, "plan:updates")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
}

func TestMemoryEventBus_Close(t *testing.T) {
	bus := NewMemoryEventBus()
	events, err := bus.Subscribe(context.Background(), "plan:updates")
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	_, ok := <-events
	assert.False(t, ok)

	late, err := bus.Subscribe(context.Background(), "plan:updates")
	require.NoError(t, err)
	_, ok = <-late
	assert.False(t, ok)
}

func TestMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := bus.Subscribe(ctx, "plan:updates")
	require.NoError(t, err)
	second, err := bus.Subscribe(ctx, "plan:updates")
	require.NoError(t, err)
	assert.Equal(t, 2, bus.count("plan:updates"))

	require.NoError(t, bus.Unsubscribe(ctx, "plan:updates"))
	for _, events := range []<-chan *entities.PlanEvent{first, second} {
		_, ok := <-events
		assert.False(t, ok)
	}
	assert.Zero(t, bus.count("plan:updates"))

	// The context-done cleanup for the dropped queues must not panic on a double close.
	cancel()
	time.Sleep(10 * time.Millisecond)
}

func TestFanout_DropsWhenQueueFull(t *testing.T) {
	f := &fanout{}
	queue, first := f.add("c")
	assert.True(t, first)
	_, first = f.add("c")
	assert.False(t, first)

	event := entities.NewPlanEvent("p", entities.PlanEventTypeUpdated, 1, []string{"/a"})
	for i := 0; i < subscriberBuffer; i++ {
		assert.Zero(t, f.deliver("c", event))
	}
	// Both queues are now full.
	assert.Equal(t, 2, f.deliver("c", event))

	got := <-queue
	got.ChangedPaths[0] = "/mutated"
	assert.Equal(t, "/a", event.ChangedPaths[0], "subscribers receive copies")
}

func TestFanout_RemoveReportsLast(t *testing.T) {
	f := &fanout{}
	a, _ := f.add("c")
	b, _ := f.add("c")

	assert.False(t, f.remove("c", a))
	assert.False(t, f.remove("c", a), "second remove is a no-op")
	assert.True(t, f.remove("c", b))
}
