package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiostudio/conductor/pkg/ports"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus(0)
	ctx := context.Background()

	received := make(chan ports.Event, 1)
	require.NoError(t, bus.Subscribe(ctx, "runs", func(ctx context.Context, e ports.Event) error {
		received <- e
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, "runs", ports.Event{ID: "e1", Type: ports.EventTypeProgress}))

	select {
	case e := <-received:
		assert.Equal(t, "e1", e.ID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishIsTopicScoped(t *testing.T) {
	bus := NewBus(0)
	ctx := context.Background()

	received := make(chan ports.Event, 1)
	require.NoError(t, bus.Subscribe(ctx, "runs", func(ctx context.Context, e ports.Event) error {
		received <- e
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, "other", ports.Event{ID: "e1"}))

	select {
	case <-received:
		t.Fatal("event leaked across topics")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSubscribeCancelRemovesHandler(t *testing.T) {
	bus := NewBus(0)
	subCtx, cancel := context.WithCancel(context.Background())

	received := make(chan ports.Event, 4)
	require.NoError(t, bus.Subscribe(subCtx, "runs", func(ctx context.Context, e ports.Event) error {
		received <- e
		return nil
	}))

	cancel()
	// Unsubscription happens on a goroutine watching the context.
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), "runs", ports.Event{ID: "e1"}))

	select {
	case <-received:
		t.Fatal("cancelled subscriber still receives events")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSinceReplaysBufferedEvents(t *testing.T) {
	bus := NewBus(0)
	ctx := context.Background()

	require.NoError(t, bus.Publish(ctx, "runs", ports.Event{ID: "e1"}))
	require.NoError(t, bus.Publish(ctx, "other", ports.Event{ID: "e2"}))
	require.NoError(t, bus.Publish(ctx, "runs", ports.Event{ID: "e3"}))

	events, last := bus.Since(0, "runs")
	require.Len(t, events, 2)
	assert.Equal(t, "e1", events[0].ID)
	assert.Equal(t, "e3", events[1].ID)

	// Resuming from the returned cursor yields nothing new.
	events, _ = bus.Since(last, "runs")
	assert.Empty(t, events)
}

func TestBufferIsBounded(t *testing.T) {
	bus := NewBus(3)
	ctx := context.Background()

	for _, id := range []string{"e1", "e2", "e3", "e4", "e5"} {
		require.NoError(t, bus.Publish(ctx, "runs", ports.Event{ID: id}))
	}

	events, _ := bus.Since(0, "runs")
	require.Len(t, events, 3)
	assert.Equal(t, "e3", events[0].ID, "oldest events are evicted first")
	assert.Equal(t, "e5", events[2].ID)
}
