package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("event not received within timeout")
	}
	return Event{}
}

func TestEventBus_Subscribe(t *testing.T) {
	bus := NewEventBus(10)
	ch := bus.Subscribe(EventTypeTrackingEvent)

	bus.Publish(Event{
		Type:   EventTypeTrackingEvent,
		Source: "test",
		Data:   map[string]interface{}{"camera": "front_door"},
	})

	ev := receive(t, ch)
	assert.Equal(t, EventTypeTrackingEvent, ev.Type)
	assert.Equal(t, "test", ev.Source)
	assert.Equal(t, "front_door", ev.String("camera"))
	assert.False(t, ev.Timestamp.IsZero())
}

func TestEventBus_SubscribeAll_SeesLaterTypes(t *testing.T) {
	bus := NewEventBus(10)
	ch := bus.SubscribeAll()

	bus.Publish(Event{Type: EventTypeTrackingEvent, Source: "mqtt"})
	bus.Publish(Event{Type: EventTypeServiceStarted, Source: "manager"})

	assert.Equal(t, EventTypeTrackingEvent, receive(t, ch).Type)
	assert.Equal(t, EventTypeServiceStarted, receive(t, ch).Type)
}

func TestEventBus_PublishDoesNotBlock(t *testing.T) {
	bus := NewEventBus(1)
	ch := bus.Subscribe(EventTypeTrackingEvent)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			bus.Publish(Event{Type: EventTypeTrackingEvent})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, 1)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	ch := bus.Subscribe(EventTypeTrackingEvent)
	all := bus.SubscribeAll()

	bus.Unsubscribe(EventTypeTrackingEvent, ch)
	bus.Unsubscribe("", all)

	_, ok := <-ch
	assert.False(t, ok)
	_, ok = <-all
	assert.False(t, ok)

	// Publishing after unsubscribe must not panic
	bus.Publish(Event{Type: EventTypeTrackingEvent})
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)
	ch := bus.Subscribe(EventTypeTrackingEvent)

	bus.Close()
	bus.Close()

	_, ok := <-ch
	assert.False(t, ok)

	bus.Publish(Event{Type: EventTypeTrackingEvent})
	late := bus.Subscribe(EventTypeTrackingEvent)
	_, ok = <-late
	assert.False(t, ok)
}

func TestEventBus_SubscribeWithHandler(t *testing.T) {
	bus := NewEventBus(10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handled := make(chan string, 2)
	errs := make(chan error, 1)
	bus.SubscribeWithHandler(ctx, EventTypeTrackingEvent, func(ctx context.Context, event Event) error {
		handled <- event.String("camera")
		if event.String("camera") == "bad" {
			return errors.New("handler failed")
		}
		return nil
	}, func(err error) { errs <- err })

	bus.Publish(Event{Type: EventTypeTrackingEvent, Data: map[string]interface{}{"camera": "yard"}})
	bus.Publish(Event{Type: EventTypeTrackingEvent, Data: map[string]interface{}{"camera": "bad"}})

	assert.Equal(t, "yard", <-handled)
	assert.Equal(t, "bad", <-handled)
	select {
	case err := <-errs:
		assert.EqualError(t, err, "handler failed")
	case <-time.After(time.Second):
		t.Fatal("handler error not reported")
	}
}
