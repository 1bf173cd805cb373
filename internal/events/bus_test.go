package events

import (
	"errors"
	"testing"
)

/**
 * Test that listeners run synchronously in subscription order
 * @param {*testing.T} t - Testing framework instance
 */
func TestPublishOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		bus.Subscribe(DaemonStarted, func(ev Event) error {
			order = append(order, i)
			return nil
		})
	}

	bus.Publish(Event{Type: DaemonStarted, EntityID: "d-1"})

	if len(order) != 3 {
		t.Fatalf("Expected 3 listeners to run, got %d", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Errorf("Listener %d ran out of order (position %d)", got, i)
		}
	}
}

/**
 * Test that a failing listener does not stop dispatch
 * @param {*testing.T} t - Testing framework instance
 */
func TestPublishListenerErrorIsolated(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(TunnelOffline, func(ev Event) error {
		return errors.New("listener failure")
	})
	called := false
	bus.Subscribe(TunnelOffline, func(ev Event) error {
		called = true
		return nil
	})

	bus.Publish(Event{Type: TunnelOffline, EntityID: "t-1"})

	if !called {
		t.Error("Second listener should run after the first returned an error")
	}
}

/**
 * Test that a panicking listener does not abort the publisher
 * @param {*testing.T} t - Testing framework instance
 */
func TestPublishListenerPanicRecovered(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(DaemonCrashed, func(ev Event) error {
		panic("listener panic")
	})
	called := false
	bus.Subscribe(DaemonCrashed, func(ev Event) error {
		called = true
		return nil
	})

	bus.Publish(Event{Type: DaemonCrashed, EntityID: "d-1"})

	if !called {
		t.Error("Second listener should run after the first panicked")
	}
}

/**
 * Test that listeners only receive their subscribed event type
 * @param {*testing.T} t - Testing framework instance
 */
func TestPublishTypeFiltering(t *testing.T) {
	bus := NewBus()

	var got []Type
	bus.Subscribe(DaemonStopped, func(ev Event) error {
		got = append(got, ev.Type)
		return nil
	})

	bus.Publish(Event{Type: DaemonStarted, EntityID: "d-1"})
	bus.Publish(Event{Type: DaemonStopped, EntityID: "d-1"})
	bus.Publish(Event{Type: TunnelCreated, EntityID: "t-1"})

	if len(got) != 1 || got[0] != DaemonStopped {
		t.Errorf("Expected exactly one daemon_stopped event, got %v", got)
	}
}

/**
 * Test that Publish fills the event timestamp when unset
 * @param {*testing.T} t - Testing framework instance
 */
func TestPublishSetsTime(t *testing.T) {
	bus := NewBus()

	var received Event
	bus.Subscribe(TunnelCreated, func(ev Event) error {
		received = ev
		return nil
	})

	bus.Publish(Event{Type: TunnelCreated, EntityID: "t-1"})

	if received.Time.IsZero() {
		t.Error("Publish should stamp the event time")
	}
}
