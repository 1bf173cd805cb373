package events

import (
	"sync"
	"time"

	"upkeeper/internal/logger"
)

// Type enumerates every lifecycle event the supervisors can emit. The set is
// closed: subscribing to a type outside this list is a compile-time error at
// the call site, not a silent runtime no-op.
type Type string

const (
	DaemonStarted       Type = "daemon_started"
	DaemonStopped       Type = "daemon_stopped"
	DaemonCrashed       Type = "daemon_crashed"
	DaemonRestarting    Type = "daemon_restarting"
	DaemonRestarted     Type = "daemon_restarted"
	DaemonFailed        Type = "daemon_failed"
	DaemonHealthChanged Type = "daemon_health_changed"

	TunnelCreated      Type = "tunnel_created"
	TunnelOffline      Type = "tunnel_offline"
	TunnelReconnecting Type = "tunnel_reconnecting"
	TunnelReconnected  Type = "tunnel_reconnected"
	TunnelError        Type = "tunnel_error"
	TunnelClosed       Type = "tunnel_closed"
)

/**
 * Event carries one lifecycle notification
 * @property {Type} type - Which lifecycle transition happened
 * @property {string} entityId - The daemon or tunnel the event is about
 * @property {string} detail - Human readable summary
 * @property {error} err - Failure cause when the transition was caused by one
 */
type Event struct {
	Type     Type
	EntityID string
	Detail   string
	Err      error
	Time     time.Time
}

// Listener receives events. A returned error is logged but never interrupts
// dispatch to the remaining listeners.
type Listener func(Event) error

// Bus dispatches events synchronously, in subscription order, to the
// listeners registered for each event type.
type Bus struct {
	mutex     sync.RWMutex
	listeners map[Type][]Listener
}

func NewBus() *Bus {
	return &Bus{
		listeners: make(map[Type][]Listener),
	}
}

// Subscribe registers a listener for one event type. Listeners run in the
// order they were registered.
func (b *Bus) Subscribe(t Type, l Listener) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.listeners[t] = append(b.listeners[t], l)
}

/**
 * Publish dispatches an event to every listener registered for its type
 * @param {Event} ev - Event to dispatch
 * @description
 * - Dispatch is synchronous and ordered
 * - A listener error or panic is caught and logged, remaining listeners
 *   still run and the caller (the monitor loop) is never aborted
 */
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mutex.RLock()
	listeners := make([]Listener, len(b.listeners[ev.Type]))
	copy(listeners, b.listeners[ev.Type])
	b.mutex.RUnlock()

	logger.Debugf("Event [%s] entity=%s detail=%s", ev.Type, ev.EntityID, ev.Detail)
	for _, l := range listeners {
		b.dispatch(ev, l)
	}
}

func (b *Bus) dispatch(ev Event, l Listener) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Event listener panicked on [%s]: %v", ev.Type, r)
		}
	}()
	if err := l(ev); err != nil {
		logger.Errorf("Event listener failed on [%s] entity=%s: %v", ev.Type, ev.EntityID, err)
	}
}
