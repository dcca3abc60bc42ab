// Package events delivers lifecycle CloudEvents to registered
// observers. The Dispatcher implements modlife.EventEmitter, so it can
// be handed to the installer, schema runner, and catalog directly;
// observers subscribe to the event types they care about (audit sinks,
// logging bridges, metrics counters).
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/saasforge/modlife"
)

// ErrObserverExists is returned when registering a duplicate observer
// ID.
var ErrObserverExists = errors.New("observer already registered")

// Observer receives dispatched lifecycle events.
type Observer interface {
	// OnEvent handles one event. Errors are logged by the dispatcher
	// and never stop delivery to other observers.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID identifies the observer for unregistration.
	ObserverID() string
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc struct {
	ID      string
	Handler func(ctx context.Context, event cloudevents.Event) error
}

func (o ObserverFunc) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return o.Handler(ctx, event)
}

func (o ObserverFunc) ObserverID() string { return o.ID }

type registration struct {
	observer Observer

	// types filters delivery; empty means all events.
	types map[string]bool
}

// Dispatcher fans lifecycle events out to observers synchronously, in
// registration order. It implements modlife.EventEmitter.
type Dispatcher struct {
	mu        sync.RWMutex
	observers []registration
	logger    modlife.Logger
}

// NewDispatcher creates a Dispatcher. A nil logger defaults to a no-op.
func NewDispatcher(logger modlife.Logger) *Dispatcher {
	if logger == nil {
		logger = modlife.NopLogger{}
	}
	return &Dispatcher{logger: logger}
}

// Register adds an observer. With no event types given the observer
// receives everything; otherwise only the named types.
func (d *Dispatcher) Register(observer Observer, eventTypes ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, reg := range d.observers {
		if reg.observer.ObserverID() == observer.ObserverID() {
			return fmt.Errorf("%w: %s", ErrObserverExists, observer.ObserverID())
		}
	}

	var types map[string]bool
	if len(eventTypes) > 0 {
		types = make(map[string]bool, len(eventTypes))
		for _, t := range eventTypes {
			types[t] = true
		}
	}
	d.observers = append(d.observers, registration{observer: observer, types: types})
	return nil
}

// Unregister removes the observer with the given ID. Unknown IDs are a
// no-op.
func (d *Dispatcher) Unregister(observerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for idx, reg := range d.observers {
		if reg.observer.ObserverID() == observerID {
			d.observers = append(d.observers[:idx], d.observers[idx+1:]...)
			return
		}
	}
}

// EmitEvent delivers the event to every matching observer. Observer
// errors are logged and swallowed: event delivery must never fail the
// lifecycle operation that produced the event.
func (d *Dispatcher) EmitEvent(ctx context.Context, event cloudevents.Event) error {
	d.mu.RLock()
	observers := make([]registration, len(d.observers))
	copy(observers, d.observers)
	d.mu.RUnlock()

	for _, reg := range observers {
		if reg.types != nil && !reg.types[event.Type()] {
			continue
		}
		if err := reg.observer.OnEvent(ctx, event); err != nil {
			d.logger.Warn("Event observer failed",
				"observer", reg.observer.ObserverID(), "type", event.Type(), "error", err)
		}
	}
	return nil
}

// MemoryLog is an Observer that keeps the most recent events in memory,
// serving as a lightweight audit trail.
type MemoryLog struct {
	id  string
	max int

	mu     sync.Mutex
	events []cloudevents.Event
}

// NewMemoryLog creates a MemoryLog retaining at most max events; zero
// or negative means unbounded.
func NewMemoryLog(id string, max int) *MemoryLog {
	return &MemoryLog{id: id, max: max}
}

func (l *MemoryLog) ObserverID() string { return l.id }

func (l *MemoryLog) OnEvent(_ context.Context, event cloudevents.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)
	if l.max > 0 && len(l.events) > l.max {
		l.events = l.events[len(l.events)-l.max:]
	}
	return nil
}

// Events returns a copy of the retained events, oldest first.
func (l *MemoryLog) Events() []cloudevents.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]cloudevents.Event, len(l.events))
	copy(out, l.events)
	return out
}

// EventsOfType returns the retained events with the given type.
func (l *MemoryLog) EventsOfType(eventType string) []cloudevents.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []cloudevents.Event
	for _, event := range l.events {
		if event.Type() == eventType {
			out = append(out, event)
		}
	}
	return out
}
