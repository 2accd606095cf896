package event

import (
	"context"
	"errors"
	"sync"
)

// ErrBusClosed is returned by Publish after Close. Late producers get an
// error instead of a panic.
var ErrBusClosed = errors.New("event bus closed")

// Bus carries canonical events from the source monitors to the dispatcher.
// Publish blocks when the buffer is full so a slow dispatcher applies
// backpressure to pollers instead of dropping events.
//
// Close does not close the events channel; it signals Done. Events already
// buffered stay receivable so the consumer can drain them after producers
// have stopped.
type Bus struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewBus creates a bus with the given buffer capacity.
func NewBus(capacity int) *Bus {
	return &Bus{
		events: make(chan Event, capacity),
		done:   make(chan struct{}),
	}
}

// Publish enqueues an event, blocking until there is room, the bus closes,
// or ctx is done.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	select {
	case <-b.done:
		return ErrBusClosed
	default:
	}
	select {
	case b.events <- e:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the receive side of the bus.
func (b *Bus) Events() <-chan Event {
	return b.events
}

// Done is closed once Close has been called.
func (b *Bus) Done() <-chan struct{} {
	return b.done
}

// Close shuts the bus down. Idempotent. Buffered events remain available
// on Events for the consumer to drain.
func (b *Bus) Close() {
	b.once.Do(func() { close(b.done) })
}
