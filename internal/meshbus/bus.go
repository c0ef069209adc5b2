// Package meshbus bridges the control plane to the mesh's message
// broker and fans inbound mesh traffic out to any number of in-process
// consumers (HTTP handlers awaiting a reply, live-telemetry sessions).
//
// The fan-out is one publisher, many subscribers, on plain buffered
// channels: a subscriber that can't keep up gets disconnected rather
// than allowed to stall the others.
package meshbus

import (
	"context"
	"errors"
	"sync"
)

// ErrLagged is returned from Subscription.Recv when the subscriber
// could not keep up and its buffer was dropped.
var ErrLagged = errors.New("meshbus: subscriber lagged and was disconnected")

// ErrClosed is returned from Subscription.Recv once the subscription
// has been explicitly closed.
var ErrClosed = errors.New("meshbus: subscription closed")

// Bus fans out inbound mesh payloads to any number of subscribers.
type Bus struct {
	mu       sync.Mutex
	subs     map[int]*Subscription
	nextID   int
	capacity int
}

// NewBus creates a bus whose per-subscriber buffer holds capacity
// messages before that subscriber is considered lagged.
func NewBus(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{
		subs:     make(map[int]*Subscription),
		capacity: capacity,
	}
}

// Subscribe registers a new subscriber. Callers must Close it when
// done to release its slot.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	sub := &Subscription{
		id:  id,
		bus: b,
		ch:  make(chan []byte, b.capacity),
	}
	b.subs[id] = sub
	return sub
}

// Publish fans data out to every current subscriber. A subscriber
// whose buffer is full is dropped and marked lagged rather than
// allowed to block the others.
func (b *Bus) Publish(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		select {
		case sub.ch <- data:
		default:
			sub.markLagged()
			delete(b.subs, id)
		}
	}
}

// Subscription is one consumer's view of the bus.
type Subscription struct {
	id     int
	bus    *Bus
	ch     chan []byte
	once   sync.Once
	lagged bool
}

func (s *Subscription) markLagged() {
	s.once.Do(func() {
		s.lagged = true
		close(s.ch)
	})
}

// Recv blocks for the next message, or returns ErrLagged/ErrClosed,
// or ctx.Err() if ctx is done first.
func (s *Subscription) Recv(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-s.ch:
		if !ok {
			if s.lagged {
				return nil, ErrLagged
			}
			return nil, ErrClosed
		}
		return data, nil
	}
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if _, ok := s.bus.subs[s.id]; ok {
		delete(s.bus.subs, s.id)
		s.once.Do(func() { close(s.ch) })
	}
}
