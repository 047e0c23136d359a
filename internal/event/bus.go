package event

import (
	"sync"

	"token-settlement-gateway/internal/core/domain"
)

type subscriber struct {
	ch   chan domain.CashOutEvent
	done chan struct{}
}

// Bus is an in-process publish/subscribe stream for cash-out events.
// Publishing blocks until every subscriber has taken the event, so a single
// publisher (the outbox dispatcher) delivers to each subscriber in publish
// order. Engine lifetime and listener lifetime stay decoupled: listeners
// subscribe and cancel independently.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Publish delivers ev to all current subscribers. A subscriber that cancels
// mid-delivery is skipped.
func (b *Bus) Publish(ev domain.CashOutEvent) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- ev:
		case <-s.done:
		}
	}
}

// Subscribe registers a listener with the given channel buffer. The returned
// cancel func detaches the listener; calling it more than once is safe.
// The channel is closed only when the bus itself shuts down.
func (b *Bus) Subscribe(buffer int) (<-chan domain.CashOutEvent, func()) {
	if buffer <= 0 {
		buffer = 64
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		ch:   make(chan domain.CashOutEvent, buffer),
		done: make(chan struct{}),
	}
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		// Close may have detached this subscriber already; done is closed
		// exactly once, by whichever side removes the map entry.
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.done)
		}
	}
	return sub.ch, cancel
}

// Close detaches all subscribers. Publish becomes a no-op afterwards.
// Subscriber channels stay open (an in-flight Publish may still hold one);
// listeners observe shutdown through their own context.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		delete(b.subs, id)
		close(s.done)
	}
}
