// Package events delivers per-payment progress notifications to any number of
// subscribers without ever blocking the publisher.
package events

import (
	"math/big"
	"sync"
	"sync/atomic"
)

// Kind is the outcome carried by an Event.
type Kind string

// Event kinds.
const (
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
)

// DefaultBuffer is the subscriber channel capacity used when none is given.
const DefaultBuffer = 64

// Event reports one completed payment. Exactly one of TxID and Err is set.
// Batch numbers the batch within its currency; Index is the payment's
// position in that batch.
type Event struct {
	Kind     Kind
	Currency string
	Batch    uint64
	Index    int
	Address  string
	Amount   *big.Int
	TxID     string
	Err      error
}

// Bus fans events out to subscribers. A subscriber whose buffer is full
// misses the event; the drop is counted and the publisher moves on.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	next    uint64
	closed  bool
	dropped atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]chan Event)}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// cancel func unregisters and closes the channel; calling it twice is safe.
// Subscribing to a closed bus yields an already-closed channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	return ch, func() { b.unsubscribe(id) }
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish hands ev to every subscriber that has room.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
