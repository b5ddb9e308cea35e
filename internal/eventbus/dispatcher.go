package eventbus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/quillworks/taskboard/internal/types"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 16

// Dispatcher provides an in-process implementation of Source and Publisher.
type Dispatcher struct {
	nextID      uint64
	mu          sync.RWMutex
	subscribers map[uint64]chan types.TaskEvent
	buffer      int
	dropped     atomic.Uint64
}

// NewDispatcher constructs a dispatcher with the provided per-subscriber buffer.
func NewDispatcher(buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	return &Dispatcher{
		subscribers: make(map[uint64]chan types.TaskEvent),
		buffer:      buffer,
	}
}

// Subscribe implements Source by registering a new listener and returning a channel of events.
func (d *Dispatcher) Subscribe(ctx context.Context) (<-chan types.TaskEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan types.TaskEvent, d.buffer)
	id := atomic.AddUint64(&d.nextID, 1)

	d.mu.Lock()
	d.subscribers[id] = ch
	d.mu.Unlock()

	go func() {
		<-ctx.Done()
		d.mu.Lock()
		delete(d.subscribers, id)
		close(ch)
		d.mu.Unlock()
	}()

	return ch, nil
}

// Publish broadcasts the event to all active subscribers without blocking.
func (d *Dispatcher) Publish(evt types.TaskEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, ch := range d.subscribers {
		select {
		case ch <- evt:
		default:
			// Slow subscriber: it still has undelivered events queued, and any
			// one of them triggers the same full re-fetch.
			d.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (d *Dispatcher) Subscribers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}
