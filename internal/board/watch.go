package board

import (
	"context"
	"fmt"

	"github.com/quillworks/taskboard/internal/eventbus"
)

// Watch subscribes to source and refreshes the board after change
// notifications until ctx is cancelled. Every event triggers a re-fetch of
// this board's own partition, whatever partition the event came from. Events
// that arrive while a refresh is running are coalesced into one more refresh.
func (b *Board) Watch(ctx context.Context, source eventbus.Source) error {
	events, err := source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to changes: %w", err)
	}

	kick := make(chan struct{}, 1)
	go func() {
		defer close(kick)
		for range events {
			select {
			case kick <- struct{}{}:
			default:
			}
		}
	}()

	for range kick {
		if ctx.Err() != nil {
			break
		}
		_ = b.Refresh(ctx)
	}
	return nil
}

// Changes returns a channel that receives a signal after every successful
// refresh. Signals are coalesced: a slow reader sees at least one pending
// signal, not one per refresh. The channel is closed when ctx is done.
func (b *Board) Changes(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)
	b.listenersMu.Lock()
	b.listeners[ch] = struct{}{}
	b.listenersMu.Unlock()

	go func() {
		<-ctx.Done()
		b.listenersMu.Lock()
		delete(b.listeners, ch)
		close(ch)
		b.listenersMu.Unlock()
	}()
	return ch
}

func (b *Board) notify() {
	b.listenersMu.Lock()
	defer b.listenersMu.Unlock()
	for ch := range b.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
