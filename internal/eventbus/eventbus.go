// Package eventbus carries task change notifications between the code that
// writes tasks and the views that display them.
//
// A Dispatcher fans events out inside one process. A NATSBridge extends the
// feed across processes: it forwards local events to a NATS subject and
// re-publishes remote events into the local Dispatcher. Events are never
// filtered by partition; subscribers re-fetch their own view.
package eventbus

import (
	"context"

	"github.com/quillworks/taskboard/internal/types"
)

// Source provides a stream of task events. The channel is closed when ctx is
// cancelled.
type Source interface {
	Subscribe(ctx context.Context) (<-chan types.TaskEvent, error)
}

// Publisher emits task events to active subscribers without blocking.
type Publisher interface {
	Publish(evt types.TaskEvent)
}

// Fanout publishes each event to every non-nil publisher in order.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(evt types.TaskEvent) {
	for _, p := range f {
		if p != nil {
			p.Publish(evt)
		}
	}
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(evt types.TaskEvent)

// Publish implements Publisher.
func (f PublisherFunc) Publish(evt types.TaskEvent) {
	f(evt)
}
