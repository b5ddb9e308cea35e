package storage

import (
	"context"
	"time"

	"github.com/quillworks/taskboard/internal/types"
)

// EventPublisher receives a notification for every successful write.
type EventPublisher interface {
	Publish(evt types.TaskEvent)
}

// NotifyingStorage wraps a Storage and publishes a TaskEvent after each
// successful create, update or delete. Failed writes publish nothing.
type NotifyingStorage struct {
	Storage
	publisher EventPublisher
	origin    string
	now       func() time.Time
}

// WithEvents returns s decorated with change notifications. A nil publisher
// returns s unchanged.
func WithEvents(s Storage, publisher EventPublisher, origin string) Storage {
	if publisher == nil {
		return s
	}
	return &NotifyingStorage{
		Storage:   s,
		publisher: publisher,
		origin:    origin,
		now:       time.Now,
	}
}

func (s *NotifyingStorage) CreateTask(ctx context.Context, task types.NewTask) (*types.Task, error) {
	created, err := s.Storage.CreateTask(ctx, task)
	if err != nil {
		return nil, err
	}
	s.publish(types.EventCreated, created.ID, created.UserEmail)
	return created, nil
}

func (s *NotifyingStorage) UpdateTask(ctx context.Context, id int64, update types.TaskUpdate) (*types.Task, error) {
	updated, err := s.Storage.UpdateTask(ctx, id, update)
	if err != nil {
		return nil, err
	}
	s.publish(types.EventUpdated, updated.ID, updated.UserEmail)
	return updated, nil
}

func (s *NotifyingStorage) DeleteTask(ctx context.Context, id int64) error {
	if err := s.Storage.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.publish(types.EventDeleted, id, "")
	return nil
}

// Unwrap returns the decorated store.
func (s *NotifyingStorage) Unwrap() Storage {
	return s.Storage
}

func (s *NotifyingStorage) publish(kind types.EventType, id int64, email string) {
	s.publisher.Publish(types.TaskEvent{
		Type:      kind,
		TaskID:    id,
		UserEmail: email,
		At:        s.now().UTC(),
		Origin:    s.origin,
	})
}
