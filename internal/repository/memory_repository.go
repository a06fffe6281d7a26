// internal/repository/memory_repository.go
package repository

import (
	"context"
	"sync"
	"time"

	"monitor-service/internal/model"
)

// DefaultMemoryCapacity is the journal size used without a database
const DefaultMemoryCapacity = 1000

// memoryEventRepository keeps the newest events in memory when no database
// is configured
type memoryEventRepository struct {
	mu       sync.RWMutex
	events   []*model.MonitorEvent
	capacity int
}

// NewMemoryEventRepository creates an in-memory journal holding at most
// capacity events
func NewMemoryEventRepository(capacity int) EventRepository {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &memoryEventRepository{capacity: capacity}
}

func (r *memoryEventRepository) Create(_ context.Context, event *model.MonitorEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := *event
	r.events = append(r.events, &e)
	if over := len(r.events) - r.capacity; over > 0 {
		r.events = append(r.events[:0:0], r.events[over:]...)
	}
	return nil
}

func (r *memoryEventRepository) List(_ context.Context, filter *EventFilter) ([]*model.MonitorEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := filter.limit()
	events := []*model.MonitorEvent{}
	for i := len(r.events) - 1; i >= 0 && len(events) < limit; i-- {
		if filter.matches(r.events[i]) {
			e := *r.events[i]
			events = append(events, &e)
		}
	}
	return events, nil
}

func (r *memoryEventRepository) DeleteOlderThan(_ context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.events[:0]
	for _, e := range r.events {
		if !e.OccurredAt.Before(olderThan) {
			kept = append(kept, e)
		}
	}
	deleted := int64(len(r.events) - len(kept))
	clear(r.events[len(kept):])
	r.events = kept
	return deleted, nil
}
