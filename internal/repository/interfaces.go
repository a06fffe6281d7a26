// internal/repository/interfaces.go
package repository

import (
	"context"
	"time"

	"monitor-service/internal/model"
)

// EventRepository defines journal data access operations
type EventRepository interface {
	Create(ctx context.Context, event *model.MonitorEvent) error
	List(ctx context.Context, filter *EventFilter) ([]*model.MonitorEvent, error)

	// Cleanup
	DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
}

// EventFilter represents journal listing filters
type EventFilter struct {
	PortAddress *string          `json:"port_address,omitempty"`
	EventType   *model.EventType `json:"event_type,omitempty"`
	Limit       int              `json:"limit"`
}

// DefaultEventLimit caps List when no limit is given
const DefaultEventLimit = 100

func (f *EventFilter) limit() int {
	if f == nil || f.Limit <= 0 {
		return DefaultEventLimit
	}
	return f.Limit
}

func (f *EventFilter) matches(e *model.MonitorEvent) bool {
	if f == nil {
		return true
	}
	if f.PortAddress != nil && e.Config.Port.Address != *f.PortAddress {
		return false
	}
	if f.EventType != nil && e.EventType != *f.EventType {
		return false
	}
	return true
}
