// internal/eventbus/bus.go
package eventbus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"monitor-service/internal/model"
)

// Event types published by the monitor service
const (
	TypeMonitorError      = "monitor_error"
	TypeConnectionChanged = "connection_changed"
)

const (
	defaultQueueSize      = 1000
	defaultSubscriberSize = 100
)

// Event represents a system event
type Event struct {
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectionChanged is the payload of a connection_changed event. A nil
// Config means disconnected.
type ConnectionChanged struct {
	Connected bool                 `json:"connected"`
	Config    *model.MonitorConfig `json:"config,omitempty"`
}

// EventBus manages event distribution
type EventBus struct {
	subscribers map[string]map[int]chan Event
	nextID      int
	events      chan Event
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string]map[int]chan Event),
		events:      make(chan Event, defaultQueueSize),
		logger:      logger,
	}
}

// Start distributes events until ctx is done
func (eb *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eb.events:
			eb.distributeEvent(event)
		}
	}
}

// Publish queues an event. It never blocks; a full queue drops the event.
func (eb *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", event.Type),
		)
	}
}

// PublishError publishes a classified monitor error
func (eb *EventBus) PublishError(source string, err model.MonitorError) {
	eb.Publish(Event{Type: TypeMonitorError, Source: source, Data: err})
}

// PublishConnection publishes a connection change
func (eb *EventBus) PublishConnection(source string, cfg *model.MonitorConfig) {
	eb.Publish(Event{
		Type:   TypeConnectionChanged,
		Source: source,
		Data:   ConnectionChanged{Connected: cfg != nil, Config: cfg},
	})
}

// Subscribe subscribes to events of the given types. The returned cancel
// function removes the subscription and closes the channel.
func (eb *EventBus) Subscribe(eventTypes ...string) (<-chan Event, func()) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	id := eb.nextID
	eb.nextID++
	subscriber := make(chan Event, defaultSubscriberSize)
	for _, t := range eventTypes {
		if eb.subscribers[t] == nil {
			eb.subscribers[t] = make(map[int]chan Event)
		}
		eb.subscribers[t][id] = subscriber
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			eb.mutex.Lock()
			defer eb.mutex.Unlock()
			for _, t := range eventTypes {
				delete(eb.subscribers[t], id)
			}
			close(subscriber)
		})
	}
	return subscriber, cancel
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event Event) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, subscriber := range eb.subscribers[event.Type] {
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
