// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of journal event
type EventType string

const (
	EventMonitorConnected    EventType = "MONITOR_CONNECTED"
	EventMonitorDisconnected EventType = "MONITOR_DISCONNECTED"
	EventMonitorError        EventType = "MONITOR_ERROR"
	EventSettingsChanged     EventType = "SETTINGS_CHANGED"
)

// MonitorEvent is one lifecycle record of the monitor service
type MonitorEvent struct {
	ID         uuid.UUID     `json:"id"`
	EventType  EventType     `json:"event_type"`
	Config     MonitorConfig `json:"config"`
	Code       *ErrorCode    `json:"code,omitempty"`
	Message    string        `json:"message,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewMonitorEvent stamps a new event
func NewMonitorEvent(eventType EventType, cfg MonitorConfig, message string) *MonitorEvent {
	return &MonitorEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		Config:     cfg,
		Message:    message,
		OccurredAt: time.Now(),
	}
}
