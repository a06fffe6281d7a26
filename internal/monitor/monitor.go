// internal/monitor/monitor.go

// Package monitor runs the consumer side of a monitor session: the
// connection state machine, its reconnect policy and settings negotiation.
package monitor

import (
	"context"
	"time"

	"monitor-service/internal/model"
	"monitor-service/internal/stream"
)

// Service is the control RPC of the background monitor service
type Service interface {
	Connect(ctx context.Context, cfg model.MonitorConfig) model.Status
	Disconnect(ctx context.Context) model.Status
	Send(ctx context.Context, message string) model.Status
	GetCurrentSettings(ctx context.Context, board model.BoardRef, port model.PortRef) (model.SettingsDescriptor, error)
	ChangeSettings(ctx context.Context, settings model.SettingsDescriptor) model.Status
	// StreamAddress returns the ws:// address of the streaming channel
	StreamAddress(ctx context.Context) (string, error)
}

// Transport is the streaming channel to the service
type Transport interface {
	Connect(ctx context.Context, address string) error
	Disconnect() error
	Send(ctx context.Context, env stream.Envelope) error
	OnMessagesReceived(listener func([]string))
	OnConnectionStateChanged(listener func(connected bool))
}

// PortLister reports the ports currently attached
type PortLister interface {
	AvailablePorts(ctx context.Context) ([]model.PortRef, error)
}

// Config holds the manager's tunables
type Config struct {
	// LineEnding is appended to every Send
	LineEnding string `json:"line_ending"`
	// BackoffUnit is multiplied by the number of recent errors
	BackoffUnit time.Duration `json:"backoff_unit"`
	// MaxErrorHistory is the number of consecutive errors after which
	// reconnection is abandoned
	MaxErrorHistory int `json:"max_error_history"`
	// ConnectTimeout bounds connect attempts made by the reconnect timer
	ConnectTimeout time.Duration `json:"connect_timeout"`

	Notifier  Notifier  `json:"-"`
	Scheduler Scheduler `json:"-"`
}

// DefaultConfig returns the standard reconnect policy
func DefaultConfig() *Config {
	return &Config{
		LineEnding:      "\n",
		BackoffUnit:     time.Second,
		MaxErrorHistory: 10,
		ConnectTimeout:  10 * time.Second,
	}
}

func (c *Config) withDefaults() *Config {
	out := *DefaultConfig()
	if c == nil {
		return &out
	}
	// LineEnding may legitimately be empty
	out.LineEnding = c.LineEnding
	if c.BackoffUnit > 0 {
		out.BackoffUnit = c.BackoffUnit
	}
	if c.MaxErrorHistory > 0 {
		out.MaxErrorHistory = c.MaxErrorHistory
	}
	if c.ConnectTimeout > 0 {
		out.ConnectTimeout = c.ConnectTimeout
	}
	out.Notifier = c.Notifier
	out.Scheduler = c.Scheduler
	return &out
}
