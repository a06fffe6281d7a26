// internal/handler/websocket_types.go
package handler

import (
	"time"
)

// Peer kinds served by the control server
const (
	kindEvents = "events"
)

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// ConnectionStats represents WebSocket connection statistics
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ByKind           map[string]int `json:"by_kind"`
	StreamClients    int            `json:"stream_clients"`
	StreamAddress    string         `json:"stream_address,omitempty"`
}
