// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"monitor-service/internal/eventbus"
	"monitor-service/internal/stream"
	"monitor-service/internal/utils"
)

// WebSocketHandler pushes monitor events to websocket subscribers
type WebSocketHandler struct {
	registry *stream.Registry
	bus      *eventbus.EventBus
	hub      *stream.Hub
	upgrader websocket.Upgrader
	logger   *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(bus *eventbus.EventBus, hub *stream.Hub, sendBuffer int, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		registry: stream.NewRegistry(sendBuffer, logger),
		bus:      bus,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are checked by the CORS middleware
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

// Run forwards bus events to subscribers until ctx is done
func (h *WebSocketHandler) Run(ctx context.Context) {
	events, cancel := h.bus.Subscribe(eventbus.TypeMonitorError, eventbus.TypeConnectionChanged)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			h.registry.CloseAll()
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(&WebSocketMessage{
				Type:      event.Type,
				Data:      event.Data,
				Timestamp: event.Timestamp,
			})
		}
	}
}

// Broadcast sends message to every event subscriber
func (h *WebSocketHandler) Broadcast(message *WebSocketMessage) int {
	frame, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return 0
	}
	return h.registry.Broadcast(kindEvents, frame)
}

// HandleEventConnection streams monitor errors and connection changes
// @Summary Monitor event stream
// @Description WebSocket of {type, data, timestamp} messages; types are monitor_error and connection_changed
// @Tags WebSocket
// @Success 101 "Switching Protocols"
// @Router /ws/events [get]
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	peer := h.registry.Register(conn, kindEvents, c.Request.UserAgent(), c.ClientIP())
	h.logger.Info("Event client connected",
		zap.String("client_id", peer.ID),
		zap.String("remote_addr", peer.RemoteAddr),
	)

	// Subscribers only listen; inbound frames are ignored
	h.registry.Serve(peer, nil)

	h.logger.Info("Event client disconnected", zap.String("client_id", peer.ID))
}

// GetStats returns WebSocket connection statistics
// @Summary WebSocket statistics
// @Tags WebSocket
// @Produce json
// @Success 200 {object} utils.APIResponse{data=ConnectionStats}
// @Router /ws/stats [get]
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "WebSocket statistics", h.GetConnectionStats())
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	stats := h.registry.Stats()
	return &ConnectionStats{
		TotalConnections: stats.TotalConnections,
		ByKind:           stats.ByKind,
		StreamClients:    h.hub.ClientCount(),
		StreamAddress:    h.hub.Address(),
	}
}
