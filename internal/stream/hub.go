// internal/stream/hub.go
package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"monitor-service/internal/middleware"
)

const streamKind = "stream"

// CommandHandler executes commands arriving on the streaming channel
type CommandHandler interface {
	HandleCommand(ctx context.Context, env Envelope) error
}

// HubConfig configures the streaming endpoint
type HubConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"` // 0 picks a free port
	SendBuffer int    `json:"send_buffer"`

	// AllowedOrigins lists browser origins besides loopback ones that may
	// open the stream. "*" allows any.
	AllowedOrigins []string `json:"allowed_origins"`
}

// Hub is the server side of the streaming channel. It listens on its own
// port so that line data never queues behind control RPCs.
type Hub struct {
	config   *HubConfig
	handler  CommandHandler
	registry *Registry
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	server  *http.Server
	address string
}

// NewHub creates a hub; Start must be called before clients can connect
func NewHub(config *HubConfig, handler CommandHandler, logger *zap.Logger) *Hub {
	if config == nil {
		config = &HubConfig{Host: "127.0.0.1"}
	}
	if config.Host == "" {
		config.Host = "127.0.0.1"
	}
	logger = logger.With(zap.String("component", "stream-hub"))

	h := &Hub{
		config:   config,
		handler:  handler,
		registry: NewRegistry(config.SendBuffer, logger),
		logger:   logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin admits clients that send no Origin (everything but browsers),
// loopback pages and the configured origins.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(h.config.AllowedOrigins, "*") || slices.Contains(h.config.AllowedOrigins, origin) {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch host := u.Hostname(); host {
	case "localhost":
		return true
	default:
		ip := net.ParseIP(host)
		if ip != nil && ip.IsLoopback() {
			return true
		}
	}
	h.logger.Warn("Rejected stream client origin", zap.String("origin", origin))
	return false
}

// Start binds the listener if the hub is not running yet and returns the
// ws:// address clients should dial.
func (h *Hub) Start() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.server != nil {
		return h.address, nil
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(h.config.Host, strconv.Itoa(h.config.Port)))
	if err != nil {
		return "", fmt.Errorf("failed to listen for stream clients: %w", err)
	}

	engine := gin.New()
	engine.Use(middleware.RecoveryMiddleware(h.logger))
	engine.GET("/", h.handleStream)

	h.server = &http.Server{Handler: engine}
	h.address = "ws://" + ln.Addr().String()

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("Stream server stopped", zap.Error(err))
		}
	}()

	h.logger.Info("Stream hub listening", zap.String("address", h.address))
	return h.address, nil
}

// Address returns the ws:// address, or "" when stopped
func (h *Hub) Address() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.address
}

// Broadcast sends one batch of fragments to every stream client and returns
// how many accepted it.
func (h *Hub) Broadcast(fragments []string) int {
	if len(fragments) == 0 {
		return 0
	}
	frame, err := EncodeFragments(fragments)
	if err != nil {
		h.logger.Error("Failed to encode fragments", zap.Error(err))
		return 0
	}
	return h.registry.Broadcast(streamKind, frame)
}

// ClientCount returns the number of connected stream clients
func (h *Hub) ClientCount() int {
	return h.registry.Count(streamKind)
}

// Stats returns connection statistics
func (h *Hub) Stats() *Stats {
	return h.registry.Stats()
}

// Stop closes every client and the listener
func (h *Hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	server := h.server
	h.server = nil
	h.address = ""
	h.mu.Unlock()

	if server == nil {
		return nil
	}
	h.registry.CloseAll()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop stream hub: %w", err)
	}
	h.logger.Info("Stream hub stopped")
	return nil
}

func (h *Hub) handleStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade stream connection", zap.Error(err))
		return
	}

	peer := h.registry.Register(conn, streamKind, c.Request.UserAgent(), c.Request.RemoteAddr)
	h.logger.Info("Stream client connected",
		zap.String("peer_id", peer.ID),
		zap.String("remote_addr", peer.RemoteAddr),
	)

	h.registry.Serve(peer, func(frame []byte) {
		h.handleFrame(c.Request.Context(), peer, frame)
	})

	h.logger.Info("Stream client disconnected", zap.String("peer_id", peer.ID))
}

func (h *Hub) handleFrame(ctx context.Context, peer *Peer, frame []byte) {
	env, err := DecodeEnvelope(frame)
	if err != nil {
		h.logger.Warn("Dropping invalid frame",
			zap.Error(err),
			zap.String("peer_id", peer.ID),
		)
		return
	}
	if h.handler == nil {
		return
	}
	if err := h.handler.HandleCommand(ctx, env); err != nil {
		h.logger.Warn("Stream command failed",
			zap.String("command", string(env.Command)),
			zap.Error(err),
			zap.String("peer_id", peer.ID),
		)
	}
}
