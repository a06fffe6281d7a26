// internal/stream/client.go
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Send without an open socket
var ErrNotConnected = errors.New("stream: not connected")

// Client is the consumer side of the streaming channel. It never reconnects
// on its own; a dropped socket is reported through OnConnectionStateChanged.
type Client struct {
	dialer *websocket.Dialer
	logger *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}

	// writeMu serializes frames and pings on conn
	writeMu sync.Mutex

	listenersMu      sync.RWMutex
	messageListeners []func([]string)
	stateListeners   []func(bool)
}

// NewClient creates a disconnected client
func NewClient(logger *zap.Logger) *Client {
	return &Client{
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		logger: logger.With(zap.String("component", "stream-client")),
	}
}

// OnMessagesReceived registers a listener for inbound fragment batches.
// Batches are delivered one at a time in arrival order.
func (c *Client) OnMessagesReceived(listener func([]string)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.messageListeners = append(c.messageListeners, listener)
}

// OnConnectionStateChanged registers a listener for socket open and close
func (c *Client) OnConnectionStateChanged(listener func(connected bool)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.stateListeners = append(c.stateListeners, listener)
}

// Connected reports whether a socket is open
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect dials address, replacing any open socket
func (c *Client) Connect(ctx context.Context, address string) error {
	if err := c.Disconnect(); err != nil {
		c.logger.Warn("Failed to close previous stream", zap.Error(err))
	}

	conn, _, err := c.dialer.DialContext(ctx, address, nil)
	if err != nil {
		return fmt.Errorf("failed to dial stream %s: %w", address, err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.done = done
	c.mu.Unlock()

	go c.readLoop(conn, done)
	go c.pingLoop(conn, done)

	c.logger.Info("Stream connected", zap.String("address", address))
	c.emitState(true)
	return nil
}

// Disconnect closes the socket. It is a no-op when already closed.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn, c.done = nil, nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	close(done)

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	werr := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := conn.Close()
	c.emitState(false)
	if err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
		c.logger.Debug("Close frame not sent", zap.Error(werr))
	}
	return nil
}

// Send writes one envelope
func (c *Client) Send(ctx context.Context, env Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to write %s: %w", env.Command, err)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			c.dropped(conn, done, err)
			return
		}

		fragments, err := DecodeFragments(frame)
		if err != nil {
			c.logger.Warn("Dropping invalid frame", zap.Error(err))
			continue
		}
		c.emitMessages(fragments)
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// dropped handles the end of a read loop. Only a socket that is still the
// current one counts as an unexpected drop.
func (c *Client) dropped(conn *websocket.Conn, done chan struct{}, err error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn, c.done = nil, nil
		close(done)
	}
	c.mu.Unlock()

	if !current {
		return
	}
	conn.Close()
	c.logger.Warn("Stream connection lost", zap.Error(err))
	c.emitState(false)
}

func (c *Client) emitMessages(fragments []string) {
	c.listenersMu.RLock()
	listeners := c.messageListeners
	c.listenersMu.RUnlock()
	for _, l := range listeners {
		l(fragments)
	}
}

func (c *Client) emitState(connected bool) {
	c.listenersMu.RLock()
	listeners := c.stateListeners
	c.listenersMu.RUnlock()
	for _, l := range listeners {
		l(connected)
	}
}
