// internal/client/events.go
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"monitor-service/internal/eventbus"
	"monitor-service/internal/model"
)

const (
	watchBaseDelay = 500 * time.Millisecond
	watchMaxDelay  = 30 * time.Second
)

// ErrWatchClosed is returned when the server closes the event stream
var ErrWatchClosed = errors.New("event stream closed")

// EventHandlers receives pushed service events. Either field may be nil.
type EventHandlers struct {
	OnError func(model.MonitorError)
	// OnConnectionChanged gets nil when the service closed the port
	OnConnectionChanged func(*model.MonitorConfig)
}

type eventMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EventsURL returns the ws:// address of the service's event stream
func (c *HTTPClient) EventsURL() string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/ws/events"
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/ws/events"
	default:
		return c.baseURL + "/ws/events"
	}
}

// Watch follows the event stream until ctx is done, redialing with
// exponential backoff when the socket drops.
func (c *HTTPClient) Watch(ctx context.Context, handlers EventHandlers) error {
	delay := watchBaseDelay
	for {
		err := c.watchOnce(ctx, handlers)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("Event stream lost", zap.Error(err), zap.Duration("retry_in", delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, watchMaxDelay)
	}
}

// watchOnce reads one socket until it fails or ctx is done
func (c *HTTPClient) watchOnce(ctx context.Context, handlers EventHandlers) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.EventsURL(), nil)
	if err != nil {
		return fmt.Errorf("dial event stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ErrWatchClosed
			}
			return err
		}

		var msg eventMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("Ignoring malformed event", zap.Error(err))
			continue
		}
		c.dispatch(msg, handlers)
	}
}

func (c *HTTPClient) dispatch(msg eventMessage, handlers EventHandlers) {
	switch msg.Type {
	case eventbus.TypeMonitorError:
		var merr model.MonitorError
		if err := json.Unmarshal(msg.Data, &merr); err != nil {
			c.logger.Debug("Ignoring malformed monitor error", zap.Error(err))
			return
		}
		if handlers.OnError != nil {
			handlers.OnError(merr)
		}
	case eventbus.TypeConnectionChanged:
		var changed eventbus.ConnectionChanged
		if err := json.Unmarshal(msg.Data, &changed); err != nil {
			c.logger.Debug("Ignoring malformed connection change", zap.Error(err))
			return
		}
		if handlers.OnConnectionChanged != nil {
			handlers.OnConnectionChanged(changed.Config)
		}
	}
}
