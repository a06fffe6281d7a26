// internal/client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"monitor-service/internal/config"
	"monitor-service/internal/discovery"
	"monitor-service/internal/middleware"
	"monitor-service/internal/model"
)

// HTTPClient calls the monitor control RPC of a running service. It
// satisfies monitor.Service and monitor.PortLister.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// apiResponse mirrors utils.APIResponse with the payload left raw
type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func (r *apiResponse) err(method, path string, statusCode int) error {
	if r.Error != nil && r.Error.Details != "" {
		return fmt.Errorf("%s %s: %d %s: %s", method, path, statusCode, r.Message, r.Error.Details)
	}
	return fmt.Errorf("%s %s: %d %s", method, path, statusCode, r.Message)
}

// NewHTTPClient creates a client for the service at cfg.ServerURL
func NewHTTPClient(cfg *config.ClientConfig, logger *zap.Logger) *HTTPClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.ServerURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(zap.String("component", "monitor-client")),
	}
}

// Connect asks the service to open the port described by cfg
func (c *HTTPClient) Connect(ctx context.Context, cfg model.MonitorConfig) model.Status {
	return c.status(ctx, http.MethodPost, "/api/v1/monitor/connect", cfg)
}

// Disconnect asks the service to close the open port
func (c *HTTPClient) Disconnect(ctx context.Context) model.Status {
	return c.status(ctx, http.MethodPost, "/api/v1/monitor/disconnect", nil)
}

// Send writes message to the open port as is
func (c *HTTPClient) Send(ctx context.Context, message string) model.Status {
	return c.status(ctx, http.MethodPost, "/api/v1/monitor/send", map[string]string{"message": message})
}

// GetCurrentSettings fetches the settings descriptor of port
func (c *HTTPClient) GetCurrentSettings(ctx context.Context, board model.BoardRef, port model.PortRef) (model.SettingsDescriptor, error) {
	query := url.Values{}
	query.Set("port", port.Address)
	if port.Protocol != "" {
		query.Set("protocol", port.Protocol)
	}
	if board.FQBN != "" {
		query.Set("fqbn", board.FQBN)
	}
	if board.Name != "" {
		query.Set("board", board.Name)
	}

	var settings model.SettingsDescriptor
	if err := c.get(ctx, "/api/v1/monitor/settings?"+query.Encode(), &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// ChangeSettings applies the selected values of settings
func (c *HTTPClient) ChangeSettings(ctx context.Context, settings model.SettingsDescriptor) model.Status {
	return c.status(ctx, http.MethodPut, "/api/v1/monitor/settings", settings)
}

// StreamAddress returns the ws:// address of the streaming channel
func (c *HTTPClient) StreamAddress(ctx context.Context) (string, error) {
	var out struct {
		Address string `json:"address"`
	}
	if err := c.get(ctx, "/api/v1/monitor/stream", &out); err != nil {
		return "", err
	}
	return out.Address, nil
}

// ListPorts returns the ports the service discovered, with identified boards
func (c *HTTPClient) ListPorts(ctx context.Context) ([]*discovery.DiscoveredPort, error) {
	var out struct {
		Ports []*discovery.DiscoveredPort `json:"ports"`
	}
	if err := c.get(ctx, "/api/v1/ports", &out); err != nil {
		return nil, err
	}
	return out.Ports, nil
}

// AvailablePorts implements monitor.PortLister
func (c *HTTPClient) AvailablePorts(ctx context.Context) ([]model.PortRef, error) {
	discovered, err := c.ListPorts(ctx)
	if err != nil {
		return nil, err
	}
	ports := make([]model.PortRef, 0, len(discovered))
	for _, d := range discovered {
		ports = append(ports, d.Port)
	}
	return ports, nil
}

// Events returns the newest journal entries, optionally for a single port
func (c *HTTPClient) Events(ctx context.Context, port string, limit int) ([]model.MonitorEvent, error) {
	query := url.Values{}
	if port != "" {
		query.Set("port", port)
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}

	path := "/api/v1/monitor/events"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var events []model.MonitorEvent
	if err := c.get(ctx, path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// status performs a control call whose answer is a Status. Transport
// failures and rejected requests become error statuses.
func (c *HTTPClient) status(ctx context.Context, method, path string, body any) model.Status {
	resp, statusCode, err := c.do(ctx, method, path, body)
	if err != nil {
		return model.ErrorStatus(err.Error())
	}

	switch statusCode {
	case http.StatusOK, http.StatusUnprocessableEntity:
		var status model.Status
		if err := json.Unmarshal(resp.Data, &status); err != nil {
			return model.ErrorStatus(fmt.Sprintf("%s %s: decode status: %v", method, path, err))
		}
		return status
	default:
		return model.ErrorStatus(resp.err(method, path, statusCode).Error())
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	resp, statusCode, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if statusCode >= 300 {
		return resp.err(http.MethodGet, path, statusCode)
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*apiResponse, int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set(middleware.RequestIDHeader, requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, 0, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, bytes.TrimSpace(raw))
	}

	c.logger.Debug("Monitor RPC",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
	)
	return &out, resp.StatusCode, nil
}
