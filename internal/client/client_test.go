package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"monitor-service/internal/config"
	"monitor-service/internal/discovery"
	discoveryserial "monitor-service/internal/discovery/serial"
	"monitor-service/internal/eventbus"
	"monitor-service/internal/handler"
	"monitor-service/internal/model"
	"monitor-service/internal/monitor"
	"monitor-service/internal/protocol/serial"
	"monitor-service/internal/repository"
	"monitor-service/internal/routes"
	"monitor-service/internal/service"
)

var (
	_ monitor.Service    = (*HTTPClient)(nil)
	_ monitor.PortLister = (*HTTPClient)(nil)
)

var unoConfig = model.MonitorConfig{
	Board: model.BoardRef{Name: "Arduino Uno", FQBN: "arduino:avr:uno"},
	Port:  model.PortRef{Address: "/dev/ttyACM0", Protocol: "serial"},
}

type fixture struct {
	client *HTTPClient
	port   *serial.MockPort
	ws     *handler.WebSocketHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	cfg := &config.Config{
		Stream: config.StreamConfig{Host: "127.0.0.1"},
		Monitor: config.MonitorConfig{
			FlushInterval:   5 * time.Millisecond,
			MaxBatchBytes:   4096,
			ReadTimeout:     10 * time.Millisecond,
			DefaultBaudRate: 9600,
		},
		App: config.AppConfig{Name: "monitor-service", Version: "test", Environment: "test"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := eventbus.NewEventBus(logger)
	go bus.Start(ctx)

	port := serial.NewMockPort(false)
	events := repository.NewMemoryEventRepository(100)
	svc := service.NewMonitorService(events, bus, serial.MockOpener(port), cfg, logger)

	scanner := discovery.NewScannerManager(logger)
	scanner.RegisterScanner(discoveryserial.NewScanner(logger, nil, func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043"},
			{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1a86", PID: "7523"},
		}, nil
	}))

	ws := handler.NewWebSocketHandler(bus, svc.Hub(), 16, logger)
	go ws.Run(ctx)

	server := httptest.NewServer(routes.NewRouter(cfg, logger, nil, svc, events, scanner, ws).SetupRouter())
	t.Cleanup(func() {
		server.Close()
		stopCtx, stop := context.WithTimeout(context.Background(), time.Second)
		defer stop()
		svc.Stop(stopCtx)
		cancel()
	})

	return &fixture{
		client: NewHTTPClient(&config.ClientConfig{ServerURL: server.URL + "/", RequestTimeout: 2 * time.Second}, logger),
		port:   port,
		ws:     ws,
	}
}

func TestHTTPClient_ControlCalls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if status := f.client.Disconnect(ctx); status.Error() != model.NotConnected.Error() {
		t.Fatalf("Disconnect while idle = %+v", status)
	}
	if status := f.client.Connect(ctx, unoConfig); !status.IsOK() {
		t.Fatalf("Connect: %s", status.Error())
	}
	if status := f.client.Connect(ctx, unoConfig); status.Error() != model.AlreadyConnected.Error() {
		t.Fatalf("second Connect = %+v", status)
	}

	if status := f.client.Send(ctx, "ping\r\n"); !status.IsOK() {
		t.Fatalf("Send: %s", status.Error())
	}
	if got := string(f.port.Written()); got != "ping\r\n" {
		t.Errorf("written = %q", got)
	}

	settings, err := f.client.GetCurrentSettings(ctx, unoConfig.Board, unoConfig.Port)
	if err != nil {
		t.Fatalf("GetCurrentSettings: %v", err)
	}
	if s, ok := settings.Lookup(model.BaudRateSetting); !ok || s.SelectedValue != "9600" {
		t.Fatalf("settings = %+v", settings)
	}
	changed, _ := settings.Select(model.BaudRateSetting, "115200")
	if status := f.client.ChangeSettings(ctx, changed); !status.IsOK() {
		t.Fatalf("ChangeSettings: %s", status.Error())
	}
	if f.port.Mode().BaudRate != 115200 {
		t.Errorf("baud rate = %d", f.port.Mode().BaudRate)
	}

	address, err := f.client.StreamAddress(ctx)
	if err != nil || !strings.HasPrefix(address, "ws://") {
		t.Fatalf("StreamAddress = %q, %v", address, err)
	}

	if status := f.client.Disconnect(ctx); !status.IsOK() {
		t.Fatalf("Disconnect: %s", status.Error())
	}

	events, err := f.client.Events(ctx, "/dev/ttyACM0", 10)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	want := []model.EventType{model.EventMonitorDisconnected, model.EventSettingsChanged, model.EventMonitorConnected}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, e := range events {
		if e.EventType != want[i] {
			t.Errorf("event %d = %s, want %s", i, e.EventType, want[i])
		}
	}
}

func TestHTTPClient_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.client.GetCurrentSettings(ctx, model.BoardRef{}, model.PortRef{}); err == nil {
		t.Error("settings without a port accepted")
	}

	bad := model.SettingsDescriptor{model.BaudRateSetting: {SelectedValue: "31250"}}
	if status := f.client.ChangeSettings(ctx, bad); status.IsOK() {
		t.Error("unsupported rate accepted")
	}

	offline := NewHTTPClient(&config.ClientConfig{ServerURL: "http://127.0.0.1:1"}, zap.NewNop())
	if status := offline.Connect(ctx, unoConfig); status.IsOK() {
		t.Error("connect to unreachable service reported OK")
	}
	if _, err := offline.StreamAddress(ctx); err == nil {
		t.Error("StreamAddress from unreachable service succeeded")
	}

	notJSON := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer notJSON.Close()
	proxy := NewHTTPClient(&config.ClientConfig{ServerURL: notJSON.URL}, zap.NewNop())
	if status := proxy.Send(ctx, "x"); !strings.Contains(status.Error(), "gateway down") {
		t.Errorf("status = %q", status.Error())
	}
}

func TestHTTPClient_AvailablePorts(t *testing.T) {
	f := newFixture(t)

	ports, err := f.client.AvailablePorts(context.Background())
	if err != nil {
		t.Fatalf("AvailablePorts: %v", err)
	}
	if len(ports) != 2 || ports[0].Address != "/dev/ttyACM0" || ports[1].Address != "/dev/ttyUSB0" {
		t.Fatalf("ports = %+v", ports)
	}

	discovered, err := f.client.ListPorts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if discovered[1].Vendor == "" {
		t.Errorf("vendor of %s not identified", discovered[1].Port.Address)
	}
}

func TestHTTPClient_Watch(t *testing.T) {
	f := newFixture(t)

	var (
		mu      sync.Mutex
		errs    []model.MonitorError
		changes []*model.MonitorConfig
	)
	ctx, cancel := context.WithCancel(context.Background())
	watched := make(chan error, 1)
	go func() {
		watched <- f.client.Watch(ctx, EventHandlers{
			OnError: func(e model.MonitorError) {
				mu.Lock()
				errs = append(errs, e)
				mu.Unlock()
			},
			OnConnectionChanged: func(cfg *model.MonitorConfig) {
				mu.Lock()
				changes = append(changes, cfg)
				mu.Unlock()
			},
		})
	}()

	waitFor(t, func() bool { return f.ws.GetConnectionStats().TotalConnections == 1 })

	if status := f.client.Connect(context.Background(), unoConfig); !status.IsOK() {
		t.Fatalf("Connect: %s", status.Error())
	}
	f.port.Fail(syscall.EIO)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 1 && len(changes) == 2
	})

	mu.Lock()
	if !errs[0].Is(model.ErrDeviceNotConfigured) {
		t.Errorf("error = %+v", errs[0])
	}
	if changes[0] == nil || changes[0].Port.Address != "/dev/ttyACM0" || changes[1] != nil {
		t.Errorf("changes = %+v", changes)
	}
	mu.Unlock()

	cancel()
	select {
	case err := <-watched:
		if err != context.Canceled {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestHTTPClient_EventsURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{server: "http://127.0.0.1:8084", want: "ws://127.0.0.1:8084/ws/events"},
		{server: "https://monitor.local/", want: "wss://monitor.local/ws/events"},
	}
	for _, tt := range tests {
		c := NewHTTPClient(&config.ClientConfig{ServerURL: tt.server}, zap.NewNop())
		if got := c.EventsURL(); got != tt.want {
			t.Errorf("EventsURL(%q) = %q, want %q", tt.server, got, tt.want)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
