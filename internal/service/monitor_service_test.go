package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	goserial "go.bug.st/serial"
	"go.uber.org/zap"

	"monitor-service/internal/config"
	"monitor-service/internal/eventbus"
	"monitor-service/internal/model"
	"monitor-service/internal/protocol/serial"
	"monitor-service/internal/repository"
	"monitor-service/internal/stream"
)

var unoConfig = model.MonitorConfig{
	Board: model.BoardRef{Name: "Arduino Uno", FQBN: "arduino:avr:uno"},
	Port:  model.PortRef{Address: "/dev/ttyACM0", Protocol: "serial"},
}

type harness struct {
	svc    *MonitorService
	port   *serial.MockPort
	events repository.EventRepository
	bus    *eventbus.EventBus
	busCh  <-chan eventbus.Event
}

func newHarness(t *testing.T, opener serial.Opener) *harness {
	t.Helper()
	h := &harness{
		port:   serial.NewMockPort(false),
		events: repository.NewMemoryEventRepository(100),
		bus:    eventbus.NewEventBus(zap.NewNop()),
	}
	if opener == nil {
		opener = serial.MockOpener(h.port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go h.bus.Start(ctx)
	ch, unsubscribe := h.bus.Subscribe(eventbus.TypeMonitorError, eventbus.TypeConnectionChanged)
	h.busCh = ch

	cfg := &config.Config{
		Stream: config.StreamConfig{Host: "127.0.0.1"},
		Monitor: config.MonitorConfig{
			FlushInterval:   5 * time.Millisecond,
			MaxBatchBytes:   4096,
			ReadTimeout:     10 * time.Millisecond,
			DefaultBaudRate: 9600,
		},
	}
	h.svc = NewMonitorService(h.events, h.bus, opener, cfg, zap.NewNop())

	t.Cleanup(func() {
		stopCtx, stop := context.WithTimeout(context.Background(), time.Second)
		defer stop()
		h.svc.Stop(stopCtx)
		unsubscribe()
		cancel()
	})
	return h
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	if status := h.svc.Connect(context.Background(), unoConfig); !status.IsOK() {
		t.Fatalf("Connect: %s", status.Error())
	}
}

// nextEvent skips connection_changed events until one of kind arrives
func (h *harness) nextEvent(t *testing.T, kind string) eventbus.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-h.busCh:
			if e.Type == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("no %s event", kind)
		}
	}
}

func (h *harness) journal(t *testing.T) []model.EventType {
	t.Helper()
	events, err := h.events.List(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	types := make([]model.EventType, len(events))
	for i, e := range events {
		types[len(events)-1-i] = e.EventType
	}
	return types
}

type collector struct {
	mu   sync.Mutex
	text strings.Builder
}

func (c *collector) add(fragments []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range fragments {
		c.text.WriteString(f)
	}
}

func (c *collector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text.String()
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

func TestMonitorService_StreamsPortData(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)

	address, err := h.svc.StreamAddress(context.Background())
	if err != nil || !strings.HasPrefix(address, "ws://127.0.0.1:") {
		t.Fatalf("address = %q, err = %v", address, err)
	}

	client := stream.NewClient(zap.NewNop())
	got := &collector{}
	client.OnMessagesReceived(got.add)
	if err := client.Connect(context.Background(), address); err != nil {
		t.Fatalf("stream connect: %v", err)
	}
	defer client.Disconnect()
	waitFor(t, func() bool { return h.svc.Hub().ClientCount() == 1 })

	// "é" split across two reads must not reach the client as two halves
	h.port.Feed([]byte("temp: 21\xc3"))
	h.port.Feed([]byte("\xa9C\n"))
	waitFor(t, func() bool { return got.String() == "temp: 21éC\n" })

	if h.port.Mode().BaudRate != 9600 {
		t.Errorf("baud rate = %d", h.port.Mode().BaudRate)
	}
}

func TestMonitorService_ConnectTwice(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)

	if status := h.svc.Connect(context.Background(), unoConfig); status.Error() != model.AlreadyConnected.Error() {
		t.Fatalf("status = %q", status.Error())
	}
	if current := h.svc.Current(); current == nil || current.BaudRate != model.DefaultBaudRate {
		t.Fatalf("current = %+v", current)
	}
}

func TestMonitorService_ConnectFailureCarriesCode(t *testing.T) {
	busy := func(name string, _ *goserial.Mode) (serial.Port, error) {
		return nil, fmt.Errorf("open %s: %w", name, syscall.EBUSY)
	}
	h := newHarness(t, busy)

	status := h.svc.Connect(context.Background(), unoConfig)
	if status.IsOK() || status.Code == nil || *status.Code != model.ErrDeviceBusy {
		t.Fatalf("status = %+v", status)
	}
	if h.svc.Current() != nil {
		t.Fatal("session left open after failure")
	}
	if got := h.journal(t); len(got) != 1 || got[0] != model.EventMonitorError {
		t.Fatalf("journal = %v", got)
	}

	// the caller handles connect failures; they are not published
	select {
	case e := <-h.busCh:
		t.Fatalf("unexpected event %s", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitorService_ReadFailurePublishesError(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)

	h.port.Fail(syscall.EIO)

	e := h.nextEvent(t, eventbus.TypeMonitorError)
	merr, ok := e.Data.(model.MonitorError)
	if !ok || !merr.Is(model.ErrDeviceNotConfigured) {
		t.Fatalf("payload = %#v", e.Data)
	}
	if !merr.Config.Port.Equals(unoConfig.Port) {
		t.Errorf("config = %+v", merr.Config)
	}

	waitFor(t, func() bool { return h.svc.Current() == nil })
	if status := h.svc.Disconnect(context.Background()); status.Error() != model.NotConnected.Error() {
		t.Fatalf("Disconnect after failure = %q", status.Error())
	}
}

func TestMonitorService_DisconnectIsSilent(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)

	if status := h.svc.Disconnect(context.Background()); !status.IsOK() {
		t.Fatalf("Disconnect: %s", status.Error())
	}

	var changes []bool
	deadline := time.After(200 * time.Millisecond)
collect:
	for {
		select {
		case e := <-h.busCh:
			if e.Type == eventbus.TypeMonitorError {
				t.Fatalf("disconnect published %+v", e.Data)
			}
			changes = append(changes, e.Data.(eventbus.ConnectionChanged).Connected)
		case <-deadline:
			break collect
		}
	}
	if len(changes) != 2 || !changes[0] || changes[1] {
		t.Fatalf("connection changes = %v", changes)
	}

	want := []model.EventType{model.EventMonitorConnected, model.EventMonitorDisconnected}
	if got := h.journal(t); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("journal = %v, want %v", got, want)
	}
}

func TestMonitorService_SendAndSettings(t *testing.T) {
	h := newHarness(t, nil)

	if status := h.svc.Send(context.Background(), "x"); status.Error() != model.NotConnected.Error() {
		t.Fatalf("Send while disconnected = %q", status.Error())
	}
	h.connect(t)

	env, _ := stream.NewEnvelope(stream.CommandSendMessage, "led on\n")
	if err := h.svc.HandleCommand(context.Background(), env); err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if got := string(h.port.Written()); got != "led on\n" {
		t.Fatalf("written = %q", got)
	}

	settings, err := h.svc.GetCurrentSettings(context.Background(), unoConfig.Board, unoConfig.Port)
	if err != nil {
		t.Fatal(err)
	}
	changed, ok := settings.Select(model.BaudRateSetting, "115200")
	if !ok {
		t.Fatalf("115200 not offered: %+v", settings)
	}
	env, _ = stream.NewEnvelope(stream.CommandChangeSettings, changed)
	if err := h.svc.HandleCommand(context.Background(), env); err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}

	if h.port.Mode().BaudRate != 115200 {
		t.Errorf("port baud rate = %d", h.port.Mode().BaudRate)
	}
	if current := h.svc.Current(); current.BaudRate != 115200 {
		t.Errorf("current baud rate = %d", current.BaudRate)
	}
	settings, _ = h.svc.GetCurrentSettings(context.Background(), unoConfig.Board, unoConfig.Port)
	if s, _ := settings.Lookup(model.BaudRateSetting); s.SelectedValue != "115200" {
		t.Errorf("selected = %q", s.SelectedValue)
	}

	bad := model.SettingsDescriptor{model.BaudRateSetting: {SelectedValue: "1234"}}
	if status := h.svc.ChangeSettings(context.Background(), bad); status.IsOK() {
		t.Error("unsupported rate accepted")
	}
	if status := h.svc.ChangeSettings(context.Background(), model.SettingsDescriptor{}); !status.IsOK() {
		t.Errorf("descriptor without baudrate rejected: %s", status.Error())
	}
}

func TestSplitUTF8(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		complete string
		rest     string
	}{
		{name: "ASCII", input: "abc", complete: "abc"},
		{name: "Empty"},
		{name: "CompleteTwoByte", input: "a\xc3\xa9", complete: "a\xc3\xa9"},
		{name: "TruncatedTwoByte", input: "a\xc3", complete: "a", rest: "\xc3"},
		{name: "TruncatedFourByte", input: "x\xf0\x9f\x98", complete: "x", rest: "\xf0\x9f\x98"},
		{name: "InvalidByteKept", input: "a\xff", complete: "a\xff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			complete, rest := splitUTF8([]byte(tt.input))
			if string(complete) != tt.complete || string(rest) != tt.rest {
				t.Fatalf("splitUTF8(%q) = %q, %q", tt.input, complete, rest)
			}
		})
	}
}
