package monitor

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"monitor-service/internal/model"
	"monitor-service/internal/stream"
)

type fakeService struct {
	mu            sync.Mutex
	statuses      []model.Status
	connects      []model.MonitorConfig
	disconnects   int
	settings      model.SettingsDescriptor
	changed       []model.SettingsDescriptor
	streamAddress string
}

func newFakeService() *fakeService {
	return &fakeService{
		settings:      model.SerialSettings(model.DefaultBaudRate),
		streamAddress: "ws://127.0.0.1:1",
	}
}

// failNext queues statuses returned by the next Connect calls
func (s *fakeService) failNext(statuses ...model.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, statuses...)
}

func (s *fakeService) Connect(_ context.Context, cfg model.MonitorConfig) model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects = append(s.connects, cfg)
	if len(s.statuses) > 0 {
		st := s.statuses[0]
		s.statuses = s.statuses[1:]
		return st
	}
	return model.OK
}

func (s *fakeService) Disconnect(context.Context) model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
	return model.OK
}

func (s *fakeService) Send(context.Context, string) model.Status { return model.OK }

func (s *fakeService) GetCurrentSettings(context.Context, model.BoardRef, model.PortRef) (model.SettingsDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Clone(), nil
}

func (s *fakeService) ChangeSettings(_ context.Context, d model.SettingsDescriptor) model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changed = append(s.changed, d)
	return model.OK
}

func (s *fakeService) StreamAddress(context.Context) (string, error) {
	return s.streamAddress, nil
}

func (s *fakeService) connectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connects)
}

func (s *fakeService) lastConnect() model.MonitorConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects[len(s.connects)-1]
}

type fakeTransport struct {
	mu              sync.Mutex
	connected       bool
	connectErr      error
	disconnects     int
	sent            []stream.Envelope
	messageListener func([]string)
	stateListener   func(bool)
}

func (t *fakeTransport) Connect(context.Context, string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connectErr != nil {
		return t.connectErr
	}
	t.connected = true
	return nil
}

func (t *fakeTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	t.disconnects++
	return nil
}

func (t *fakeTransport) Send(_ context.Context, env stream.Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return stream.ErrNotConnected
	}
	t.sent = append(t.sent, env)
	return nil
}

func (t *fakeTransport) OnMessagesReceived(l func([]string))    { t.messageListener = l }
func (t *fakeTransport) OnConnectionStateChanged(l func(bool)) { t.stateListener = l }

func (t *fakeTransport) isConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *fakeTransport) drop() {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
	t.stateListener(false)
}

type fakeTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{delay: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *fakeScheduler) delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.timers))
	for i, t := range s.timers {
		out[i] = t.delay
	}
	return out
}

func (s *fakeScheduler) last() *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[len(s.timers)-1]
}

type recordingNotifier struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errors []string
}

func (n *recordingNotifier) Info(m string)  { n.mu.Lock(); n.infos = append(n.infos, m); n.mu.Unlock() }
func (n *recordingNotifier) Warn(m string)  { n.mu.Lock(); n.warns = append(n.warns, m); n.mu.Unlock() }
func (n *recordingNotifier) Error(m string) { n.mu.Lock(); n.errors = append(n.errors, m); n.mu.Unlock() }

func (n *recordingNotifier) counts() (int, int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.infos), len(n.warns), len(n.errors)
}

type fakePorts struct {
	mu    sync.Mutex
	ports []model.PortRef
	polls int
}

func (p *fakePorts) AvailablePorts(context.Context) ([]model.PortRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polls++
	return slices.Clone(p.ports), nil
}

func (p *fakePorts) set(ports ...model.PortRef) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ports = ports
}

func (p *fakePorts) pollCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}
