// internal/monitor/manager.go
package monitor

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"monitor-service/internal/model"
	"monitor-service/internal/stream"
)

// Manager owns the lifecycle of one logical monitor connection. Connect and
// Disconnect transitions are linearized; listeners observe the state after a
// transition completes.
type Manager struct {
	service   Service
	transport Transport
	ports     PortLister
	config    *Config
	notifier  Notifier
	scheduler Scheduler
	logger    *zap.Logger

	// transitionMu serializes connect, disconnect and error handling
	transitionMu sync.Mutex

	mu           sync.Mutex
	state        model.ConnectionState
	current      *model.MonitorConfig
	session      uint64
	autoConnect  bool
	ready        bool
	board        model.BoardRef
	port         model.PortRef
	baudRate     model.BaudRate
	errorHistory []model.MonitorError
	timer        Timer
	timerGen     uint64

	listenersMu         sync.RWMutex
	connectionListeners []func(*model.MonitorConfig)
	errorListeners      []func(model.MonitorError)
	messageListeners    []func([]string)

	events emitter
}

// NewManager wires a manager to its collaborators. ports may be nil, in
// which case every selected port is considered available.
func NewManager(service Service, transport Transport, ports PortLister, config *Config, logger *zap.Logger) *Manager {
	config = config.withDefaults()
	m := &Manager{
		service:   service,
		transport: transport,
		ports:     ports,
		config:    config,
		notifier:  config.Notifier,
		scheduler: config.Scheduler,
		logger:    logger.With(zap.String("component", "monitor-manager")),
		baudRate:  model.DefaultBaudRate,
	}
	if m.notifier == nil {
		m.notifier = NewLogNotifier(logger)
	}
	if m.scheduler == nil {
		m.scheduler = clockScheduler{}
	}

	transport.OnMessagesReceived(m.relayMessages)
	transport.OnConnectionStateChanged(func(connected bool) {
		if connected {
			return
		}
		m.mu.Lock()
		session := m.session
		m.mu.Unlock()
		go m.transportClosed(session)
	})
	return m
}

// OnConnectionChanged registers a listener called with the active config
// after each transition, or nil when no connection is open.
func (m *Manager) OnConnectionChanged(listener func(*model.MonitorConfig)) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.connectionListeners = append(m.connectionListeners, listener)
}

// OnError registers a listener for classified monitor errors
func (m *Manager) OnError(listener func(model.MonitorError)) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.errorListeners = append(m.errorListeners, listener)
}

// OnMessages registers a listener for fragment batches in arrival order
func (m *Manager) OnMessages(listener func([]string)) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.messageListeners = append(m.messageListeners, listener)
}

// State returns the current connection state
func (m *Manager) State() model.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns a copy of the active config, or nil
func (m *Manager) Current() *model.MonitorConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	cfg := *m.current
	return &cfg
}

// ErrorHistory returns the number of recorded consecutive errors
func (m *Manager) ErrorHistory() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errorHistory)
}

// AutoConnect reports whether auto-connect is enabled
func (m *Manager) AutoConnect() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autoConnect
}

// Connect opens a monitor on cfg, closing any existing connection first
func (m *Manager) Connect(ctx context.Context, cfg model.MonitorConfig) model.Status {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return model.ErrorStatus(err.Error())
	}

	m.transitionMu.Lock()
	m.disconnectLocked(ctx)
	status := m.connectLocked(ctx, cfg)
	m.transitionMu.Unlock()

	m.events.flush()
	return status
}

// Disconnect closes the connection. It always ends Disconnected and also
// cancels any pending reconnect.
func (m *Manager) Disconnect(ctx context.Context) model.Status {
	m.transitionMu.Lock()
	status := m.disconnectLocked(ctx)
	m.transitionMu.Unlock()

	m.events.flush()
	return status
}

// Send forwards data plus the configured line ending over the transport
func (m *Manager) Send(ctx context.Context, data string) model.Status {
	if m.State() != model.StateConnected {
		return model.NotConnected
	}

	env, err := stream.NewEnvelope(stream.CommandSendMessage, data+m.config.LineEnding)
	if err != nil {
		return model.ErrorStatus(err.Error())
	}
	if err := m.transport.Send(ctx, env); err != nil {
		m.logger.Warn("Failed to send message", zap.Error(err))
		return model.ErrorStatus(fmt.Sprintf("failed to send message: %v", err))
	}
	return model.OK
}

// ChangeSettings sends a settings change over the transport of the open
// connection. A selected baud rate becomes the rate used for reconnects.
func (m *Manager) ChangeSettings(ctx context.Context, settings model.SettingsDescriptor) model.Status {
	if m.State() != model.StateConnected {
		return model.NotConnected
	}

	env, err := stream.NewEnvelope(stream.CommandChangeSettings, settings)
	if err != nil {
		return model.ErrorStatus(err.Error())
	}
	if err := m.transport.Send(ctx, env); err != nil {
		return model.ErrorStatus(fmt.Sprintf("failed to change settings: %v", err))
	}

	if s, ok := settings.Lookup(model.BaudRateSetting); ok {
		if rate, err := model.ParseBaudRate(s.SelectedValue); err == nil {
			m.mu.Lock()
			m.baudRate = rate
			if m.current != nil {
				cfg := *m.current
				cfg.BaudRate = rate
				m.current = &cfg
			}
			m.mu.Unlock()
		}
	}
	return model.OK
}

// HandleError classifies err and decides between notifying and scheduling
// a reconnect.
func (m *Manager) HandleError(ctx context.Context, err model.MonitorError) {
	m.transitionMu.Lock()
	m.handleErrorLocked(ctx, err)
	m.transitionMu.Unlock()

	m.events.flush()
}

// MarkReady records that configuration restore has finished. Auto-connect
// takes effect only after this.
func (m *Manager) MarkReady(ctx context.Context) model.Status {
	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()
	return m.evaluate(ctx)
}

// SetAutoConnect toggles auto-connect. Turning it on evaluates the current
// selection; turning it off cancels any pending reconnect and clears the
// error history.
func (m *Manager) SetAutoConnect(ctx context.Context, enabled bool) model.Status {
	if enabled {
		m.mu.Lock()
		m.autoConnect = true
		m.mu.Unlock()
		return m.evaluate(ctx)
	}

	m.transitionMu.Lock()
	m.mu.Lock()
	m.autoConnect = false
	m.cancelReconnectLocked()
	m.errorHistory = nil
	abandoned := m.state == model.StateReconnecting
	if abandoned {
		m.state = model.StateDisconnected
		m.current = nil
	}
	m.mu.Unlock()
	m.transitionMu.Unlock()

	if abandoned {
		m.logger.Info("Pending reconnect canceled")
	}
	return model.OK
}

// SetSelection records a board/port selection change
func (m *Manager) SetSelection(ctx context.Context, board model.BoardRef, port model.PortRef) model.Status {
	m.mu.Lock()
	m.board = board
	m.port = port
	m.mu.Unlock()
	return m.evaluate(ctx)
}

// SetBaudRate records a baud rate selection change
func (m *Manager) SetBaudRate(ctx context.Context, rate model.BaudRate) model.Status {
	if err := model.ValidateBaudRate(rate); err != nil {
		return model.ErrorStatus(err.Error())
	}
	m.mu.Lock()
	m.baudRate = rate
	m.mu.Unlock()
	return m.evaluate(ctx)
}

// PortsChanged re-evaluates the selection after the set of attached ports
// changed. An open connection or a pending reconnect is left alone.
func (m *Manager) PortsChanged(ctx context.Context) model.Status {
	m.mu.Lock()
	idle := m.state == model.StateDisconnected
	m.mu.Unlock()
	if !idle {
		return model.OK
	}
	return m.evaluate(ctx)
}

// WatchPorts polls the port lister every interval and calls PortsChanged
// whenever the attached ports differ from the previous poll. It blocks until
// ctx is done.
func (m *Manager) WatchPorts(ctx context.Context, interval time.Duration) error {
	if m.ports == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last []model.PortRef
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		ports, err := m.ports.AvailablePorts(ctx)
		if err != nil {
			m.logger.Debug("Port poll failed", zap.Error(err))
			continue
		}
		if samePorts(last, ports) {
			continue
		}
		last = ports
		if st := m.PortsChanged(ctx); !st.IsOK() {
			m.logger.Debug("Re-evaluation after port change failed", zap.String("reason", st.Error()))
		}
	}
}

func samePorts(a, b []model.PortRef) bool {
	if len(a) != len(b) {
		return false
	}
	for _, p := range a {
		if !slices.ContainsFunc(b, p.Equals) {
			return false
		}
	}
	return true
}

// evaluate connects to the selected board and port when auto-connect is on
// and the port is attached.
func (m *Manager) evaluate(ctx context.Context) model.Status {
	m.mu.Lock()
	if !m.autoConnect || !m.ready || m.port.IsZero() {
		m.mu.Unlock()
		return model.OK
	}
	cfg := model.MonitorConfig{Board: m.board, Port: m.port, BaudRate: m.baudRate}.WithDefaults()
	unchanged := m.state == model.StateConnected && m.current != nil && *m.current == cfg
	m.mu.Unlock()

	if unchanged {
		return model.OK
	}

	if m.ports != nil {
		ports, err := m.ports.AvailablePorts(ctx)
		if err != nil {
			m.logger.Warn("Failed to list ports", zap.Error(err))
			return model.ErrorStatus(fmt.Sprintf("failed to list ports: %v", err))
		}
		if !slices.ContainsFunc(ports, cfg.Port.Equals) {
			m.logger.Debug("Selected port not attached", zap.String("port", cfg.Port.Address))
			return model.OK
		}
	}
	return m.Connect(ctx, cfg)
}

func (m *Manager) connectLocked(ctx context.Context, cfg model.MonitorConfig) model.Status {
	m.mu.Lock()
	m.state = model.StateConnecting
	m.current = &cfg
	m.mu.Unlock()

	logger := m.logger.With(zap.String("port", cfg.Port.Address), zap.Int("baud_rate", int(cfg.BaudRate)))
	logger.Info("Connecting monitor")

	status := m.service.Connect(ctx, cfg)
	if !status.IsOK() {
		logger.Warn("Monitor service refused connection", zap.String("reason", status.Error()))
		m.failConnectLocked()
		m.handleErrorLocked(ctx, model.MonitorError{
			Message: status.Error(),
			Code:    status.Code,
			Config:  cfg,
		})
		return status
	}

	address, err := m.service.StreamAddress(ctx)
	if err == nil {
		err = m.transport.Connect(ctx, address)
	}
	if err != nil {
		logger.Error("Failed to open stream", zap.Error(err))
		if st := m.service.Disconnect(ctx); !st.IsOK() {
			logger.Warn("Failed to close monitor service", zap.String("reason", st.Error()))
		}
		m.failConnectLocked()
		return model.ErrorStatus(fmt.Sprintf("failed to open stream: %v", err))
	}

	m.mu.Lock()
	m.state = model.StateConnected
	m.session++
	m.errorHistory = nil
	m.mu.Unlock()

	logger.Info("Monitor connected")
	m.emitConnectionChanged(&cfg)
	return model.OK
}

func (m *Manager) failConnectLocked() {
	m.mu.Lock()
	m.state = model.StateDisconnected
	m.current = nil
	m.mu.Unlock()
	m.emitConnectionChanged(nil)
}

func (m *Manager) disconnectLocked(ctx context.Context) model.Status {
	m.mu.Lock()
	m.cancelReconnectLocked()
	m.errorHistory = nil
	prev := m.state
	if prev == model.StateDisconnected {
		m.mu.Unlock()
		return model.OK
	}
	m.state = model.StateDisconnected
	m.current = nil
	m.session++
	m.mu.Unlock()

	if prev == model.StateConnected {
		m.closeLocked(ctx)
	}
	m.logger.Info("Monitor disconnected")
	m.emitConnectionChanged(nil)
	return model.OK
}

// closeLocked releases the transport and the service side of the connection.
// Failures are logged; the caller always ends up disconnected.
func (m *Manager) closeLocked(ctx context.Context) {
	if err := m.transport.Disconnect(); err != nil {
		m.logger.Warn("Failed to close stream", zap.Error(err))
	}
	if st := m.service.Disconnect(ctx); !st.IsOK() {
		m.logger.Warn("Failed to close monitor service", zap.String("reason", st.Error()))
	}
}

func (m *Manager) handleErrorLocked(ctx context.Context, err model.MonitorError) {
	if err.Is(model.ErrClientCancel) {
		m.logger.Debug("Monitor canceled by client", zap.String("port", err.Config.Port.Address))
		m.emitError(err)
		return
	}

	m.mu.Lock()
	if m.current != nil && !err.Config.Port.IsZero() && !m.current.Port.Equals(err.Config.Port) {
		m.mu.Unlock()
		m.logger.Debug("Ignoring error for inactive port", zap.String("port", err.Config.Port.Address))
		return
	}

	prev := m.state
	target := err.Config
	if m.current != nil {
		target = *m.current
	}

	eligible := false
	// an unclassified error while a reconnect is pending does not belong to
	// any open connection and leaves the timer running
	keepPending := false
	switch {
	case err.Is(model.ErrDeviceNotConfigured):
		m.notify(m.notifier.Info, fmt.Sprintf("Disconnected %s from %s.", boardName(target), target.Port.Address))
	case err.Is(model.ErrDeviceBusy):
		m.notify(m.notifier.Warn, fmt.Sprintf("Port %s is busy: %s", target.Port.Address, err.Message))
		m.errorHistory = append(m.errorHistory, err)
		eligible = m.autoConnect
	default:
		m.notify(m.notifier.Error, fmt.Sprintf("Monitor error on %s: %s", target.Port.Address, err.Message))
		eligible = prev == model.StateConnected && m.autoConnect
		keepPending = prev == model.StateReconnecting
	}

	if !keepPending {
		m.cancelReconnectLocked()
		if prev != model.StateDisconnected {
			m.state = model.StateDisconnected
			m.current = nil
			m.session++
		}
	}

	if attempts := len(m.errorHistory); attempts >= m.config.MaxErrorHistory {
		m.errorHistory = nil
		if eligible {
			eligible = false
			m.notify(m.notifier.Error, fmt.Sprintf("Could not connect to %s after %d attempts.", target.Port.Address, attempts))
		}
	}
	if eligible {
		m.scheduleReconnectLocked(target)
	}
	m.mu.Unlock()

	m.logger.Warn("Monitor error",
		zap.String("port", target.Port.Address),
		zap.String("message", err.Message),
		zap.Bool("reconnect", eligible || keepPending),
	)

	if prev == model.StateConnected {
		m.closeLocked(ctx)
	}
	m.emitError(err)
	if prev != model.StateDisconnected && !keepPending {
		m.emitConnectionChanged(nil)
	}
}

// scheduleReconnectLocked replaces any pending reconnect. Requires m.mu.
func (m *Manager) scheduleReconnectLocked(cfg model.MonitorConfig) {
	attempts := max(1, len(m.errorHistory))
	delay := m.config.BackoffUnit * time.Duration(attempts)

	m.timerGen++
	gen := m.timerGen
	m.state = model.StateReconnecting
	m.current = &cfg
	m.timer = m.scheduler.AfterFunc(delay, func() { m.reconnect(gen) })

	m.logger.Info("Reconnect scheduled",
		zap.String("port", cfg.Port.Address),
		zap.Duration("delay", delay),
		zap.Int("attempts", attempts),
	)
}

// cancelReconnectLocked stops the pending reconnect, if any. Requires m.mu.
func (m *Manager) cancelReconnectLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerGen++
}

func (m *Manager) reconnect(gen uint64) {
	m.transitionMu.Lock()
	m.mu.Lock()
	if gen != m.timerGen || m.state != model.StateReconnecting || m.current == nil {
		m.mu.Unlock()
		m.transitionMu.Unlock()
		return
	}
	m.timer = nil
	cfg := *m.current
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectTimeout)
	m.connectLocked(ctx, cfg)
	cancel()
	m.transitionMu.Unlock()

	m.events.flush()
}

func (m *Manager) transportClosed(session uint64) {
	m.transitionMu.Lock()
	m.mu.Lock()
	stale := session != m.session || m.state != model.StateConnected || m.current == nil
	var cfg model.MonitorConfig
	if !stale {
		cfg = *m.current
	}
	m.mu.Unlock()

	if !stale {
		ctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectTimeout)
		m.handleErrorLocked(ctx, model.MonitorError{Message: "stream connection lost", Config: cfg})
		cancel()
	}
	m.transitionMu.Unlock()

	m.events.flush()
}

func (m *Manager) relayMessages(batch []string) {
	m.listenersMu.RLock()
	listeners := m.messageListeners
	m.listenersMu.RUnlock()
	for _, l := range listeners {
		l(batch)
	}
}

func (m *Manager) notify(sink func(string), message string) {
	m.events.enqueue(func() { sink(message) })
}

func (m *Manager) emitConnectionChanged(cfg *model.MonitorConfig) {
	m.listenersMu.RLock()
	listeners := slices.Clone(m.connectionListeners)
	m.listenersMu.RUnlock()
	for _, l := range listeners {
		var arg *model.MonitorConfig
		if cfg != nil {
			c := *cfg
			arg = &c
		}
		m.events.enqueue(func() { l(arg) })
	}
}

func (m *Manager) emitError(err model.MonitorError) {
	m.listenersMu.RLock()
	listeners := slices.Clone(m.errorListeners)
	m.listenersMu.RUnlock()
	for _, l := range listeners {
		m.events.enqueue(func() { l(err) })
	}
}

func boardName(cfg model.MonitorConfig) string {
	if cfg.Board.Name == "" {
		return "board"
	}
	return cfg.Board.Name
}
