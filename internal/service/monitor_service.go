// internal/service/monitor_service.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"monitor-service/internal/config"
	"monitor-service/internal/eventbus"
	"monitor-service/internal/model"
	"monitor-service/internal/protocol/serial"
	"monitor-service/internal/repository"
	"monitor-service/internal/stream"
	"monitor-service/internal/utils"
)

const serviceName = "monitor-service"

// MonitorService owns the serial port of the active monitor and streams
// what it reads to the stream hub
type MonitorService struct {
	events repository.EventRepository
	bus    *eventbus.EventBus
	opener serial.Opener
	hub    *stream.Hub
	config *config.MonitorConfig
	logger *utils.ServiceLogger

	mu       sync.Mutex
	session  *session
	baudRate model.BaudRate
}

// session is one open port and its read loop
type session struct {
	cfg     model.MonitorConfig
	conn    *serial.Connection
	cancel  context.CancelFunc
	done    chan struct{}
	log     *utils.MonitorLogger
	started time.Time
	batches int
}

// NewMonitorService creates the service and its stream hub. A nil opener
// selects the system serial ports.
func NewMonitorService(
	events repository.EventRepository,
	bus *eventbus.EventBus,
	opener serial.Opener,
	cfg *config.Config,
	logger *zap.Logger,
) *MonitorService {
	if opener == nil {
		opener = serial.SystemOpener
	}

	baudRate := model.BaudRate(cfg.Monitor.DefaultBaudRate)
	if model.ValidateBaudRate(baudRate) != nil {
		baudRate = model.DefaultBaudRate
	}

	s := &MonitorService{
		events:   events,
		bus:      bus,
		opener:   opener,
		config:   &cfg.Monitor,
		logger:   utils.NewServiceLogger(logger, serviceName),
		baudRate: baudRate,
	}
	s.hub = stream.NewHub(&stream.HubConfig{
		Host:           cfg.Stream.Host,
		Port:           cfg.Stream.Port,
		SendBuffer:     cfg.Stream.SendBuffer,
		AllowedOrigins: cfg.Security.AllowedOrigins,
	}, s, logger)
	return s
}

// Hub returns the stream hub
func (s *MonitorService) Hub() *stream.Hub {
	return s.hub
}

// Current returns the config of the open port, or nil
func (s *MonitorService) Current() *model.MonitorConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	cfg := s.session.cfg
	return &cfg
}

// StreamAddress starts the hub if needed and returns its address
func (s *MonitorService) StreamAddress(_ context.Context) (string, error) {
	return s.hub.Start()
}

// Connect opens the port described by cfg and starts streaming it
func (s *MonitorService) Connect(ctx context.Context, cfg model.MonitorConfig) model.Status {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return model.ErrorStatus(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		return model.AlreadyConnected
	}

	log := utils.NewMonitorLogger(s.logger.Logger, cfg.Port.Address, cfg.Board.Name)

	portConfig := serial.DefaultConfig(cfg.Port.Address, int(cfg.BaudRate))
	portConfig.ReadTimeout = s.config.ReadTimeout
	conn, err := serial.NewConnection(portConfig, s.opener, log.Logger)
	if err != nil {
		return model.ErrorStatus(err.Error())
	}

	if err := conn.Open(ctx); err != nil {
		code := serial.Classify(err)
		log.LogConnection("open", int(cfg.BaudRate), err)
		s.journal(model.EventMonitorError, cfg, code, err.Error())
		return model.ErrorStatusWithCode(err.Error(), code)
	}

	if _, err := s.hub.Start(); err != nil {
		conn.Close()
		log.LogConnection("stream", int(cfg.BaudRate), err)
		return model.ErrorStatus(err.Error())
	}

	readCtx, cancel := context.WithCancel(context.Background())
	sess := &session{
		cfg:     cfg,
		conn:    conn,
		cancel:  cancel,
		done:    make(chan struct{}),
		log:     log,
		started: time.Now(),
	}
	s.session = sess
	s.baudRate = cfg.BaudRate
	go s.readLoop(readCtx, sess)

	log.LogConnection("open", int(cfg.BaudRate), nil)
	s.journal(model.EventMonitorConnected, cfg, nil, "")
	s.bus.PublishConnection(serviceName, &cfg)
	return model.OK
}

// Disconnect closes the open port
func (s *MonitorService) Disconnect(_ context.Context) model.Status {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()

	if sess == nil {
		return model.NotConnected
	}

	s.closeSession(sess)
	s.journal(model.EventMonitorDisconnected, sess.cfg, nil, "")
	s.bus.PublishConnection(serviceName, nil)
	return model.OK
}

// Send writes message to the open port as is
func (s *MonitorService) Send(ctx context.Context, message string) model.Status {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	if sess == nil {
		return model.NotConnected
	}
	if err := sess.conn.Write(ctx, []byte(message)); err != nil {
		return model.ErrorStatusWithCode(err.Error(), serial.Classify(err))
	}
	return model.OK
}

// GetCurrentSettings describes the settings of port. The open port reports
// its live speed; any other port reports the speed the next connection uses.
func (s *MonitorService) GetCurrentSettings(_ context.Context, _ model.BoardRef, port model.PortRef) (model.SettingsDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil && s.session.cfg.Port.Equals(port) {
		return model.SerialSettings(s.session.cfg.BaudRate), nil
	}
	return model.SerialSettings(s.baudRate), nil
}

// ChangeSettings applies the selected values of d. Keys the port does not
// support are ignored.
func (s *MonitorService) ChangeSettings(_ context.Context, d model.SettingsDescriptor) model.Status {
	setting, ok := d.Lookup(model.BaudRateSetting)
	if !ok {
		return model.OK
	}
	rate, err := model.ParseBaudRate(setting.SelectedValue)
	if err != nil {
		return model.ErrorStatus(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.baudRate = rate
	sess := s.session
	if sess == nil {
		return model.OK
	}

	if err := sess.conn.SetBaudRate(int(rate)); err != nil {
		sess.log.LogConnection("set_baud_rate", int(rate), err)
		return model.ErrorStatusWithCode(err.Error(), serial.Classify(err))
	}
	sess.cfg.BaudRate = rate
	s.journal(model.EventSettingsChanged, sess.cfg, nil, fmt.Sprintf("baudrate=%s", rate))
	return model.OK
}

// HandleCommand executes a command received on the stream
func (s *MonitorService) HandleCommand(ctx context.Context, env stream.Envelope) error {
	var status model.Status
	switch env.Command {
	case stream.CommandSendMessage:
		message, err := env.Message()
		if err != nil {
			return err
		}
		status = s.Send(ctx, message)
	case stream.CommandChangeSettings:
		settings, err := env.Settings()
		if err != nil {
			return err
		}
		status = s.ChangeSettings(ctx, settings)
	default:
		return fmt.Errorf("unsupported command %q", env.Command)
	}

	if !status.IsOK() {
		return fmt.Errorf("%s failed: %s", env.Command, status.Error())
	}
	return nil
}

// Stop closes the port and the stream hub
func (s *MonitorService) Stop(ctx context.Context) error {
	s.Disconnect(ctx)
	return s.hub.Stop(ctx)
}

func (s *MonitorService) closeSession(sess *session) {
	sess.cancel()
	if err := sess.conn.Close(); err != nil {
		utils.LogError(sess.log.Logger, "Failed to close port", err)
	}
	<-sess.done

	stats := sess.conn.Stats()
	sess.log.LogThroughput(stats.BytesRead, stats.BytesWritten, sess.batches, time.Since(sess.started))
}

// readLoop batches port reads and broadcasts them. A batch is flushed when
// the flush interval ticks or when it reaches MaxBatchBytes.
func (s *MonitorService) readLoop(ctx context.Context, sess *session) {
	defer close(sess.done)

	chunks := make(chan []byte, 16)
	failed := make(chan error, 1)
	go func() {
		buf := make([]byte, 1024)
		for ctx.Err() == nil {
			n, err := sess.conn.Read(buf)
			if err != nil {
				failed <- err
				return
			}
			if n == 0 {
				continue
			}
			select {
			case chunks <- append([]byte(nil), buf[:n]...):
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	var (
		batch   []string
		size    int
		partial []byte
	)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.hub.Broadcast(batch)
		sess.batches++
		batch, size = nil, 0
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case chunk := <-chunks:
			var text []byte
			text, partial = splitUTF8(append(partial, chunk...))
			if len(text) > 0 {
				batch = append(batch, string(text))
				size += len(text)
			}
			if size >= s.config.MaxBatchBytes {
				flush()
			}

		case <-ticker.C:
			flush()

		case err := <-failed:
			flush()
			if ctx.Err() != nil {
				return
			}
			s.portFailed(sess, err)
			return
		}
	}
}

// portFailed tears down a session whose port broke underneath it
func (s *MonitorService) portFailed(sess *session, err error) {
	code := serial.Classify(err)
	label := "UNKNOWN"
	if code != nil {
		label = string(*code)
	}
	sess.log.LogReadError(label, err)

	s.mu.Lock()
	current := s.session == sess
	if current {
		s.session = nil
	}
	cfg := sess.cfg
	s.mu.Unlock()
	if !current {
		return
	}

	sess.cancel()
	sess.conn.Close()

	merr := model.MonitorError{Message: err.Error(), Code: code, Config: cfg}
	s.journal(model.EventMonitorError, cfg, code, err.Error())
	s.bus.PublishError(serviceName, merr)
	s.bus.PublishConnection(serviceName, nil)
}

func (s *MonitorService) journal(eventType model.EventType, cfg model.MonitorConfig, code *model.ErrorCode, message string) {
	event := model.NewMonitorEvent(eventType, cfg, message)
	event.Code = code

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.events.Create(ctx, event); err != nil {
		utils.LogError(s.logger.Logger, "Failed to journal monitor event", err,
			zap.String("event_type", string(eventType)),
		)
	}
}

// splitUTF8 returns the longest prefix of data that does not end inside a
// multi-byte sequence, and the incomplete rest.
func splitUTF8(data []byte) (complete, rest []byte) {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(data[i]) {
			continue
		}
		if utf8.FullRune(data[i:]) {
			break
		}
		return data[:i], append([]byte(nil), data[i:]...)
	}
	return data, nil
}
