// internal/protocol/serial/connection.go
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// ErrNotOpen is returned when the port has not been opened
var ErrNotOpen = errors.New("serial port not open")

// Port is the subset of serial.Port used by a Connection
type Port interface {
	io.ReadWriteCloser
	SetMode(mode *serial.Mode) error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Opener opens a named port
type Opener func(name string, mode *serial.Mode) (Port, error)

// SystemOpener opens a real serial device
func SystemOpener(name string, mode *serial.Mode) (Port, error) {
	return serial.Open(name, mode)
}

// Config represents serial port configuration
type Config struct {
	Port        string        `json:"port"`
	BaudRate    int           `json:"baud_rate"`
	DataBits    int           `json:"data_bits"`
	StopBits    int           `json:"stop_bits"`
	Parity      string        `json:"parity"`
	ReadTimeout time.Duration `json:"read_timeout"`
}

// DefaultConfig returns an 8N1 configuration for port
func DefaultConfig(port string, baudRate int) *Config {
	return &Config{
		Port:        port,
		BaudRate:    baudRate,
		DataBits:    8,
		StopBits:    1,
		Parity:      "none",
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Stats provides port-level counters
type Stats struct {
	BytesWritten int64     `json:"bytes_written"`
	BytesRead    int64     `json:"bytes_read"`
	ErrorCount   int64     `json:"error_count"`
	LastActivity time.Time `json:"last_activity"`
	IsOpen       bool      `json:"is_open"`
}

// Connection represents a serial port connection
type Connection struct {
	config *Config
	open   Opener
	port   Port
	logger *zap.Logger
	mutex  sync.RWMutex
	stats  Stats
}

// NewConnection creates a closed connection. A nil opener selects
// SystemOpener.
func NewConnection(config *Config, opener Opener, logger *zap.Logger) (*Connection, error) {
	if config == nil || config.Port == "" {
		return nil, fmt.Errorf("port is required")
	}
	if opener == nil {
		opener = SystemOpener
	}

	return &Connection{
		config: config,
		open:   opener,
		logger: logger.With(zap.String("port", config.Port)),
	}, nil
}

// Open opens the serial connection
func (c *Connection) Open(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.port != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	port, err := c.open(c.config.Port, c.mode())
	if err != nil {
		c.stats.ErrorCount++
		c.logger.Error("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("failed to open serial port %s: %w", c.config.Port, err)
	}

	if c.config.ReadTimeout > 0 {
		if err := port.SetReadTimeout(c.config.ReadTimeout); err != nil {
			port.Close()
			return fmt.Errorf("failed to set read timeout: %w", err)
		}
	}
	if err := port.ResetInputBuffer(); err != nil {
		c.logger.Debug("Failed to reset input buffer", zap.Error(err))
	}

	c.port = port
	c.stats.IsOpen = true
	c.stats.LastActivity = time.Now()

	c.logger.Info("Serial port opened successfully", zap.Int("baud_rate", c.config.BaudRate))
	return nil
}

func (c *Connection) mode() *serial.Mode {
	mode := &serial.Mode{
		BaudRate: c.config.BaudRate,
		DataBits: c.config.DataBits,
	}

	switch c.config.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}

	switch c.config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode
}

// Close closes the serial connection
func (c *Connection) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.port == nil {
		return nil
	}

	err := c.port.Close()
	c.port = nil
	c.stats.IsOpen = false
	if err != nil {
		c.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	c.logger.Info("Serial port closed")
	return nil
}

// SetBaudRate changes the speed of the open port
func (c *Connection) SetBaudRate(rate int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.port == nil {
		return ErrNotOpen
	}

	prev := c.config.BaudRate
	c.config.BaudRate = rate
	if err := c.port.SetMode(c.mode()); err != nil {
		c.config.BaudRate = prev
		c.stats.ErrorCount++
		return fmt.Errorf("failed to set baud rate %d: %w", rate, err)
	}

	c.logger.Info("Baud rate changed", zap.Int("from", prev), zap.Int("to", rate))
	return nil
}

// Write writes data to the serial port
func (c *Connection) Write(ctx context.Context, data []byte) error {
	c.mutex.RLock()
	port := c.port
	c.mutex.RUnlock()

	if port == nil {
		return ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	n, err := port.Write(data)
	c.record(func(s *Stats) { s.BytesWritten += int64(n) }, err)
	if err != nil {
		c.logger.Error("Failed to write to serial port",
			zap.Error(err),
			zap.Int("bytes_to_write", len(data)),
		)
		return fmt.Errorf("failed to write to serial port: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	c.logger.Debug("Data written to serial port", zap.Int("bytes_written", n))
	return nil
}

// Read reads whatever is available into buf. It returns 0 and no error when
// the read timeout expires with nothing received.
func (c *Connection) Read(buf []byte) (int, error) {
	c.mutex.RLock()
	port := c.port
	c.mutex.RUnlock()

	if port == nil {
		return 0, ErrNotOpen
	}

	n, err := port.Read(buf)
	c.record(func(s *Stats) { s.BytesRead += int64(n) }, err)
	if err != nil {
		return n, fmt.Errorf("failed to read from serial port: %w", err)
	}
	return n, nil
}

func (c *Connection) record(update func(*Stats), err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	update(&c.stats)
	if err != nil {
		c.stats.ErrorCount++
	} else {
		c.stats.LastActivity = time.Now()
	}
}

// IsOpen returns whether the connection is open
func (c *Connection) IsOpen() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.port != nil
}

// Stats returns a copy of the port counters
func (c *Connection) Stats() Stats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.stats
}

// GetConfig returns the connection configuration
func (c *Connection) GetConfig() Config {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return *c.config
}
