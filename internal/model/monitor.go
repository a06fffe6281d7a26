// internal/model/monitor.go
package model

import (
	"fmt"
	"strconv"
)

// ConnectionType represents how the monitored device is reached
type ConnectionType string

const (
	ConnectionTypeSerial ConnectionType = "SERIAL"
)

// BaudRate is one of the fixed serial speeds a monitor may use
type BaudRate int

// DefaultBaudRate is used when a MonitorConfig leaves the rate unset
const DefaultBaudRate BaudRate = 9600

// BaudRates lists the supported speeds in ascending order
var BaudRates = []BaudRate{300, 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}

// ValidateBaudRate reports whether rate belongs to BaudRates
func ValidateBaudRate(rate BaudRate) error {
	for _, r := range BaudRates {
		if r == rate {
			return nil
		}
	}
	return fmt.Errorf("unsupported baud rate: %d", rate)
}

// ParseBaudRate parses a decimal baud rate and validates it
func ParseBaudRate(s string) (BaudRate, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid baud rate %q: %w", s, err)
	}
	rate := BaudRate(n)
	if err := ValidateBaudRate(rate); err != nil {
		return 0, err
	}
	return rate, nil
}

func (b BaudRate) String() string {
	return strconv.Itoa(int(b))
}

// BoardRef identifies the board attached to a port
type BoardRef struct {
	Name string `json:"name"`
	FQBN string `json:"fqbn,omitempty"`
}

// PortRef identifies a port as reported by discovery
type PortRef struct {
	Address      string `json:"address"`
	Protocol     string `json:"protocol"`
	Label        string `json:"label,omitempty"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// Equals compares two ports by address and protocol
func (p PortRef) Equals(other PortRef) bool {
	return p.Address == other.Address && p.Protocol == other.Protocol
}

// IsZero reports whether the port is unset
func (p PortRef) IsZero() bool {
	return p.Address == ""
}

// MonitorConfig describes what a monitor connects to. It is treated as an
// immutable value.
type MonitorConfig struct {
	Board          BoardRef       `json:"board"`
	Port           PortRef        `json:"port"`
	ConnectionType ConnectionType `json:"connection_type,omitempty"`
	BaudRate       BaudRate       `json:"baud_rate,omitempty"`
}

// WithDefaults fills the optional fields
func (c MonitorConfig) WithDefaults() MonitorConfig {
	if c.ConnectionType == "" {
		c.ConnectionType = ConnectionTypeSerial
	}
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	return c
}

// Validate checks the config after defaults are applied
func (c MonitorConfig) Validate() error {
	if c.Port.IsZero() {
		return fmt.Errorf("port address is required")
	}
	if c.ConnectionType != "" && c.ConnectionType != ConnectionTypeSerial {
		return fmt.Errorf("unsupported connection type: %s", c.ConnectionType)
	}
	if c.BaudRate != 0 {
		if err := ValidateBaudRate(c.BaudRate); err != nil {
			return err
		}
	}
	return nil
}

func (c MonitorConfig) String() string {
	board := c.Board.Name
	if board == "" {
		board = "unknown board"
	}
	return fmt.Sprintf("%s on %s", board, c.Port.Address)
}

// ConnectionState is the lifecycle state of a monitor connection
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}
