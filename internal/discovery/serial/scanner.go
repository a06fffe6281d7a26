// 📁 internal/discovery/serial/scanner.go - Serial Port Scanner Implementation
package serial

import (
	"context"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"monitor-service/internal/discovery"
	"monitor-service/internal/discovery/usb"
	"monitor-service/internal/model"
)

// Protocol is the protocol name reported for serial ports
const Protocol = "serial"

// EnumerateFunc lists the ports of the system
type EnumerateFunc func() ([]*enumerator.PortDetails, error)

// Scanner implements serial port discovery
type Scanner struct {
	logger    *zap.Logger
	config    *Config
	enumerate EnumerateFunc
	boards    *usb.BoardDatabase
}

// Config for serial scanner
type Config struct {
	// IncludeNonUSB lists ports that are not backed by a USB device
	IncludeNonUSB bool `json:"include_non_usb"`
	// PortPatterns keeps only ports whose name contains one of the patterns
	PortPatterns []string `json:"port_patterns"`
}

// NewScanner creates a new serial scanner. A nil enumerate selects the
// system enumerator.
func NewScanner(logger *zap.Logger, config *Config, enumerate EnumerateFunc) *Scanner {
	if config == nil {
		config = &Config{IncludeNonUSB: true}
	}
	if enumerate == nil {
		enumerate = enumerator.GetDetailedPortsList
	}

	return &Scanner{
		logger:    logger.With(zap.String("scanner", "serial")),
		config:    config,
		enumerate: enumerate,
		boards:    usb.NewBoardDatabase(),
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return Protocol
}

// IsAvailable checks if serial scanning is available
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan lists the serial ports and identifies the boards behind them
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPort, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	details, err := s.enumerate()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	ports := make([]*discovery.DiscoveredPort, 0, len(details))
	for _, d := range details {
		if !s.keep(d) {
			continue
		}

		port := &discovery.DiscoveredPort{
			Port: model.PortRef{
				Address:      d.Name,
				Protocol:     Protocol,
				Label:        d.Name,
				VID:          d.VID,
				PID:          d.PID,
				SerialNumber: d.SerialNumber,
			},
		}
		if d.IsUSB {
			port.Vendor, port.Board = s.boards.Identify(d.VID, d.PID)
			if d.Product != "" {
				port.Port.Label = fmt.Sprintf("%s (%s)", d.Name, d.Product)
			}
		}
		ports = append(ports, port)
	}

	s.logger.Debug("Serial scan completed", zap.Int("ports_found", len(ports)))
	return ports, nil
}

func (s *Scanner) keep(d *enumerator.PortDetails) bool {
	if !d.IsUSB && !s.config.IncludeNonUSB {
		return false
	}
	if len(s.config.PortPatterns) == 0 {
		return true
	}
	for _, pattern := range s.config.PortPatterns {
		if strings.Contains(d.Name, pattern) {
			return true
		}
	}
	return false
}
