// 📁 internal/discovery/scanner.go - Port Scanner Interface
package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"monitor-service/internal/model"
)

// PortScanner interface - Strategy Pattern
type PortScanner interface {
	Scan(ctx context.Context) ([]*DiscoveredPort, error)
	GetScannerType() string
	IsAvailable() bool
}

// DiscoveredPort is an attached port plus the board identified behind it
type DiscoveredPort struct {
	Port   model.PortRef   `json:"port"`
	Board  *model.BoardRef `json:"board,omitempty"`
	Vendor string          `json:"vendor,omitempty"`
}

// ScannerManager manages all port scanners - Facade Pattern
type ScannerManager struct {
	scanners map[string]PortScanner
	mutex    sync.RWMutex
	logger   *zap.Logger
}

// NewScannerManager creates a new scanner manager
func NewScannerManager(logger *zap.Logger) *ScannerManager {
	return &ScannerManager{
		scanners: make(map[string]PortScanner),
		logger:   logger.With(zap.String("component", "discovery")),
	}
}

// RegisterScanner registers a port scanner
func (sm *ScannerManager) RegisterScanner(scanner PortScanner) {
	scannerType := scanner.GetScannerType()
	sm.mutex.Lock()
	sm.scanners[scannerType] = scanner
	sm.mutex.Unlock()
	sm.logger.Info("Scanner registered", zap.String("type", scannerType))
}

// ScanAll scans with every available scanner. A failing scanner is logged
// and skipped.
func (sm *ScannerManager) ScanAll(ctx context.Context) ([]*DiscoveredPort, error) {
	sm.mutex.RLock()
	scanners := make(map[string]PortScanner, len(sm.scanners))
	for k, v := range sm.scanners {
		scanners[k] = v
	}
	sm.mutex.RUnlock()

	var all []*DiscoveredPort
	for scannerType, scanner := range scanners {
		if !scanner.IsAvailable() {
			sm.logger.Debug("Scanner not available, skipping", zap.String("type", scannerType))
			continue
		}

		ports, err := scanner.Scan(ctx)
		if err != nil {
			sm.logger.Error("Scanner failed", zap.String("type", scannerType), zap.Error(err))
			continue
		}
		all = append(all, ports...)
		sm.logger.Debug("Scanner completed",
			zap.String("type", scannerType),
			zap.Int("ports_found", len(ports)),
		)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Port.Address < all[j].Port.Address })
	return all, nil
}

// ScanByType scans with one scanner
func (sm *ScannerManager) ScanByType(ctx context.Context, scannerType string) ([]*DiscoveredPort, error) {
	sm.mutex.RLock()
	scanner, exists := sm.scanners[scannerType]
	sm.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("scanner type not found: %s", scannerType)
	}
	if !scanner.IsAvailable() {
		return nil, fmt.Errorf("scanner not available: %s", scannerType)
	}
	return scanner.Scan(ctx)
}

// AvailablePorts returns the attached ports
func (sm *ScannerManager) AvailablePorts(ctx context.Context) ([]model.PortRef, error) {
	discovered, err := sm.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	ports := make([]model.PortRef, 0, len(discovered))
	for _, d := range discovered {
		ports = append(ports, d.Port)
	}
	return ports, nil
}

// GetAvailableScanners returns list of available scanner types
func (sm *ScannerManager) GetAvailableScanners() []string {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	var available []string
	for scannerType, scanner := range sm.scanners {
		if scanner.IsAvailable() {
			available = append(available, scannerType)
		}
	}
	sort.Strings(available)
	return available
}
