package discovery

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"monitor-service/internal/model"
)

type stubScanner struct {
	kind      string
	available bool
	ports     []*DiscoveredPort
	err       error
}

func (s *stubScanner) Scan(context.Context) ([]*DiscoveredPort, error) { return s.ports, s.err }
func (s *stubScanner) GetScannerType() string                         { return s.kind }
func (s *stubScanner) IsAvailable() bool                              { return s.available }

func port(address string) *DiscoveredPort {
	return &DiscoveredPort{Port: model.PortRef{Address: address, Protocol: "serial"}}
}

func TestScannerManager_ScanAllSkipsFailures(t *testing.T) {
	sm := NewScannerManager(zap.NewNop())
	sm.RegisterScanner(&stubScanner{kind: "a", available: true, ports: []*DiscoveredPort{port("COM4"), port("COM1")}})
	sm.RegisterScanner(&stubScanner{kind: "b", available: true, err: errors.New("boom")})
	sm.RegisterScanner(&stubScanner{kind: "c", available: false, ports: []*DiscoveredPort{port("COM9")}})

	ports, err := sm.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if len(ports) != 2 || ports[0].Port.Address != "COM1" || ports[1].Port.Address != "COM4" {
		t.Fatalf("ports = %+v", ports)
	}

	if _, err := sm.ScanByType(context.Background(), "c"); err == nil {
		t.Fatal("expected unavailable scanner error")
	}
}
