package serial

import (
	"context"
	"errors"
	"testing"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"monitor-service/internal/discovery"
)

func fixedPorts(ports ...*enumerator.PortDetails) EnumerateFunc {
	return func() ([]*enumerator.PortDetails, error) { return ports, nil }
}

var (
	unoDetails = &enumerator.PortDetails{
		Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043",
		SerialNumber: "85736323838351F0C1A1", Product: "Arduino Uno",
	}
	builtinDetails = &enumerator.PortDetails{Name: "/dev/ttyS0"}
)

func TestScanner_IdentifiesBoards(t *testing.T) {
	s := NewScanner(zap.NewNop(), nil, fixedPorts(unoDetails, builtinDetails))

	ports, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(ports) != 2 {
		t.Fatalf("got %d ports, want 2", len(ports))
	}

	uno := ports[0]
	if uno.Port.Address != "/dev/ttyACM0" || uno.Port.Protocol != Protocol {
		t.Errorf("port = %+v", uno.Port)
	}
	if uno.Port.Label != "/dev/ttyACM0 (Arduino Uno)" {
		t.Errorf("label = %q", uno.Port.Label)
	}
	if uno.Board == nil || uno.Board.FQBN != "arduino:avr:uno" {
		t.Errorf("board = %+v", uno.Board)
	}
	if uno.Port.SerialNumber != unoDetails.SerialNumber {
		t.Errorf("serial number = %q", uno.Port.SerialNumber)
	}

	if ports[1].Board != nil || ports[1].Vendor != "" {
		t.Errorf("built-in port identified as %+v", ports[1])
	}
}

func TestScanner_Filters(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		want   []string
	}{
		{name: "Default", want: []string{"/dev/ttyACM0", "/dev/ttyS0"}},
		{name: "USBOnly", config: &Config{}, want: []string{"/dev/ttyACM0"}},
		{name: "Pattern", config: &Config{IncludeNonUSB: true, PortPatterns: []string{"ttyS"}}, want: []string{"/dev/ttyS0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScanner(zap.NewNop(), tt.config, fixedPorts(unoDetails, builtinDetails))
			ports, err := s.Scan(context.Background())
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if len(ports) != len(tt.want) {
				t.Fatalf("got %d ports, want %v", len(ports), tt.want)
			}
			for i, p := range ports {
				if p.Port.Address != tt.want[i] {
					t.Errorf("port %d = %q, want %q", i, p.Port.Address, tt.want[i])
				}
			}
		})
	}
}

func TestScanner_EnumerationError(t *testing.T) {
	boom := errors.New("boom")
	s := NewScanner(zap.NewNop(), nil, func() ([]*enumerator.PortDetails, error) { return nil, boom })

	if _, err := s.Scan(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestScannerManager_AvailablePorts(t *testing.T) {
	sm := discovery.NewScannerManager(zap.NewNop())
	sm.RegisterScanner(NewScanner(zap.NewNop(), nil, fixedPorts(builtinDetails, unoDetails)))

	ports, err := sm.AvailablePorts(context.Background())
	if err != nil {
		t.Fatalf("AvailablePorts: %v", err)
	}
	if len(ports) != 2 || ports[0].Address != "/dev/ttyACM0" || ports[1].Address != "/dev/ttyS0" {
		t.Fatalf("ports = %+v", ports)
	}

	if got := sm.GetAvailableScanners(); len(got) != 1 || got[0] != Protocol {
		t.Fatalf("scanners = %v", got)
	}
	if _, err := sm.ScanByType(context.Background(), "bluetooth"); err == nil {
		t.Fatal("expected unknown scanner type error")
	}
}
