package model

import (
	"slices"
	"testing"
)

func TestParseBaudRate(t *testing.T) {
	tests := []struct {
		input   string
		want    BaudRate
		wantErr bool
	}{
		{input: "9600", want: 9600},
		{input: "115200", want: 115200},
		{input: "300", want: 300},
		{input: "9601", wantErr: true},
		{input: "fast", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBaudRate(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("rate = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMonitorConfig_WithDefaults(t *testing.T) {
	cfg := MonitorConfig{Port: PortRef{Address: "COM3"}}.WithDefaults()
	if cfg.ConnectionType != ConnectionTypeSerial || cfg.BaudRate != DefaultBaudRate {
		t.Fatalf("defaults not applied: %+v", cfg)
	}

	cfg = MonitorConfig{Port: PortRef{Address: "COM3"}, BaudRate: 115200}.WithDefaults()
	if cfg.BaudRate != 115200 {
		t.Fatalf("explicit rate overwritten: %d", cfg.BaudRate)
	}
}

func TestMonitorConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     MonitorConfig
		wantErr bool
	}{
		{name: "Valid", cfg: MonitorConfig{Port: PortRef{Address: "/dev/ttyUSB0"}, BaudRate: 57600}},
		{name: "NoPort", cfg: MonitorConfig{BaudRate: 9600}, wantErr: true},
		{name: "BadRate", cfg: MonitorConfig{Port: PortRef{Address: "x"}, BaudRate: 1}, wantErr: true},
		{name: "BadType", cfg: MonitorConfig{Port: PortRef{Address: "x"}, ConnectionType: "TCP"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPortRef_Equals(t *testing.T) {
	a := PortRef{Address: "COM1", Protocol: "serial", Label: "one"}
	b := PortRef{Address: "COM1", Protocol: "serial", Label: "other"}
	c := PortRef{Address: "COM2", Protocol: "serial"}

	if !a.Equals(b) {
		t.Error("ports with same address and protocol should be equal")
	}
	if a.Equals(c) {
		t.Error("ports with different address should differ")
	}
}

func TestSettingsDescriptor_Select(t *testing.T) {
	d := SerialSettings(DefaultBaudRate)

	s, ok := d.Lookup(BaudRateSetting)
	if !ok || s.SelectedValue != "9600" || !slices.Contains(s.Values, "115200") {
		t.Fatalf("serial settings = %+v", s)
	}

	next, ok := d.Select(BaudRateSetting, "115200")
	if !ok {
		t.Fatal("select rejected an advertised value")
	}
	if next[BaudRateSetting].SelectedValue != "115200" {
		t.Errorf("selected = %q", next[BaudRateSetting].SelectedValue)
	}
	if d[BaudRateSetting].SelectedValue != "9600" {
		t.Error("select mutated the original descriptor")
	}

	if _, ok := d.Select(BaudRateSetting, "12345"); ok {
		t.Error("select accepted an unknown value")
	}
	if _, ok := d.Select("parity", "even"); ok {
		t.Error("select accepted an unsupported key")
	}
	if _, ok := SettingsDescriptor(nil).Lookup(BaudRateSetting); ok {
		t.Error("nil descriptor reported a setting")
	}
}
