package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oxplot/go-pdsink/dpm"
	"github.com/oxplot/go-pdsink/driver/ap33772"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "pdsink.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DeviceConfig() != ap33772.DefaultConfig() {
		t.Errorf("DeviceConfig() = %+v", cfg.DeviceConfig())
	}
	want := dpm.Target{Voltage: 3400, MinVoltage: 3300, MaxVoltage: 5000, Current: 1000, MinCurrent: 1000}
	if cfg.DPMTarget() != want {
		t.Errorf("DPMTarget() = %+v", cfg.DPMTarget())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	p := writeFile(t, `
bus:
  name: "/dev/i2c-1"
pins:
  irq: ""
target:
  voltage_mv: 9000
  min_voltage_mv: 8000
  max_voltage_mv: 10000
  current_ma: 2000
  min_current_ma: 1500
thresholds:
  ocp_ma: 2500
  thermal: [10000, 4000, 2000, 1000]
timing:
  poll_interval: 250ms
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Name != "/dev/i2c-1" || cfg.Bus.Address != ap33772.Address {
		t.Errorf("bus = %+v", cfg.Bus)
	}
	if cfg.Pins.IRQ != "" || cfg.Pins.PowerEnable != "GPIO23" {
		t.Errorf("pins = %+v", cfg.Pins)
	}
	if cfg.DPMTarget() != (dpm.Target{Voltage: 9000, MinVoltage: 8000, MaxVoltage: 10000, Current: 2000, MinCurrent: 1500}) {
		t.Errorf("target = %+v", cfg.DPMTarget())
	}
	dc := cfg.DeviceConfig()
	if dc.Thresholds.OCP != 2500 || dc.Thresholds.OTP != 80 || dc.Thermal != (ap33772.ThermalTable{10000, 4000, 2000, 1000}) {
		t.Errorf("device config = %+v", dc)
	}
	if cfg.Timing.PollInterval != 250*time.Millisecond || cfg.Timing.TelemetryPeriod != 5*time.Second {
		t.Errorf("timing = %+v", cfg.Timing)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: %v", err)
	}
	if _, err := Load(writeFile(t, "target: [1, 2")); err == nil {
		t.Error("malformed yaml accepted")
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"address", func(c *Config) { c.Bus.Address = 0x80 }},
		{"power pin", func(c *Config) { c.Pins.PowerEnable = "" }},
		{"voltage range", func(c *Config) { c.Target.MinVoltageMV = 6000 }},
		{"current", func(c *Config) { c.Target.MinCurrentMA = 2000 }},
		{"ocp", func(c *Config) { c.Thresholds.OCPMA = 13000 }},
		{"derating", func(c *Config) { c.Thresholds.DeratingC = 90 }},
		{"thermal", func(c *Config) { c.Thresholds.Thermal[2] = 0 }},
		{"poll", func(c *Config) { c.Timing.PollInterval = 0 }},
		{"telemetry", func(c *Config) { c.Timing.TelemetryPeriod = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if err := Validate(nil); err == nil {
		t.Error("nil config accepted")
	}
}

func TestValidate_OCPWrapsSentinel(t *testing.T) {
	cfg := Default()
	cfg.Thresholds.OCPMA = ap33772.MaxOCPThreshold + 1
	if err := Validate(cfg); !errors.Is(err, ap33772.ErrThresholdRange) {
		t.Fatalf("Validate() = %v", err)
	}
}
