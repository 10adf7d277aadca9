// Package config loads the sink configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oxplot/go-pdsink/dpm"
	"github.com/oxplot/go-pdsink/driver/ap33772"
)

type Config struct {
	Bus        BusConfig        `yaml:"bus"`
	Pins       PinsConfig       `yaml:"pins"`
	Target     TargetConfig     `yaml:"target"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Timing     TimingConfig     `yaml:"timing"`
}

// ---- BUS ----

type BusConfig struct {
	Name    string `yaml:"name"`     // periph.io bus name, "" for the first one
	Address uint16 `yaml:"address"`  // 7-bit
	SpeedHz int64  `yaml:"speed_hz"` // 0 keeps the bus default
}

// ---- PINS ----

// PinsConfig holds periph.io pin names.
type PinsConfig struct {
	PowerEnable string `yaml:"power_enable"`
	IRQ         string `yaml:"irq"` // optional, status is polled without it
	LED         string `yaml:"led"` // optional
}

// ---- TARGET ----

type TargetConfig struct {
	VoltageMV    uint16 `yaml:"voltage_mv"`
	MinVoltageMV uint16 `yaml:"min_voltage_mv"`
	MaxVoltageMV uint16 `yaml:"max_voltage_mv"`
	CurrentMA    uint16 `yaml:"current_ma"`
	MinCurrentMA uint16 `yaml:"min_current_ma"`
}

// ---- PROTECTION ----

type ThresholdsConfig struct {
	OCPMA     uint16    `yaml:"ocp_ma"`
	OTPC      uint8     `yaml:"otp_c"`
	DeratingC uint8     `yaml:"derating_c"`
	Thermal   [4]uint16 `yaml:"thermal"` // ohms at 25, 50, 75 and 100 degC
	IRQMask   uint8     `yaml:"irq_mask"`
}

// ---- TIMING ----

type TimingConfig struct {
	StartupDelay    time.Duration `yaml:"startup_delay"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	TelemetryPeriod time.Duration `yaml:"telemetry_period"`
}

// Default returns the configuration of the reference board: a Raspberry Pi
// Pico wired to the chip on I2C0 asking for 3.3-5 V at 1 A.
func Default() *Config {
	dc := ap33772.DefaultConfig()
	return &Config{
		Bus: BusConfig{
			Address: ap33772.Address,
			SpeedHz: 100000,
		},
		Pins: PinsConfig{
			PowerEnable: "GPIO23",
			IRQ:         "GPIO24",
			LED:         "GPIO25",
		},
		Target: TargetConfig{
			VoltageMV:    3400,
			MinVoltageMV: 3300,
			MaxVoltageMV: 5000,
			CurrentMA:    1000,
			MinCurrentMA: 1000,
		},
		Thresholds: ThresholdsConfig{
			OCPMA:     dc.Thresholds.OCP,
			OTPC:      dc.Thresholds.OTP,
			DeratingC: dc.Thresholds.Derating,
			Thermal:   [4]uint16(dc.Thermal),
			IRQMask:   uint8(dc.IRQMask),
		},
		Timing: TimingConfig{
			StartupDelay:    10 * time.Millisecond,
			PollInterval:    time.Second,
			TelemetryPeriod: 5 * time.Second,
		},
	}
}

// Load reads the YAML file at path. Keys missing from the file keep their
// Default value. The result is not validated.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// DPMTarget returns the target operating point for the profile selector.
func (c *Config) DPMTarget() dpm.Target {
	return dpm.Target{
		Voltage:    c.Target.VoltageMV,
		MinVoltage: c.Target.MinVoltageMV,
		MaxVoltage: c.Target.MaxVoltageMV,
		Current:    c.Target.CurrentMA,
		MinCurrent: c.Target.MinCurrentMA,
	}
}

// DeviceConfig returns the protection settings written to the chip at start.
func (c *Config) DeviceConfig() ap33772.Config {
	return ap33772.Config{
		Thresholds: ap33772.Thresholds{
			OCP:      c.Thresholds.OCPMA,
			OTP:      c.Thresholds.OTPC,
			Derating: c.Thresholds.DeratingC,
		},
		Thermal: ap33772.ThermalTable(c.Thresholds.Thermal),
		IRQMask: ap33772.IRQMask(c.Thresholds.IRQMask),
	}
}
