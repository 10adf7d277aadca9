package config

import (
	"errors"
	"fmt"

	"github.com/oxplot/go-pdsink/driver/ap33772"
)

// Validate checks configuration correctness. It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil")
	}
	if cfg.Bus.Address == 0 || cfg.Bus.Address > 0x7F {
		return fmt.Errorf("config: bus.address 0x%x is not a 7-bit address", cfg.Bus.Address)
	}
	if cfg.Bus.SpeedHz < 0 {
		return fmt.Errorf("config: bus.speed_hz must not be negative")
	}
	if cfg.Pins.PowerEnable == "" {
		return errors.New("config: pins.power_enable is required")
	}
	if err := cfg.DPMTarget().Validate(); err != nil {
		return fmt.Errorf("config: target: %w", err)
	}
	if cfg.Thresholds.OCPMA > ap33772.MaxOCPThreshold {
		return fmt.Errorf("config: thresholds.ocp_ma: %w", ap33772.ErrThresholdRange)
	}
	if cfg.Thresholds.DeratingC > cfg.Thresholds.OTPC {
		return fmt.Errorf("config: thresholds.derating_c (%d) above otp_c (%d)", cfg.Thresholds.DeratingC, cfg.Thresholds.OTPC)
	}
	for i, r := range cfg.Thresholds.Thermal {
		if r == 0 {
			return fmt.Errorf("config: thresholds.thermal[%d] must be > 0", i)
		}
	}
	if cfg.Timing.StartupDelay < 0 {
		return errors.New("config: timing.startup_delay must not be negative")
	}
	if cfg.Timing.PollInterval <= 0 {
		return errors.New("config: timing.poll_interval must be > 0")
	}
	if cfg.Timing.TelemetryPeriod <= 0 {
		return errors.New("config: timing.telemetry_period must be > 0")
	}
	return nil
}
