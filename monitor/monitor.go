// Package monitor periodically samples the output voltage, current and
// temperature reported by the sink controller.
package monitor

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/oxplot/go-pdsink"
)

// DefaultPeriod is the time between two samples.
const DefaultPeriod = 5 * time.Second

// Sample is a single telemetry reading.
type Sample struct {
	Voltage     physic.ElectricPotential
	Current     physic.ElectricCurrent
	Temperature physic.Temperature
}

// MilliVolts returns the voltage in mV.
func (s Sample) MilliVolts() int64 {
	return int64(s.Voltage / physic.MilliVolt)
}

// MilliAmps returns the current in mA.
func (s Sample) MilliAmps() int64 {
	return int64(s.Current / physic.MilliAmpere)
}

// Celsius returns the temperature in whole degrees Celsius.
func (s Sample) Celsius() int64 {
	return int64((s.Temperature - physic.ZeroCelsius) / physic.Celsius)
}

func (s Sample) String() string {
	return fmt.Sprintf("volt: %d mV, curr: %d mA, temp: %d degC", s.MilliVolts(), s.MilliAmps(), s.Celsius())
}

// Read takes one sample. The bus is held for the three reads so they are not
// interleaved with the controller.
func Read(dev *pdsink.Shared) (Sample, error) {
	var s Sample
	err := dev.Do(func(d pdsink.Device) error {
		t, err := d.ReadTemp()
		if err != nil {
			return err
		}
		v, err := d.ReadVoltage()
		if err != nil {
			return err
		}
		c, err := d.ReadCurrent()
		if err != nil {
			return err
		}
		s.Temperature = physic.ZeroCelsius + physic.Temperature(t)*physic.Celsius
		s.Voltage = physic.ElectricPotential(v) * physic.MilliVolt
		s.Current = physic.ElectricCurrent(c) * physic.MilliAmpere
		return nil
	})
	return s, err
}

// Monitor writes a line per sample to a writer.
type Monitor struct {
	dev    *pdsink.Shared
	w      io.Writer
	sep    string
	period time.Duration
	log    *log.Logger
}

// New creates a monitor writing samples of dev to w, one per line.
func New(dev *pdsink.Shared, w io.Writer) *Monitor {
	return &Monitor{
		dev:    dev,
		w:      w,
		sep:    "\n",
		period: DefaultPeriod,
		log:    log.New(io.Discard, "", 0),
	}
}

// SetLineSeparator sets what is written after each sample. Some common values
// are "\n", "\r", "\r\n".
func (m *Monitor) SetLineSeparator(sep string) {
	m.sep = sep
}

// SetPeriod sets the time between samples. Non-positive values are ignored.
func (m *Monitor) SetPeriod(d time.Duration) {
	if d > 0 {
		m.period = d
	}
}

// SetLogger sets the logger failed reads are reported to. Pass nil to discard
// them.
func (m *Monitor) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	m.log = l
}

// Sample takes and writes a single sample.
func (m *Monitor) Sample() (Sample, error) {
	s, err := Read(m.dev)
	if err != nil {
		m.log.Printf("warning: telemetry: %v", err)
		return s, err
	}
	fmt.Fprintf(m.w, "%s%s", s, m.sep)
	return s, nil
}

// Run samples right away and then once every period until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.period)
	defer t.Stop()
	for {
		m.Sample()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
