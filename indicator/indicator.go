// Package indicator blinks a status LED to show whether the output is
// powered.
package indicator

import (
	"context"
	"io"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// StateSource reports whether the power-enable output is on.
// *control.Controller satisfies it.
type StateSource interface {
	PowerEnabled() bool
}

// LED is the indicator output. periph.io gpio.PinOut satisfies it.
type LED interface {
	Out(l gpio.Level) error
}

// Cadence returns how long the LED stays on and off in one blink: mostly on
// while the output is powered, mostly off otherwise.
func Cadence(powered bool) (on, off time.Duration) {
	if powered {
		return time.Second, 100 * time.Millisecond
	}
	return 100 * time.Millisecond, time.Second
}

// Blinker drives an LED from a StateSource.
type Blinker struct {
	src StateSource
	led LED
	log *log.Logger
}

// New creates a blinker. It never writes anything but led.
func New(src StateSource, led LED) *Blinker {
	return &Blinker{src: src, led: led, log: log.New(io.Discard, "", 0)}
}

// SetLogger sets the logger LED write failures are reported to. Pass nil to
// discard them.
func (b *Blinker) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	b.log = l
}

func (b *Blinker) set(l gpio.Level) {
	if err := b.led.Out(l); err != nil {
		b.log.Printf("warning: led: %v", err)
	}
}

// Run blinks the LED until ctx is done, leaving it off. The state is sampled
// once per blink.
func (b *Blinker) Run(ctx context.Context) {
	defer b.set(gpio.Low)
	for {
		on, off := Cadence(b.src.PowerEnabled())
		b.set(gpio.High)
		if !sleep(ctx, on) {
			return
		}
		b.set(gpio.Low)
		if !sleep(ctx, off) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
