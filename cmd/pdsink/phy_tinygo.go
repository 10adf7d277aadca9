//go:build tinygo && rp2040

package main

import (
	"context"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"periph.io/x/conn/v3/gpio"

	"github.com/oxplot/go-pdsink/internal/config"
)

const (
	pinPowerEnable = machine.GPIO23
	pinIRQ         = machine.GPIO24
	pinLED         = machine.GPIO25
	pinSDA         = machine.GPIO0
	pinSCL         = machine.GPIO1
	pinDiagTX      = machine.GPIO16
	pinDiagRX      = machine.GPIO17
	diagBaud       = 115200
)

// rp2Pin adapts a machine pin to the periph.io level based interfaces.
type rp2Pin struct {
	p    machine.Pin
	edge chan struct{}
}

func output(p machine.Pin) *rp2Pin {
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.Low()
	return &rp2Pin{p: p}
}

func input(p machine.Pin) (*rp2Pin, error) {
	p.Configure(machine.PinConfig{Mode: machine.PinInput})
	r := &rp2Pin{p: p, edge: make(chan struct{}, 1)}
	err := p.SetInterrupt(machine.PinRising, func(machine.Pin) {
		select {
		case r.edge <- struct{}{}:
		default:
		}
	})
	return r, err
}

func (r *rp2Pin) Out(l gpio.Level) error {
	r.p.Set(bool(l))
	return nil
}

func (r *rp2Pin) Read() gpio.Level {
	return gpio.Level(r.p.Get())
}

func (r *rp2Pin) WaitForEdge(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-r.edge:
		return true
	case <-t.C:
		return false
	}
}

// diagWriter writes to the UART, dropping errors like a console would.
type diagWriter struct{ u *uartx.UART }

func (w diagWriter) Write(b []byte) (int, error) {
	w.u.Write(b)
	return len(b), nil
}

func setup() (*board, error) {
	cfg := config.Default()

	u := uartx.UART0
	_ = u.Configure(uartx.UARTConfig{
		BaudRate: diagBaud,
		TX:       pinDiagTX,
		RX:       pinDiagRX,
	})

	bus := machine.I2C0
	if err := bus.Configure(machine.I2CConfig{
		SDA:       pinSDA,
		SCL:       pinSCL,
		Frequency: 100 * machine.KHz,
	}); err != nil {
		return nil, err
	}

	irq, err := input(pinIRQ)
	if err != nil {
		return nil, err
	}
	return &board{
		cfg:   cfg,
		bus:   bus,
		power: output(pinPowerEnable),
		irq:   irq,
		led:   output(pinLED),
		diag:  diagWriter{u},
		sep:   "\r\n",
		close: func() {},
	}, nil
}

// The firmware runs until reset.
func shutdownContext() (context.Context, context.CancelFunc) {
	return background()
}
