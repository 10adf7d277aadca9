// pdsink negotiates a power profile with the USB PD source through an
// AP33772, gates the output on the contract and reports telemetry.
//
// On Linux it takes a -config flag pointing at a YAML file (see
// internal/config). TinyGo builds for the Raspberry Pi Pico use the built-in
// defaults and write diagnostics to UART0.
package main

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/oxplot/go-pdsink"
	"github.com/oxplot/go-pdsink/control"
	"github.com/oxplot/go-pdsink/dpm"
	"github.com/oxplot/go-pdsink/driver"
	"github.com/oxplot/go-pdsink/driver/ap33772"
	"github.com/oxplot/go-pdsink/indicator"
	"github.com/oxplot/go-pdsink/internal/config"
	"github.com/oxplot/go-pdsink/monitor"
)

// board is what the platform specific setup hands over.
type board struct {
	cfg   *config.Config
	bus   driver.I2C
	power control.Output
	irq   control.IRQ   // nil to poll
	led   indicator.LED // nil without an LED
	diag  io.Writer
	sep   string
	close func()
}

func (b *board) callbacks(e control.Event, s control.Snapshot) {
	switch e {
	case control.EventPowerReady:
		log.Printf("power is on (%v)", s.Status)
	case control.EventPowerNotReady:
		log.Print("power is off")
	}
}

func main() {
	log.SetFlags(0)
	b, err := setup()
	if err != nil {
		log.Fatal(err)
	}
	defer b.close()
	log.SetOutput(b.diag)
	log.Print("starting up")

	cfg := b.cfg
	time.Sleep(cfg.Timing.StartupDelay)

	dev := ap33772.New(b.bus)
	dev.SetAddress(cfg.Bus.Address)
	if _, err := dev.ReadPDOs(); err != nil {
		log.Printf("warning: reading PDOs: %v", err)
	}
	if err := dev.Configure(cfg.DeviceConfig()); err != nil {
		log.Printf("warning: configuring protection: %v", err)
	}
	shared := pdsink.Share(dev)

	logger := log.New(b.diag, "", 0)
	ctl := control.New(shared, b.irq, b.power)
	ctl.SetLogger(logger)
	ctl.SetPollInterval(cfg.Timing.PollInterval)
	ctl.SetCapabilityEvaluator(dpm.NewLogger(b.diag, b.sep, cfg.DPMTarget()))
	ctl.SetEventHandler(control.EventHandlerFunc(b.callbacks))

	mon := monitor.New(shared, b.diag)
	mon.SetLineSeparator(b.sep)
	mon.SetLogger(logger)
	mon.SetPeriod(cfg.Timing.TelemetryPeriod)

	ctx, cancel := shutdownContext()
	defer cancel()

	go mon.Run(ctx)
	if b.led != nil {
		blink := indicator.New(ctl, b.led)
		blink.SetLogger(logger)
		go blink.Run(ctx)
	}
	ctl.Run(ctx)

	if err := ctl.PowerDown(); err != nil {
		log.Printf("warning: power down: %v", err)
	}
}

func background() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}
