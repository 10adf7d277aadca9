//go:build !tinygo

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/oxplot/go-pdsink/internal/config"
)

var configPath = flag.String("config", "", "path to the YAML configuration, defaults are used if empty")

func loadConfig() (*config.Config, error) {
	flag.Parse()
	if *configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

func pin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("no such pin %q", name)
	}
	return p, nil
}

func setup() (*board, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if _, err := host.Init(); err != nil {
		return nil, err
	}

	bus, err := i2creg.Open(cfg.Bus.Name)
	if err != nil {
		return nil, err
	}
	if cfg.Bus.SpeedHz > 0 {
		if err := bus.SetSpeed(physic.Frequency(cfg.Bus.SpeedHz) * physic.Hertz); err != nil {
			bus.Close()
			return nil, err
		}
	}
	b := &board{
		cfg:   cfg,
		bus:   bus,
		diag:  os.Stdout,
		sep:   "\n",
		close: func() { bus.Close() },
	}

	pwr, err := pin(cfg.Pins.PowerEnable)
	if err == nil {
		err = pwr.Out(gpio.Low)
	}
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("power enable: %w", err)
	}
	b.power = pwr

	if cfg.Pins.IRQ != "" {
		irq, err := pin(cfg.Pins.IRQ)
		if err == nil {
			err = irq.In(gpio.PullNoChange, gpio.RisingEdge)
		}
		if err != nil {
			bus.Close()
			return nil, fmt.Errorf("irq: %w", err)
		}
		b.irq = irq
	}

	if cfg.Pins.LED != "" {
		led, err := pin(cfg.Pins.LED)
		if err == nil {
			err = led.Out(gpio.Low)
		}
		if err != nil {
			bus.Close()
			return nil, fmt.Errorf("led: %w", err)
		}
		b.led = led
	}
	return b, nil
}

// shutdownContext is cancelled on SIGINT so the output can be turned off
// before exiting.
func shutdownContext() (context.Context, context.CancelFunc) {
	ctx, cancel := background()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	return ctx, func() {
		stop()
		cancel()
	}
}
