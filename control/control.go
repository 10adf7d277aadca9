// Package control implements the reactive core of a USB PD sink: it follows
// the status of the sink controller and drives the power-enable output.
package control

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/oxplot/go-pdsink"
	"github.com/oxplot/go-pdsink/dpm"
	"github.com/oxplot/go-pdsink/pdo"
)

// DefaultPollInterval is how long Run waits for an interrupt before polling
// the status anyway.
const DefaultPollInterval = time.Second

// State is the state of the controller.
type State uint8

// Controller states.
const (
	StateNegotiating State = iota // waiting for a contract, output off
	StateEnabled                  // contract in place, output on
	StateFaulted                  // protection tripped, output off until renegotiation
)

func (s State) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateEnabled:
		return "enabled"
	case StateFaulted:
		return "faulted"
	default:
		return "INVALID"
	}
}

// Event is a high level event reported to the event handler.
type Event string

const (
	// EventRequested is fired when a new request has been sent to the source.
	EventRequested Event = "requested"

	// EventNoProfile is fired when none of the offered profiles is acceptable.
	// Nothing is requested and the default contract of the source stays in place.
	EventNoProfile Event = "no_profile"

	// EventPowerReady is fired when the output is turned on.
	EventPowerReady Event = "power_ready"

	// EventPowerNotReady is fired when the output is turned off.
	EventPowerNotReady Event = "power_not_ready"

	// EventFault is fired on each status update reporting over-voltage,
	// over-current or over-temperature.
	EventFault Event = "fault"
)

// EventHandler is an interface that wraps the method HandleEvent.
type EventHandler interface {
	// HandleEvent is called from the goroutine running the controller.
	HandleEvent(Event, Snapshot)
}

// EventHandlerFunc is an adapter to allow the use of ordinary functions as
// EventHandler.
type EventHandlerFunc func(Event, Snapshot)

// HandleEvent implements EventHandler interface.
func (f EventHandlerFunc) HandleEvent(e Event, s Snapshot) {
	f(e, s)
}

// IRQ is the interrupt line of the sink controller. It is active high.
// periph.io gpio.PinIn satisfies it.
type IRQ interface {
	Read() gpio.Level
	WaitForEdge(timeout time.Duration) bool
}

// Output is the power-enable switch. periph.io gpio.PinOut satisfies it.
type Output interface {
	Out(l gpio.Level) error
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	State        State
	Status       pdsink.Status // last status read
	PowerEnabled bool          // level last written to the output
	Request      pdo.RequestDO // last request sent to the source
}

// Controller drives the power-enable output from the status of the sink
// controller. The output is turned on once a contract succeeds and
// off as soon as a protection flag is seen.
type Controller struct {
	dev  *pdsink.Shared
	irq  IRQ
	out  Output
	poll time.Duration
	log  *log.Logger

	// Only accessed by the goroutine calling Step.
	booted  bool // initial PDO read done
	pending bool // profile must be (re)selected and requested

	mu   sync.Mutex
	snap Snapshot

	callbacks struct {
		mu           sync.Mutex
		capEvaluator dpm.CapabilityEvaluator
		eventHandler EventHandler
	}
}

// New creates a controller for the shared device. irq may be nil, in which
// case the status is polled.
func New(dev *pdsink.Shared, irq IRQ, out Output) *Controller {
	return &Controller{
		dev:     dev,
		irq:     irq,
		out:     out,
		poll:    DefaultPollInterval,
		log:     log.New(io.Discard, "", 0),
		pending: true,
	}
}

// SetCapabilityEvaluator sets the evaluator used to pick a profile. Passing
// nil results in nothing ever being requested.
func (c *Controller) SetCapabilityEvaluator(ce dpm.CapabilityEvaluator) {
	c.callbacks.mu.Lock()
	c.callbacks.capEvaluator = ce
	c.callbacks.mu.Unlock()
}

// SetEventHandler sets the event handler to send events to. Pass nil to remove
// the existing handler.
func (c *Controller) SetEventHandler(e EventHandler) {
	c.callbacks.mu.Lock()
	c.callbacks.eventHandler = e
	c.callbacks.mu.Unlock()
}

// SetLogger sets the logger for diagnostics. Pass nil to discard them.
func (c *Controller) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	c.log = l
}

// SetPollInterval sets how long Run waits for an interrupt before polling.
// Non-positive values are ignored.
func (c *Controller) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.poll = d
	}
}

// Snapshot returns the current state. It may be called from any goroutine.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// PowerEnabled returns the level last written to the power-enable output.
func (c *Controller) PowerEnabled() bool {
	return c.Snapshot().PowerEnabled
}

func (c *Controller) evalCaps(pdos []pdo.PDO) pdo.RequestDO {
	c.callbacks.mu.Lock()
	defer c.callbacks.mu.Unlock()
	if c.callbacks.capEvaluator != nil {
		return c.callbacks.capEvaluator.EvaluateCapabilities(pdos)
	}
	return pdo.EmptyRequestDO
}

func (c *Controller) notifyEvent(e Event) {
	s := c.Snapshot()
	c.callbacks.mu.Lock()
	defer c.callbacks.mu.Unlock()
	if c.callbacks.eventHandler != nil {
		c.callbacks.eventHandler.HandleEvent(e, s)
	}
}

// setOutput drives the output and records the level. Returns true if the
// level changed.
func (c *Controller) setOutput(on bool) bool {
	l := gpio.Low
	if on {
		l = gpio.High
	}
	if err := c.out.Out(l); err != nil {
		c.log.Printf("warning: power-enable output: %v", err)
	}
	c.mu.Lock()
	changed := c.snap.PowerEnabled != on
	c.snap.PowerEnabled = on
	c.mu.Unlock()
	return changed
}

func (c *Controller) setState(s State, st pdsink.Status) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.snap.State
	c.snap.State = s
	c.snap.Status = st
	return prev
}

// Step reads the status once and applies it:
//
//   - any protection flag turns the output off and enters StateFaulted;
//   - otherwise, on the first step or when the source advertised new PDOs,
//     a profile is selected and requested and StateNegotiating is entered
//     with the output off;
//   - otherwise a ready and successful contract turns the output on, unless
//     faulted. StateFaulted is only left through renegotiation.
//
// Bus errors leave the state and the output untouched and make Step return
// false. Step must not be called concurrently with itself or Run.
func (c *Controller) Step() bool {
	var (
		st          pdsink.Status
		rdo         pdo.RequestDO
		renegotiate bool
	)
	err := c.dev.Do(func(d pdsink.Device) error {
		var err error
		if st, err = d.Update(); err != nil {
			return err
		}
		if !c.booted {
			if _, err = d.ReadPDOs(); err != nil {
				return err
			}
			c.booted = true
		}
		if st.NewPDOs() {
			c.pending = true
		}
		if st.Fault() || !c.pending {
			return nil
		}
		renegotiate = true
		pdos := d.PDOs()
		if rdo = c.evalCaps(pdos[:]); rdo == pdo.EmptyRequestDO {
			return nil
		}
		return d.WriteRDO(rdo)
	})
	if err != nil {
		c.log.Printf("warning: status update: %v", err)
		return false
	}
	c.log.Printf("status: 0b%08b (%v)", uint8(st), st)

	switch {
	case st.Fault():
		c.setState(StateFaulted, st)
		c.log.Printf("fault %v, disabling output", st&pdsink.StatusFault)
		off := c.setOutput(false)
		c.notifyEvent(EventFault)
		if off {
			c.notifyEvent(EventPowerNotReady)
		}

	case renegotiate:
		c.pending = false
		c.setState(StateNegotiating, st)
		off := c.setOutput(false)
		if off {
			c.notifyEvent(EventPowerNotReady)
		}
		if rdo == pdo.EmptyRequestDO {
			c.log.Print("no compatible profile")
			c.notifyEvent(EventNoProfile)
			return true
		}
		c.mu.Lock()
		c.snap.Request = rdo
		c.mu.Unlock()
		c.log.Printf("requested 0x%08x", uint32(rdo))
		c.notifyEvent(EventRequested)

	case st.Ready() && st.Success() && c.Snapshot().State != StateFaulted:
		c.setState(StateEnabled, st)
		if c.setOutput(true) {
			c.log.Print("enabling output")
			c.notifyEvent(EventPowerReady)
		}

	default:
		c.mu.Lock()
		c.snap.Status = st
		c.mu.Unlock()
	}
	return true
}

// PowerDown turns the output off and requests nothing from the source, which
// drops the contract back to its default. The next Step selects and requests
// a profile again. Like Step, it must not be called while Run is in progress.
func (c *Controller) PowerDown() error {
	off := c.setOutput(false)
	c.setState(StateNegotiating, c.Snapshot().Status)
	if off {
		c.notifyEvent(EventPowerNotReady)
	}
	c.pending = true
	return c.dev.Do(func(d pdsink.Device) error {
		return d.Reset()
	})
}

// Run steps the controller every time the interrupt line rises, and at least
// once per poll interval. The first step happens immediately. Run blocks
// until ctx is done. Only one call to Run must be in progress at any given
// time.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		ok := c.Step()
		c.wait(ctx, ok)
	}
}

// wait returns right away when the last step succeeded and the interrupt line
// is still asserted. A failed step always waits for an edge or the poll
// interval.
func (c *Controller) wait(ctx context.Context, ok bool) {
	if c.irq == nil {
		t := time.NewTimer(c.poll)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		return
	}
	if ok && c.irq.Read() == gpio.High {
		return
	}
	c.irq.WaitForEdge(c.poll)
}
