// Package pdsink defines high level interfaces and types for controlling a
// USB Power Delivery sink built around a stand-alone PD sink controller IC
// such as the AP33772.
package pdsink

import (
	"strings"
	"sync"

	"github.com/oxplot/go-pdsink/pdo"
)

// Status is the set of flags reported by the sink controller status register.
type Status uint8

// Status flags. Bit 3 is unused.
const (
	StatusReady    Status = 1 << 0 // controller finished start-up; other flags are valid
	StatusSuccess  Status = 1 << 1 // last request was accepted by the source
	StatusNewPDOs  Status = 1 << 2 // source advertised a new set of PDOs
	StatusOVP      Status = 1 << 4 // over-voltage protection tripped
	StatusOCP      Status = 1 << 5 // over-current protection tripped
	StatusOTP      Status = 1 << 6 // over-temperature protection tripped
	StatusDerating Status = 1 << 7 // temperature above the de-rating threshold
)

// StatusFault holds every flag that must cut output power.
const StatusFault = StatusOVP | StatusOCP | StatusOTP

// Has returns true if all flags in v are set.
func (s Status) Has(v Status) bool {
	return s&v == v
}

// Flag accessors, one per status bit.
func (s Status) Ready() bool    { return s.Has(StatusReady) }
func (s Status) Success() bool  { return s.Has(StatusSuccess) }
func (s Status) NewPDOs() bool  { return s.Has(StatusNewPDOs) }
func (s Status) OVP() bool      { return s.Has(StatusOVP) }
func (s Status) OCP() bool      { return s.Has(StatusOCP) }
func (s Status) OTP() bool      { return s.Has(StatusOTP) }
func (s Status) Derating() bool { return s.Has(StatusDerating) }

// Fault returns true if any of the over-voltage, over-current or
// over-temperature flags is set.
func (s Status) Fault() bool {
	return s&StatusFault != 0
}

var statusNames = [...]struct {
	s    Status
	name string
}{
	{StatusReady, "Ready"},
	{StatusSuccess, "Success"},
	{StatusNewPDOs, "NewPDOs"},
	{StatusOVP, "OVP"},
	{StatusOCP, "OCP"},
	{StatusOTP, "OTP"},
	{StatusDerating, "Derating"},
}

func (s Status) String() string {
	if s == 0 {
		return "None"
	}
	var b strings.Builder
	for _, n := range statusNames {
		if s&n.s == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('|')
		}
		b.WriteString(n.name)
	}
	if b.Len() == 0 {
		return "INVALID"
	}
	return b.String()
}

// PortController provides the operations the control loop needs from a sink
// controller. The controller performs the PD negotiation itself; the
// implementer only relays status, offered power objects and requests.
type PortController interface {

	// Update reads the status register. If the controller is ready and reports
	// new PDOs, the PDO table is read again before Update returns.
	Update() (Status, error)

	// ReadPDOs unconditionally reads and decodes the offered power objects.
	ReadPDOs() (pdo.Table, error)

	// PDOs returns the power objects decoded by the last Update or ReadPDOs.
	PDOs() pdo.Table

	// WriteRDO requests the given profile from the source.
	WriteRDO(pdo.RequestDO) error

	// Reset requests nothing, dropping the contract back to the default.
	Reset() error
}

// Telemetry provides measurements of the sink output.
type Telemetry interface {
	ReadVoltage() (uint16, error) // millivolts
	ReadCurrent() (uint16, error) // milliamps
	ReadTemp() (uint8, error)     // degrees Celsius
}

// Device is a sink controller with telemetry.
type Device interface {
	PortController
	Telemetry
}

// Shared serializes access to a Device used from multiple goroutines. All
// reads and writes of the device, including its cached status and PDO table,
// must happen inside Do.
type Shared struct {
	mu  sync.Mutex
	dev Device
}

// Share returns a Shared owning d. d must not be used directly afterwards.
func Share(d Device) *Shared {
	return &Shared{dev: d}
}

// Do calls f with exclusive access to the device and returns its error. The
// lock is released when f returns, including when it panics.
func (s *Shared) Do(f func(Device) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return f(s.dev)
}
