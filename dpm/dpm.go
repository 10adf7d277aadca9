// Package dpm implements the device policy manager that picks which of the
// offered power profiles to request.
package dpm

import (
	"errors"
	"fmt"
	"io"

	"github.com/oxplot/go-pdsink/pdo"
)

// CapabilityEvaluator is an interface that wraps the method
// EvaluateCapabilities.
type CapabilityEvaluator interface {
	// EvaluateCapabilities is called every time the offered power objects may
	// have changed. The slice holds the objects in slot order; absent slots are
	// zero. If no PDO is acceptable, EvaluateCapabilities must return
	// pdo.EmptyRequestDO.
	//
	// The passed slice must not be stored past the call to this method.
	EvaluateCapabilities([]pdo.PDO) pdo.RequestDO
}

// CapabilityEvaluatorFunc is an adapter to allow the use of ordinary functions
// as CapabilityEvaluator.
type CapabilityEvaluatorFunc func([]pdo.PDO) pdo.RequestDO

// EvaluateCapabilities implements CapabilityEvaluator interface.
func (f CapabilityEvaluatorFunc) EvaluateCapabilities(pdos []pdo.PDO) pdo.RequestDO {
	return f(pdos)
}

// Target defines the operating point the sink wants. Any fixed or
// programmable profile whose voltage range overlaps [MinVoltage, MaxVoltage]
// and which can supply at least MinCurrent is acceptable.
//
// Programmable profiles are preferred over fixed ones, and among profiles of
// the same kind the one with the highest maximum current wins. Ties keep the
// lower position.
type Target struct {

	// Nominal voltage in millivolts requested from programmable profiles. It
	// is clamped to [MinVoltage, MaxVoltage].
	Voltage uint16

	// Accepted voltage range in millivolts.
	MinVoltage uint16
	MaxVoltage uint16

	// Nominal current in milliamps to request. The request is lowered to the
	// maximum current of the selected profile if needed.
	Current uint16

	// Minimum current in milliamps a profile must be able to supply.
	MinCurrent uint16
}

const (
	maxPPSVoltage = (1<<11 - 1) * 20 // mV, width of the request voltage field
	maxPPSCurrent = (1<<7 - 1) * 50  // mA, width of the request current field
)

var (
	errBadVoltage            = errors.New("dpm: max voltage must be > 0 and voltages <= 40940 mV")
	errBadCurrent            = errors.New("dpm: current must be <= 6350 mA")
	errMaxVoltageLessThanMin = errors.New("dpm: max voltage must be >= min voltage")
	errCurrentLessThanMin    = errors.New("dpm: current must be >= min current")
)

// Validate returns an error if the target parameters are invalid.
func (t Target) Validate() error {
	if t.MaxVoltage == 0 || t.Voltage > maxPPSVoltage || t.MaxVoltage > maxPPSVoltage {
		return errBadVoltage
	}
	if t.Current > maxPPSCurrent {
		return errBadCurrent
	}
	if t.MinVoltage > t.MaxVoltage {
		return errMaxVoltageLessThanMin
	}
	if t.MinCurrent > t.Current {
		return errCurrentLessThanMin
	}
	return nil
}

// Compatible returns true if p overlaps the target voltage range and can
// supply the minimum current.
func (t Target) Compatible(p pdo.PDO) bool {
	if !p.Present() {
		return false
	}
	return t.MinVoltage <= p.MaxVoltage() && p.MinVoltage() <= t.MaxVoltage && p.MaxCurrent() >= t.MinCurrent
}

// better reports whether candidate replaces the current best.
func better(candidate, best pdo.PDO) bool {
	switch {
	case best == 0:
		return true
	case candidate.Type() == pdo.TypePPS && best.Type() == pdo.TypeFixed:
		return true
	case candidate.Type() == best.Type():
		return candidate.MaxCurrent() > best.MaxCurrent()
	default: // fixed never replaces programmable
		return false
	}
}

// Select picks the best compatible profile in pdos and returns its 1-based
// position together with the request for it. ok is false if no profile is
// compatible, in which case nothing should be requested.
func (t Target) Select(pdos []pdo.PDO) (pos uint8, rdo pdo.RequestDO, ok bool) {
	var best pdo.PDO
	for i, p := range pdos {
		if i >= pdo.MaxObjects {
			break
		}
		if t.Compatible(p) && better(p, best) {
			best = p
			pos = uint8(i) + 1
		}
	}
	if best == 0 {
		return 0, pdo.EmptyRequestDO, false
	}
	cur := min(t.Current, best.MaxCurrent())
	switch best.Type() {
	case pdo.TypePPS:
		v := max(min(t.Voltage, t.MaxVoltage), t.MinVoltage)
		rdo = pdo.NewPPSRequest(pos, v, cur)
	default:
		rdo = pdo.NewFixedRequest(pos, cur)
	}
	return pos, rdo, true
}

// EvaluateCapabilities implements CapabilityEvaluator.
func (t Target) EvaluateCapabilities(pdos []pdo.PDO) pdo.RequestDO {
	_, rdo, _ := t.Select(pdos)
	return rdo
}

// Logger is a passthrough evaluator that writes a textual description of the
// offered profiles to a given io.Writer. It's mostly used for diagnostics.
type Logger struct {
	w    io.Writer
	sep  string
	base CapabilityEvaluator
}

// NewLogger creates a new logger which will write to the given writer and
// optionally passes through the evaluate calls. If no base is provided,
// EvaluateCapabilities always returns pdo.EmptyRequestDO. Line separator is
// written to the writer after each line of output. Some common values are
// "\n", "\r", "\r\n".
func NewLogger(w io.Writer, lineSep string, base CapabilityEvaluator) *Logger {
	return &Logger{
		w:    w,
		sep:  lineSep,
		base: base,
	}
}

// EvaluateCapabilities writes out the textual description of the provided
// power data objects, passes them down to the underlying evaluator and
// returns its response.
func (l *Logger) EvaluateCapabilities(pdos []pdo.PDO) pdo.RequestDO {
	n := 0
	for _, p := range pdos {
		if p.Present() {
			n++
		}
	}
	fmt.Fprintf(l.w, "Received %d profiles:%s", n, l.sep)
	for i, p := range pdos {
		if p.Present() {
			fmt.Fprintf(l.w, "  %d) %s%s", i+1, p, l.sep)
		}
	}
	if l.base == nil {
		return pdo.EmptyRequestDO
	}
	rdo := l.base.EvaluateCapabilities(pdos)
	if rdo == pdo.EmptyRequestDO {
		fmt.Fprintf(l.w, "No compatible profile%s", l.sep)
	} else if pos := rdo.SelectedObjectPosition(); pos >= 1 && int(pos) <= len(pdos) {
		fmt.Fprintf(l.w, "Requesting %s%s", rdo.Describe(pdos[pos-1]), l.sep)
	}
	return rdo
}
