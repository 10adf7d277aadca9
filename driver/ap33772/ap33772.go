// Package ap33772 implements a driver for the AP33772 USB PD sink controller
// from Diodes Incorporated.
//
// The AP33772 negotiates with the source on its own; the driver reads the
// status and the offered power objects, sends requests and reads telemetry.
package ap33772

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/oxplot/go-pdsink"
	"github.com/oxplot/go-pdsink/driver"
	"github.com/oxplot/go-pdsink/pdo"
)

// TransportError is returned when a bus transaction fails. Err holds the
// error reported by the bus.
type TransportError struct {
	Op  string // "read" or "write"
	Reg uint8
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ap33772: %s 0x%02x: %v", e.Op, e.Reg, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Device represents an AP33772 on an I2C bus. It is not safe for concurrent
// use; wrap it with pdsink.Share when multiple goroutines need it.
type Device struct {
	port driver.I2C
	addr uint16

	status pdsink.Status
	pdos   pdo.Table

	// Buffer used for tx and rx, defined once here instead to avoid heap
	// allocations in each method used.
	buf [pdo.TableBytes + 1]byte
}

var _ pdsink.Device = (*Device)(nil)

// New creates a new driver for the controller on port.
func New(port driver.I2C) *Device {
	return &Device{
		port: port,
		addr: Address,
	}
}

// SetAddress overrides the 7-bit bus address, for boards behind an address
// translator.
func (d *Device) SetAddress(a uint16) {
	d.addr = a
}

func (d *Device) write(r uint8, data ...byte) error {
	d.buf[0] = r
	n := copy(d.buf[1:], data)
	if err := d.port.Tx(d.addr, d.buf[:n+1], nil); err != nil {
		return &TransportError{Op: "write", Reg: r, Err: err}
	}
	return nil
}

func (d *Device) read(r uint8) (byte, error) {
	d.buf[0] = r
	if err := d.port.Tx(d.addr, d.buf[:1], d.buf[1:2]); err != nil {
		return 0, &TransportError{Op: "read", Reg: r, Err: err}
	}
	return d.buf[1], nil
}

func (d *Device) readMany(r uint8, n int) ([]byte, error) {
	d.buf[0] = r
	if err := d.port.Tx(d.addr, d.buf[:1], d.buf[1:n+1]); err != nil {
		return nil, &TransportError{Op: "read", Reg: r, Err: err}
	}
	return d.buf[1 : n+1], nil
}

// Update reads the status register. When the controller is ready and reports
// new PDOs, the PDO table is refreshed as well. The returned status is the one
// just read, even if refreshing the table fails.
func (d *Device) Update() (pdsink.Status, error) {
	s, err := d.read(regStatus)
	if err != nil {
		return 0, err
	}
	d.status = pdsink.Status(s)
	if d.status.Ready() && d.status.NewPDOs() {
		if _, err := d.ReadPDOs(); err != nil {
			return d.status, err
		}
	}
	return d.status, nil
}

// Status returns the status read by the last Update.
func (d *Device) Status() pdsink.Status {
	return d.status
}

// ReadPDOs reads and decodes all offered power objects and replaces the
// cached table. The controller does not always flag new PDOs on the first
// status read after power-up, so this must be called once at start-up.
func (d *Device) ReadPDOs() (pdo.Table, error) {
	b, err := d.readMany(regPDO, pdo.TableBytes)
	if err != nil {
		return d.pdos, err
	}
	d.pdos = pdo.DecodeTable(b)
	return d.pdos, nil
}

// PDOs returns the table decoded by the last successful read.
func (d *Device) PDOs() pdo.Table {
	return d.pdos
}

// ReadPDOCount returns the number of valid PDOs reported by the controller.
func (d *Device) ReadPDOCount() (uint8, error) {
	return d.read(regPDONum)
}

// ReadVoltage returns the output voltage in millivolts.
func (d *Device) ReadVoltage() (uint16, error) {
	v, err := d.read(regVoltage)
	return uint16(v) * voltageLSB, err
}

// ReadCurrent returns the output current in milliamps.
func (d *Device) ReadCurrent() (uint16, error) {
	c, err := d.read(regCurrent)
	return uint16(c) * currentLSB, err
}

// ReadTemp returns the thermistor temperature in degrees Celsius.
func (d *Device) ReadTemp() (uint8, error) {
	return d.read(regTemp)
}

// ReadIRQMask returns the interrupt mask.
func (d *Device) ReadIRQMask() (IRQMask, error) {
	m, err := d.read(regMask)
	return IRQMask(m), err
}

// WriteIRQMask sets which status flags raise the interrupt line.
func (d *Device) WriteIRQMask(m IRQMask) error {
	return d.write(regMask, byte(m))
}

// WriteThresholds writes the protection thresholds. ErrThresholdRange is
// returned without touching the bus if the over-current threshold is too high.
func (d *Device) WriteThresholds(t Thresholds) error {
	if t.OCP > MaxOCPThreshold {
		return ErrThresholdRange
	}
	if err := d.write(regOCPThr, byte(t.OCP/ocpLSB)); err != nil {
		return err
	}
	if err := d.write(regOTPThr, t.OTP); err != nil {
		return err
	}
	return d.write(regDRThr, t.Derating)
}

// ReadThresholds reads back the protection thresholds. Each register is read
// in its own transaction.
func (d *Device) ReadThresholds() (Thresholds, error) {
	var t Thresholds
	ocp, err := d.read(regOCPThr)
	if err != nil {
		return t, err
	}
	t.OCP = uint16(ocp) * ocpLSB
	if t.OTP, err = d.read(regOTPThr); err != nil {
		return t, err
	}
	t.Derating, err = d.read(regDRThr)
	return t, err
}

// WriteThermalTable writes the thermistor calibration table.
func (d *Device) WriteThermalTable(t ThermalTable) error {
	b := t.Bytes()
	return d.write(regTRTable, b[:]...)
}

// Configure writes the thermal table, the interrupt mask and the thresholds.
// Every write is attempted; the returned error joins all failures.
func (d *Device) Configure(c Config) error {
	return errors.Join(
		d.WriteThermalTable(c.Thermal),
		d.WriteIRQMask(c.IRQMask),
		d.WriteThresholds(c.Thresholds),
	)
}

// WriteRDO sends a request to the source.
func (d *Device) WriteRDO(rdo pdo.RequestDO) error {
	var b [rdoFrameLen - 1]byte
	binary.LittleEndian.PutUint32(b[:], uint32(rdo))
	return d.write(regRDO, b[:]...)
}

// Reset requests nothing, which makes the controller drop the output back to
// its default contract.
func (d *Device) Reset() error {
	return d.WriteRDO(pdo.EmptyRequestDO)
}
