// Package pdo defines types to encode and decode the Power Data Objects and
// Request Data Objects exchanged with a USB-C Power Delivery sink controller.
package pdo

import (
	"encoding/binary"
	"fmt"
)

const (
	// MaxObjects is the maximum number of power data objects a source can
	// advertise, as set by the standard.
	MaxObjects = 7

	// TableBytes is the size of the block holding all power data objects, each
	// 32 bits (4 bytes) little-endian.
	TableBytes = 4 * MaxObjects
)

// PDO is a generic Power Data Object. Based on its type, it should be
// converted to specific PDO type to allow extracting various fields. The zero
// value represents an empty slot.
type PDO uint32

// Type returns the type of the power data object.
func (o PDO) Type() Type {
	switch {
	case o == 0:
		return TypeNone
	case o&0xF000_0000 == 0xC000_0000:
		return TypePPS
	case o&0xC000_0000 == 0:
		return TypeFixed
	default:
		return TypeInvalid
	}
}

// Type represents the type of a power data object.
type Type uint8

// Power data object types. Only fixed supply and programmable power supply
// objects are understood; everything else is reported as TypeInvalid.
const (
	TypeNone Type = iota
	TypeFixed
	TypePPS
	TypeInvalid
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "None"
	case TypeFixed:
		return "Fixed"
	case TypePPS:
		return "Programmable"
	default:
		return "INVALID"
	}
}

// Decode returns w as a PDO if it holds a fixed or programmable object. Empty
// and unknown objects decode to the zero PDO, ie an absent slot.
func Decode(w uint32) PDO {
	switch o := PDO(w); o.Type() {
	case TypeFixed, TypePPS:
		return o
	default:
		return 0
	}
}

// Present returns true if the object holds a fixed or programmable offer.
func (o PDO) Present() bool {
	t := o.Type()
	return t == TypeFixed || t == TypePPS
}

// MinVoltage returns the lowest voltage in millivolts the object offers. For
// fixed objects it equals MaxVoltage.
func (o PDO) MinVoltage() uint16 {
	switch o.Type() {
	case TypeFixed:
		return FixedSupplyPDO(o).Voltage()
	case TypePPS:
		return PPSPDO(o).MinVoltage()
	default:
		return 0
	}
}

// MaxVoltage returns the highest voltage in millivolts the object offers.
func (o PDO) MaxVoltage() uint16 {
	switch o.Type() {
	case TypeFixed:
		return FixedSupplyPDO(o).Voltage()
	case TypePPS:
		return PPSPDO(o).MaxVoltage()
	default:
		return 0
	}
}

// MaxCurrent returns the maximum current in milliamps the object offers.
func (o PDO) MaxCurrent() uint16 {
	switch o.Type() {
	case TypeFixed:
		return FixedSupplyPDO(o).MaxCurrent()
	case TypePPS:
		return PPSPDO(o).MaxCurrent()
	default:
		return 0
	}
}

func (o PDO) String() string {
	switch o.Type() {
	case TypeFixed:
		fs := FixedSupplyPDO(o)
		return fmt.Sprintf("Fixed %.1fV @ max. %.1fA", float32(fs.Voltage())/1000, float32(fs.MaxCurrent())/1000)
	case TypePPS:
		pps := PPSPDO(o)
		minV, maxV, maxC := float32(pps.MinVoltage())/1000, float32(pps.MaxVoltage())/1000, float32(pps.MaxCurrent())/1000
		return fmt.Sprintf("Programmable %.1f-%.1fV @ max. %.1fA", minV, maxV, maxC)
	case TypeNone:
		return "None"
	default:
		return fmt.Sprintf("INVALID (0x%08x)", uint32(o))
	}
}

// FixedSupplyPDO represents a Fixed Supply Power Data Object
type FixedSupplyPDO uint32

// NewFixedSupplyPDO returns a new blank FixedSupplyPDO.
func NewFixedSupplyPDO() FixedSupplyPDO {
	return FixedSupplyPDO(0)
}

// Voltage returns voltage in millivolts. Bits 19..10, LSB 50mV.
func (o FixedSupplyPDO) Voltage() uint16 {
	return uint16(((o >> 10) & (1<<10 - 1)) * 50)
}

// SetVoltage will round the given voltage down to a multiple of 50mV.
func (o *FixedSupplyPDO) SetVoltage(v uint16) {
	*o = (*o & ^((FixedSupplyPDO(1)<<10 - 1) << 10)) | ((FixedSupplyPDO(v)/50)&(1<<10-1))<<10
}

// MaxCurrent returns maximum current in milliamps. Bits 9..0, LSB 10mA.
func (o FixedSupplyPDO) MaxCurrent() uint16 {
	return uint16((o & (1<<10 - 1)) * 10)
}

// SetMaxCurrent will round the given current down to a multiple of 10mA.
func (o *FixedSupplyPDO) SetMaxCurrent(v uint16) {
	*o = (*o & ^(FixedSupplyPDO(1)<<10 - 1)) | (FixedSupplyPDO(v)/10)&(1<<10-1)
}

// PPSPDO represents a Programmable Power Supply Power Data Object
type PPSPDO uint32

// NewPPSPDO returns a new blank programmable power supply power data object.
func NewPPSPDO() PPSPDO {
	return PPSPDO(0b1100) << 28
}

// MinVoltage returns minimum voltage in millivolts. Bits 15..8, LSB 100mV.
func (o PPSPDO) MinVoltage() uint16 {
	return uint16((o>>8)&(1<<8-1)) * 100
}

// SetMinVoltage sets the minimum voltage in millivolts. The voltage will be
// rounded down to a multiple of 100mV.
func (o *PPSPDO) SetMinVoltage(v uint16) {
	*o = (*o & ^((PPSPDO(1)<<8 - 1) << 8)) | PPSPDO((v/100)&(1<<8-1))<<8
}

// MaxVoltage returns maximum voltage in millivolts. Bits 24..17, LSB 100mV.
func (o PPSPDO) MaxVoltage() uint16 {
	return uint16((o>>17)&(1<<8-1)) * 100
}

// SetMaxVoltage sets the maximum voltage in millivolts. The voltage will be
// rounded down to a multiple of 100mV.
func (o *PPSPDO) SetMaxVoltage(v uint16) {
	*o = (*o & ^((PPSPDO(1)<<8 - 1) << 17)) | PPSPDO((v/100)&(1<<8-1))<<17
}

// MaxCurrent returns maximum current in milliamps. Bits 6..0, LSB 50mA.
func (o PPSPDO) MaxCurrent() uint16 {
	return uint16(o&(1<<7-1)) * 50
}

// SetMaxCurrent sets the maximum current in milliamps. The current will be
// rounded down to a multiple of 50mA.
func (o *PPSPDO) SetMaxCurrent(c uint16) {
	*o = (*o & ^(PPSPDO(1)<<7 - 1)) | PPSPDO((c/50)&(1<<7-1))
}

// Table holds the power data objects advertised by the source, in the order
// of their physical slots. Absent slots hold the zero PDO.
type Table [MaxObjects]PDO

// DecodeTable decodes a block of little-endian power data objects. b must
// hold at least TableBytes bytes. Invalid objects are stored as absent.
func DecodeTable(b []byte) Table {
	var t Table
	for i := range t {
		t[i] = Decode(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return t
}

// At returns the object at the 1-based position pos. Out of range positions
// return the zero PDO.
func (t Table) At(pos uint8) PDO {
	if pos < 1 || pos > MaxObjects {
		return 0
	}
	return t[pos-1]
}

// Count returns the number of present objects.
func (t Table) Count() int {
	n := 0
	for _, p := range t {
		if p.Present() {
			n++
		}
	}
	return n
}
