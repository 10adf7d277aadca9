package pdo

import "fmt"

// RequestDO represents a Request Data Object.
type RequestDO uint32

// EmptyRequestDO requests nothing. Sink controllers treat it as a request to
// drop back to their default contract. Device policy managers return it to
// indicate that they do not accept any of the offered power profiles.
const EmptyRequestDO RequestDO = 0

// NewFixedRequest returns a request for the fixed supply object at position
// pos, drawing current milliamps. The operating and maximum operating current
// fields are both set to current.
func NewFixedRequest(pos uint8, current uint16) RequestDO {
	var o RequestDO
	o.SetSelectedObjectPosition(pos)
	o.SetFixedOperatingCurrent(current)
	o.SetFixedMaxOperatingCurrent(current)
	return o
}

// NewPPSRequest returns a request for the programmable object at position pos
// with the given output voltage in millivolts and current in milliamps.
func NewPPSRequest(pos uint8, voltage, current uint16) RequestDO {
	var o RequestDO
	o.SetSelectedObjectPosition(pos)
	o.SetPPSOutputVoltage(voltage)
	o.SetPPSOutputCurrent(current)
	return o
}

// SelectedObjectPosition returns the position number of the PDO in the source
// capabilities, starting at 1. Bits 30..28.
func (o RequestDO) SelectedObjectPosition() uint8 {
	return uint8((o >> 28) & 0b111)
}

// SetSelectedObjectPosition sets the position number of the PDO in the source
// capabilities, starting at 1.
func (o *RequestDO) SetSelectedObjectPosition(p uint8) {
	*o = (*o & ^(RequestDO(0b111) << 28)) | (RequestDO(p)&0b111)<<28
}

// FixedOperatingCurrent returns current in milliamps for fixed request
// objects. Bits 19..10, LSB 10mA.
func (o RequestDO) FixedOperatingCurrent() uint16 {
	return uint16(((o >> 10) & (1<<10 - 1)) * 10)
}

// SetFixedOperatingCurrent sets current in milliamps rounded down to a
// multiple of 10mA for fixed request objects.
func (o *RequestDO) SetFixedOperatingCurrent(c uint16) {
	*o = (*o & ^((RequestDO(1)<<10 - 1) << 10)) | ((RequestDO(c)/10)&(1<<10-1))<<10
}

// FixedMaxOperatingCurrent returns current in milliamps for fixed request
// objects. Bits 9..0, LSB 10mA.
func (o RequestDO) FixedMaxOperatingCurrent() uint16 {
	return uint16((o & (1<<10 - 1)) * 10)
}

// SetFixedMaxOperatingCurrent sets current in milliamps rounded down to a
// multiple of 10mA for fixed request objects.
func (o *RequestDO) SetFixedMaxOperatingCurrent(c uint16) {
	*o = (*o & ^(RequestDO(1)<<10 - 1)) | ((RequestDO(c) / 10) & (1<<10 - 1))
}

// PPSOutputVoltage returns voltage in millivolts for programmable request
// objects. Bits 19..9, LSB 20mV.
func (o RequestDO) PPSOutputVoltage() uint16 {
	return uint16(((o >> 9) & (1<<11 - 1)) * 20)
}

// SetPPSOutputVoltage sets voltage in millivolts rounded down to a multiple of
// 20mV for programmable request objects.
func (o *RequestDO) SetPPSOutputVoltage(v uint16) {
	*o = (*o & ^((RequestDO(1)<<11 - 1) << 9)) | ((RequestDO(v)/20)&(1<<11-1))<<9
}

// PPSOutputCurrent returns current in milliamps for programmable request
// objects. Bits 6..0, LSB 50mA.
func (o RequestDO) PPSOutputCurrent() uint16 {
	return uint16((o & (1<<7 - 1)) * 50)
}

// SetPPSOutputCurrent sets current in milliamps rounded down to a multiple of
// 50mA for programmable request objects.
func (o *RequestDO) SetPPSOutputCurrent(v uint16) {
	*o = (*o & ^(RequestDO(1)<<7 - 1)) | (RequestDO(v)/50)&(1<<7-1)
}

// Describe returns a textual description of the request as interpreted
// against the object it selects.
func (o RequestDO) Describe(p PDO) string {
	if o == EmptyRequestDO {
		return "empty request"
	}
	pos := o.SelectedObjectPosition()
	switch p.Type() {
	case TypeFixed:
		return fmt.Sprintf("#%d fixed %d mV @ %d mA", pos, p.MaxVoltage(), o.FixedOperatingCurrent())
	case TypePPS:
		return fmt.Sprintf("#%d programmable %d mV @ %d mA", pos, o.PPSOutputVoltage(), o.PPSOutputCurrent())
	default:
		return fmt.Sprintf("#%d raw 0x%08x", pos, uint32(o))
	}
}
