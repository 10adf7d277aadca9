package ap33772

import (
	"encoding/binary"
	"errors"
)

// Address is the fixed 7-bit I2C address of the AP33772.
const Address = 0x51

const (
	regPDO      = 0x00 // 7 x 4 byte little-endian PDOs
	regPDONum   = 0x1C
	regStatus   = 0x1D
	regMask     = 0x1E
	regVoltage  = 0x20 // LSB 80mV
	regCurrent  = 0x21 // LSB 24mA
	regTemp     = 0x22 // degrees Celsius
	regOCPThr   = 0x23 // LSB 50mA
	regOTPThr   = 0x24 // degrees Celsius
	regDRThr    = 0x25 // degrees Celsius
	regTRTable  = 0x10 // 8 bytes, written behind the opcode
	regRDO      = 0x30 // 4 byte little-endian RDO, written behind the opcode
	rdoFrameLen = 5

	voltageLSB = 80 // mV
	currentLSB = 24 // mA
	ocpLSB     = 50 // mA

	// MaxOCPThreshold is the highest over-current threshold in milliamps that
	// fits the 8 bit register.
	MaxOCPThreshold = 0xFF * ocpLSB
)

// IRQMask selects which status flags raise the interrupt line. It shares the
// bit layout of pdsink.Status.
type IRQMask uint8

// Interrupt sources.
const (
	IRQReady    IRQMask = 1 << 0
	IRQSuccess  IRQMask = 1 << 1
	IRQNewPDO   IRQMask = 1 << 2
	IRQOVP      IRQMask = 1 << 4
	IRQOCP      IRQMask = 1 << 5
	IRQOTP      IRQMask = 1 << 6
	IRQDerating IRQMask = 1 << 7

	IRQAll = IRQReady | IRQSuccess | IRQNewPDO | IRQOVP | IRQOCP | IRQOTP | IRQDerating // 0xF7
)

// Thresholds are the protection thresholds of the controller.
type Thresholds struct {
	OCP      uint16 // over-current in milliamps, rounded down to 50mA
	OTP      uint8  // over-temperature in degrees Celsius
	Derating uint8  // de-rating temperature in degrees Celsius
}

// ErrThresholdRange is returned when the over-current threshold does not fit
// in its register.
var ErrThresholdRange = errors.New("ap33772: over-current threshold above 12750mA")

// ThermalTable holds the resistance in ohms of the NTC thermistor at 25, 50, 75
// and 100 degrees Celsius.
type ThermalTable [4]uint16

// DefaultThermalTable matches a 10kΩ NTC with B=3435K.
var DefaultThermalTable = ThermalTable{10000, 4161, 1928, 974}

// Bytes returns the table as sent to the controller, each resistance 16 bits
// little-endian.
func (t ThermalTable) Bytes() [8]byte {
	var b [8]byte
	for i, r := range t {
		binary.LittleEndian.PutUint16(b[i*2:], r)
	}
	return b
}

// Config holds the one-time configuration written at start-up.
type Config struct {
	Thresholds Thresholds
	Thermal    ThermalTable
	IRQMask    IRQMask
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Thresholds: Thresholds{
			OCP:      200,
			OTP:      80,
			Derating: 60,
		},
		Thermal: DefaultThermalTable,
		IRQMask: IRQAll,
	}
}
