package ap33772

import (
	"encoding/binary"
	"errors"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/oxplot/go-pdsink"
	"github.com/oxplot/go-pdsink/pdo"
)

// pdoBlock returns the 28 byte PDO block holding words in slot order.
func pdoBlock(words ...uint32) []byte {
	b := make([]byte, pdo.TableBytes)
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[i*4:], w)
	}
	return b
}

const (
	fixed5V3A  = 100<<10 | 300                      // 5V 3A
	fixed9V2A  = 180<<10 | 200                      // 9V 2A
	pps3V11V5A = 0xC<<28 | 110<<17 | 33<<8 | 100    // 3.3-11V 5A
	battery    = 0x4000_0000 | 100<<20 | 50<<10 | 1 // unsupported type
)

func playback(ops ...i2ctest.IO) *i2ctest.Playback {
	return &i2ctest.Playback{Ops: ops, DontPanic: true}
}

func closePlayback(t *testing.T, p *i2ctest.Playback) {
	t.Helper()
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateWithoutNewPDOs(t *testing.T) {
	bus := playback(i2ctest.IO{Addr: Address, W: []byte{0x1D}, R: []byte{0x03}})
	d := New(bus)
	s, err := d.Update()
	if err != nil {
		t.Fatal(err)
	}
	if s != pdsink.StatusReady|pdsink.StatusSuccess {
		t.Errorf("status = %v", s)
	}
	if d.Status() != s {
		t.Errorf("cached status = %v", d.Status())
	}
	if d.PDOs().Count() != 0 {
		t.Errorf("table changed without newpdos")
	}
	closePlayback(t, bus)
}

func TestUpdateReadsPDOsWhenReadyAndNew(t *testing.T) {
	bus := playback(
		i2ctest.IO{Addr: Address, W: []byte{0x1D}, R: []byte{0x05}},
		i2ctest.IO{Addr: Address, W: []byte{0x00}, R: pdoBlock(fixed5V3A, battery, pps3V11V5A)},
	)
	d := New(bus)
	s, err := d.Update()
	if err != nil {
		t.Fatal(err)
	}
	if !s.NewPDOs() {
		t.Errorf("status = %v", s)
	}
	tbl := d.PDOs()
	if tbl.At(1).Type() != pdo.TypeFixed || tbl.At(1).MaxCurrent() != 3000 {
		t.Errorf("slot 1 = %v", tbl.At(1))
	}
	if tbl.At(2) != 0 {
		t.Errorf("slot 2 = %v, want absent", tbl.At(2))
	}
	if tbl.At(3).Type() != pdo.TypePPS || tbl.At(3).MaxVoltage() != 11000 {
		t.Errorf("slot 3 = %v", tbl.At(3))
	}
	closePlayback(t, bus)
}

func TestUpdateIgnoresNewPDOsUntilReady(t *testing.T) {
	bus := playback(i2ctest.IO{Addr: Address, W: []byte{0x1D}, R: []byte{0x04}})
	d := New(bus)
	if _, err := d.Update(); err != nil {
		t.Fatal(err)
	}
	closePlayback(t, bus)
}

func TestReadPDOsReplacesTable(t *testing.T) {
	bus := playback(
		i2ctest.IO{Addr: Address, W: []byte{0x00}, R: pdoBlock(fixed5V3A, fixed9V2A)},
		i2ctest.IO{Addr: Address, W: []byte{0x00}, R: pdoBlock(fixed5V3A)},
	)
	d := New(bus)
	if _, err := d.ReadPDOs(); err != nil {
		t.Fatal(err)
	}
	tbl, err := d.ReadPDOs()
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Count() != 1 || tbl.At(2) != 0 {
		t.Errorf("table not replaced: %v", tbl)
	}
	closePlayback(t, bus)
}

func TestTelemetryScaling(t *testing.T) {
	bus := playback(
		i2ctest.IO{Addr: Address, W: []byte{0x20}, R: []byte{63}},
		i2ctest.IO{Addr: Address, W: []byte{0x21}, R: []byte{42}},
		i2ctest.IO{Addr: Address, W: []byte{0x22}, R: []byte{31}},
		i2ctest.IO{Addr: Address, W: []byte{0x1C}, R: []byte{5}},
	)
	d := New(bus)
	if v, err := d.ReadVoltage(); err != nil || v != 5040 {
		t.Errorf("ReadVoltage() = %d, %v", v, err)
	}
	if c, err := d.ReadCurrent(); err != nil || c != 1008 {
		t.Errorf("ReadCurrent() = %d, %v", c, err)
	}
	if tc, err := d.ReadTemp(); err != nil || tc != 31 {
		t.Errorf("ReadTemp() = %d, %v", tc, err)
	}
	if n, err := d.ReadPDOCount(); err != nil || n != 5 {
		t.Errorf("ReadPDOCount() = %d, %v", n, err)
	}
	closePlayback(t, bus)
}

func TestWriteRDO(t *testing.T) {
	rdo := pdo.NewFixedRequest(3, 1500)
	w := uint32(rdo)
	bus := playback(
		i2ctest.IO{Addr: Address, W: []byte{0x30, byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)}},
		i2ctest.IO{Addr: Address, W: []byte{0x30, 0, 0, 0, 0}},
	)
	d := New(bus)
	if err := d.WriteRDO(rdo); err != nil {
		t.Fatal(err)
	}
	if err := d.Reset(); err != nil {
		t.Fatal(err)
	}
	closePlayback(t, bus)
}

func TestConfigure(t *testing.T) {
	bus := playback(
		i2ctest.IO{Addr: Address, W: []byte{0x10, 0x10, 0x27, 0x41, 0x10, 0x88, 0x07, 0xCE, 0x03}},
		i2ctest.IO{Addr: Address, W: []byte{0x1E, 0xF7}},
		i2ctest.IO{Addr: Address, W: []byte{0x23, 4}},
		i2ctest.IO{Addr: Address, W: []byte{0x24, 80}},
		i2ctest.IO{Addr: Address, W: []byte{0x25, 60}},
	)
	d := New(bus)
	if err := d.Configure(DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	closePlayback(t, bus)
}

func TestReadBackConfiguration(t *testing.T) {
	bus := playback(
		i2ctest.IO{Addr: Address, W: []byte{0x1E}, R: []byte{0xF7}},
		i2ctest.IO{Addr: Address, W: []byte{0x23}, R: []byte{4}},
		i2ctest.IO{Addr: Address, W: []byte{0x24}, R: []byte{80}},
		i2ctest.IO{Addr: Address, W: []byte{0x25}, R: []byte{60}},
	)
	d := New(bus)
	if m, err := d.ReadIRQMask(); err != nil || m != IRQAll {
		t.Errorf("ReadIRQMask() = 0x%02x, %v", m, err)
	}
	thr, err := d.ReadThresholds()
	if err != nil {
		t.Fatal(err)
	}
	if thr != DefaultConfig().Thresholds {
		t.Errorf("ReadThresholds() = %+v", thr)
	}
	closePlayback(t, bus)
}

func TestThresholdRange(t *testing.T) {
	bus := playback()
	d := New(bus)
	if err := d.WriteThresholds(Thresholds{OCP: MaxOCPThreshold + 50}); !errors.Is(err, ErrThresholdRange) {
		t.Fatalf("WriteThresholds() = %v", err)
	}
	closePlayback(t, bus)
}

// failingBus fails every transaction.
type failingBus struct{ err error }

func (b failingBus) Tx(addr uint16, w, r []byte) error { return b.err }

func TestTransportErrorsPropagate(t *testing.T) {
	errNack := errors.New("nack")
	d := New(failingBus{errNack})

	_, err := d.Update()
	var te *TransportError
	if !errors.As(err, &te) || te.Op != "read" || te.Reg != 0x1D {
		t.Fatalf("Update() = %v", err)
	}
	if !errors.Is(err, errNack) {
		t.Fatalf("bus error not wrapped: %v", err)
	}
	if err := d.WriteRDO(pdo.NewFixedRequest(1, 100)); !errors.Is(err, errNack) {
		t.Fatalf("WriteRDO() = %v", err)
	}

	// Every configuration write is attempted and reported.
	err = d.Configure(DefaultConfig())
	for _, reg := range []uint8{0x10, 0x1E, 0x23} {
		found := false
		for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
			if errors.As(e, &te) && te.Reg == reg {
				found = true
			}
		}
		if !found {
			t.Errorf("Configure() error misses register 0x%02x: %v", reg, err)
		}
	}
}

func TestSetAddress(t *testing.T) {
	bus := playback(i2ctest.IO{Addr: 0x52, W: []byte{0x1D}, R: []byte{0x01}})
	d := New(bus)
	d.SetAddress(0x52)
	if s, err := d.Update(); err != nil || !s.Ready() {
		t.Fatalf("Update() = %v, %v", s, err)
	}
	closePlayback(t, bus)
}
