package monitor

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oxplot/go-pdsink"
	"github.com/oxplot/go-pdsink/pdo"
)

type fakeDevice struct {
	volt, curr uint16
	temp       uint8
	err        error
	reads      []string
}

func (d *fakeDevice) Update() (pdsink.Status, error) { return 0, nil }
func (d *fakeDevice) ReadPDOs() (pdo.Table, error)   { return pdo.Table{}, nil }
func (d *fakeDevice) PDOs() pdo.Table                { return pdo.Table{} }
func (d *fakeDevice) WriteRDO(pdo.RequestDO) error   { return nil }
func (d *fakeDevice) Reset() error                   { return nil }

func (d *fakeDevice) ReadVoltage() (uint16, error) {
	d.reads = append(d.reads, "volt")
	return d.volt, d.err
}

func (d *fakeDevice) ReadCurrent() (uint16, error) {
	d.reads = append(d.reads, "curr")
	return d.curr, d.err
}

func (d *fakeDevice) ReadTemp() (uint8, error) {
	d.reads = append(d.reads, "temp")
	return d.temp, d.err
}

func TestSampleLine(t *testing.T) {
	dev := &fakeDevice{volt: 5040, curr: 1008, temp: 31}
	var buf bytes.Buffer
	m := New(pdsink.Share(dev), &buf)
	s, err := m.Sample()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "volt: 5040 mV, curr: 1008 mA, temp: 31 degC\n"; got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
	if s.MilliVolts() != 5040 || s.MilliAmps() != 1008 || s.Celsius() != 31 {
		t.Errorf("sample = %+v", s)
	}
	if got := strings.Join(dev.reads, ","); got != "temp,volt,curr" {
		t.Errorf("read order = %s", got)
	}
}

func TestSampleError(t *testing.T) {
	dev := &fakeDevice{err: errors.New("nack")}
	var out, logs bytes.Buffer
	m := New(pdsink.Share(dev), &out)
	m.SetLogger(log.New(&logs, "", 0))
	if _, err := m.Sample(); err == nil {
		t.Fatal("expected error")
	}
	if out.Len() != 0 {
		t.Errorf("sample written on error: %q", out.String())
	}
	if got := logs.String(); got != "warning: telemetry: nack\n" {
		t.Errorf("log = %q", got)
	}
	if len(dev.reads) != 1 {
		t.Errorf("reads after failure: %v", dev.reads)
	}
}

// lockedBuffer is a bytes.Buffer safe for concurrent use.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) lines() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), "\r\n")
}

func TestRun(t *testing.T) {
	var out lockedBuffer
	m := New(pdsink.Share(&fakeDevice{volt: 5000}), &out)
	m.SetLineSeparator("\r\n")
	m.SetPeriod(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for out.lines() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
}
