package pinfabric

import (
	"testing"
	"time"

	"buspirate-go/errcode"
	"buspirate-go/types"
)

type fakePin struct {
	n       int
	out     bool
	outDir  bool
	pull    types.Pull
}

func (p *fakePin) ConfigureInput(pull types.Pull) error { p.outDir = false; p.pull = pull; return nil }
func (p *fakePin) ConfigureOutput(initial bool) error   { p.outDir = true; p.out = initial; return nil }
func (p *fakePin) Set(level bool)                       { p.out = level }
func (p *fakePin) Get() bool                             { return p.out }
func (p *fakePin) Number() int                           { return p.n }

type fakeMux struct {
	selected types.AnalogChannel
	raw      map[types.AnalogChannel]uint16
	n        int
}

func (m *fakeMux) Select(ch types.AnalogChannel) error { m.selected = ch; return nil }
func (m *fakeMux) SampleRaw() (uint16, error)          { return m.raw[m.selected], nil }
func (m *fakeMux) Scale(types.AnalogChannel) int32     { return 2 }
func (m *fakeMux) NumChannels() int                    { return m.n }

type fakeVreg struct{ state types.VregState }

func (v *fakeVreg) SetState(s types.VregState) error { v.state = s; return nil }

func newTestFabric() (*Fabric, [types.NumPins]*fakePin) {
	var raw [types.NumPins]*fakePin
	var arr [types.NumPins]GPIOPin
	for i := range raw {
		raw[i] = &fakePin{n: i}
		arr[i] = raw[i]
	}
	f := New(arr, &fakeMux{raw: map[types.AnalogChannel]uint16{0: 100, 1: 200}, n: 2}, &fakeVreg{}, &fakeVreg{})
	f.sleep = func(time.Duration) {}
	return f, raw
}

func TestClaimReleaseBalanced(t *testing.T) {
	f, pins := newTestFabric()
	if err := f.Claim(0, "uart", "TX"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := f.Claim(0, "i2c", "SDA"); err != errcode.PinBusy {
		t.Fatalf("second Claim by different purpose = %v, want PinBusy", err)
	}
	if err := f.SetDirection(0, types.DirOutput); err != nil {
		t.Fatalf("SetDirection: %v", err)
	}
	if err := f.SetOutput(0, true); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
	if !pins[0].out {
		t.Fatal("pin 0 not driven high")
	}
	if err := f.Release(0); err != nil {
		t.Fatalf("Release: %v", err)
	}
	st, _ := f.State(0)
	if st.Claimed {
		t.Fatal("pin still claimed after Release")
	}
	if st.Direction != types.DirInput {
		t.Fatalf("pin direction after Release = %v, want input (high-Z)", st.Direction)
	}
}

func TestReadVoltageScalesAndRecords(t *testing.T) {
	f, _ := newTestFabric()
	mv, err := f.ReadVoltage(1)
	if err != nil {
		t.Fatalf("ReadVoltage: %v", err)
	}
	if mv != 400 {
		t.Fatalf("ReadVoltage(1) = %d, want 400 (200*2)", mv)
	}
	samples, err := f.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if samples[0].Millivolts != 200 || samples[1].Millivolts != 400 {
		t.Fatalf("Sweep samples = %+v", samples)
	}
}

func TestSetVregTransitionsDwell(t *testing.T) {
	f, _ := newTestFabric()
	var slept time.Duration
	f.sleep = func(d time.Duration) { slept += d }
	if err := f.SetVreg(types.RegLogic); err != nil {
		t.Fatalf("SetVreg: %v", err)
	}
	if f.VregState() != types.RegLogic {
		t.Fatalf("VregState = %v, want RegLogic", f.VregState())
	}
	if slept == 0 {
		t.Fatal("expected a dwell sleep on off->logic transition")
	}
}

func TestUnknownPinRejected(t *testing.T) {
	f, _ := newTestFabric()
	if err := f.Claim(99, "x", "x"); err != errcode.UnknownPin {
		t.Fatalf("Claim(99,...) = %v, want UnknownPin", err)
	}
}

func TestClampBits(t *testing.T) {
	if v, warn := ClampBits(0); v != 1 || !warn {
		t.Fatalf("ClampBits(0) = %d,%v want 1,true", v, warn)
	}
	if v, warn := ClampBits(40); v != 32 || !warn {
		t.Fatalf("ClampBits(40) = %d,%v want 32,true", v, warn)
	}
	if v, warn := ClampBits(8); v != 8 || warn {
		t.Fatalf("ClampBits(8) = %d,%v want 8,false", v, warn)
	}
}
