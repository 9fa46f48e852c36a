package i2c

import (
	"testing"

	"buspirate-go/modes"
	"buspirate-go/pinfabric"
	"buspirate-go/types"
)

type fakeBus struct {
	lastAddr uint16
	lastW    []byte
	rdata    []byte
	err      error
}

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	b.lastAddr = addr
	b.lastW = append([]byte(nil), w...)
	if b.err != nil {
		return b.err
	}
	copy(r, b.rdata)
	return nil
}

func newDriver(bus Bus) (modes.Driver, *pinfabric.Fabric) {
	b := Builder{Bus: bus, Cfg: types.DefaultI2CConfig()}
	d, _ := b.Build()
	var rawPins [types.NumPins]pinfabric.GPIOPin
	pins := pinfabric.New(rawPins, nil, nil, nil)
	d.Setup(pins)
	d.SetupExc()
	return d, pins
}

func TestBracketedWriteThenReadIsOneTx(t *testing.T) {
	bus := &fakeBus{rdata: []byte{0x55}}
	d, pins := newDriver(bus)
	defer d.Cleanup(pins)

	var out []types.Result
	out = d.Execute(types.Op{Kind: types.OpStart, Repeat: 1}, out)
	out = d.Execute(types.Op{Kind: types.OpWrite, OutData: 0x40, Bits: 8, Repeat: 1}, out) // address
	out = d.Execute(types.Op{Kind: types.OpWrite, OutData: 0x10, Bits: 8, Repeat: 1}, out) // register
	out = d.Execute(types.Op{Kind: types.OpRead, Bits: 8, Repeat: 1}, out)
	out = d.Execute(types.Op{Kind: types.OpStop, Repeat: 1}, out)

	if bus.lastAddr != 0x20 {
		t.Fatalf("addr = %#x, want 0x20 (0x40>>1)", bus.lastAddr)
	}
	if len(bus.lastW) != 1 || bus.lastW[0] != 0x10 {
		t.Fatalf("w = %v, want [0x10]", bus.lastW)
	}
	// start, addr write, register write, read, stop
	if len(out) != 5 {
		t.Fatalf("len(out) = %d, want 5", len(out))
	}
	read := out[3]
	if read.Severity != types.SevNone || read.InData != 0x55 {
		t.Fatalf("read result = %+v, want InData=0x55", read)
	}
	stop := out[len(out)-1]
	if stop.Severity != types.SevNone {
		t.Fatalf("stop result = %+v, want SevNone", stop)
	}
}

// TestBracketedReadRepeatProducesOneResultPerByte covers the
// [0xa0 0x00 r:4] scenario: a bracket with a 4-byte repeated read must
// surface four independently-valued read results, not a single combined
// value dumped onto STOP.
func TestBracketedReadRepeatProducesOneResultPerByte(t *testing.T) {
	bus := &fakeBus{rdata: []byte{0x11, 0x22, 0x33, 0x44}}
	d, pins := newDriver(bus)
	defer d.Cleanup(pins)

	var out []types.Result
	out = d.Execute(types.Op{Kind: types.OpStart, Repeat: 1}, out)
	out = d.Execute(types.Op{Kind: types.OpWrite, OutData: 0xa0, Bits: 8, Repeat: 1}, out) // address
	out = d.Execute(types.Op{Kind: types.OpWrite, OutData: 0x00, Bits: 8, Repeat: 1}, out) // register
	out = d.Execute(types.Op{Kind: types.OpRead, Bits: 8, Repeat: 4}, out)
	out = d.Execute(types.Op{Kind: types.OpStop, Repeat: 1}, out)

	// start, addr write, register write, 4 reads, stop
	if len(out) != 7 {
		t.Fatalf("len(out) = %d, want 7", len(out))
	}
	want := []uint32{0x11, 0x22, 0x33, 0x44}
	for i, w := range want {
		r := out[3+i]
		if r.Severity != types.SevNone || r.InData != w {
			t.Fatalf("read[%d] = %+v, want InData=%#x", i, r, w)
		}
	}
	if bus.lastAddr != 0x50 {
		t.Fatalf("addr = %#x, want 0x50 (0xa0>>1)", bus.lastAddr)
	}
}

func TestNoAckSurfacesAsError(t *testing.T) {
	bus := &fakeBus{err: errNoAck{}}
	d, pins := newDriver(bus)
	defer d.Cleanup(pins)

	var out []types.Result
	out = d.Execute(types.Op{Kind: types.OpWrite, OutData: 0x40, Bits: 8, Repeat: 1}, out)
	out = d.Execute(types.Op{Kind: types.OpWrite, OutData: 0x01, Bits: 8, Repeat: 1}, out)
	last := out[len(out)-1]
	if last.Severity != types.SevError {
		t.Fatalf("severity = %v, want SevError", last.Severity)
	}
}

// TestNoAckInBracketFailsAllPendingReads checks that a Tx failure at
// STOP backfills every queued read placeholder with an error instead of
// leaving them blank.
func TestNoAckInBracketFailsAllPendingReads(t *testing.T) {
	bus := &fakeBus{err: errNoAck{}}
	d, pins := newDriver(bus)
	defer d.Cleanup(pins)

	var out []types.Result
	out = d.Execute(types.Op{Kind: types.OpStart, Repeat: 1}, out)
	out = d.Execute(types.Op{Kind: types.OpWrite, OutData: 0x40, Bits: 8, Repeat: 1}, out)
	out = d.Execute(types.Op{Kind: types.OpRead, Bits: 8, Repeat: 2}, out)
	out = d.Execute(types.Op{Kind: types.OpStop, Repeat: 1}, out)

	for i, r := range out[2:4] {
		if r.Severity != types.SevError {
			t.Fatalf("read[%d] = %+v, want SevError", i, r)
		}
	}
	if out[len(out)-1].Severity != types.SevError {
		t.Fatalf("stop result = %+v, want SevError", out[len(out)-1])
	}
}

type errNoAck struct{}

func (errNoAck) Error() string { return "nak" }
