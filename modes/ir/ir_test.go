package ir

import (
	"context"
	"errors"
	"testing"

	"buspirate-go/pinfabric"
	"buspirate-go/types"
)

type fakeTx struct {
	lastFrame uint32
}

func (f *fakeTx) SendFrame(frame uint32) error { f.lastFrame = frame; return nil }

type fakeRx struct {
	frame uint32
	err   error
}

func (f *fakeRx) RecvFrame(ctx context.Context) (uint32, error) { return f.frame, f.err }

func TestEncodeDecodeRoundTrip(t *testing.T) {
	frame := EncodeFrame(0x04, 0x0a)
	addr, data, ok := DecodeFrame(frame)
	if !ok || addr != 0x04 || data != 0x0a {
		t.Fatalf("DecodeFrame(%#x) = %#x,%#x,%v", frame, addr, data, ok)
	}
}

func TestWriteSendsEncodedFrame(t *testing.T) {
	tx := &fakeTx{}
	b := Builder{Tx: tx, Cfg: types.DefaultIRConfig()}
	d, _ := b.Build()
	var rawPins [types.NumPins]pinfabric.GPIOPin
	pins := pinfabric.New(rawPins, nil, nil, nil)
	d.Setup(pins)
	d.SetupExc()
	defer d.Cleanup(pins)

	out := d.Execute(types.Op{Kind: types.OpWrite, OutData: 0x040a, Repeat: 1}, nil)
	if len(out) != 1 || out[0].Severity != types.SevNone {
		t.Fatalf("out = %+v", out)
	}
	if tx.lastFrame != EncodeFrame(0x04, 0x0a) {
		t.Fatalf("lastFrame = %#x, want %#x", tx.lastFrame, EncodeFrame(0x04, 0x0a))
	}
}

func TestReadDecodesValidFrame(t *testing.T) {
	rx := &fakeRx{frame: EncodeFrame(0x01, 0x02)}
	b := Builder{Rx: rx, Cfg: types.DefaultIRConfig()}
	d, _ := b.Build()
	var rawPins [types.NumPins]pinfabric.GPIOPin
	pins := pinfabric.New(rawPins, nil, nil, nil)
	d.Setup(pins)
	d.SetupExc()
	defer d.Cleanup(pins)

	out := d.Execute(types.Op{Kind: types.OpRead, Repeat: 1}, nil)
	if len(out) != 1 || out[0].Severity != types.SevNone || out[0].InData != 0x0102 {
		t.Fatalf("out = %+v", out)
	}
}

func TestReadTimeoutIsError(t *testing.T) {
	rx := &fakeRx{err: errors.New("no edge")}
	b := Builder{Rx: rx, Cfg: types.DefaultIRConfig()}
	d, _ := b.Build()
	var rawPins [types.NumPins]pinfabric.GPIOPin
	pins := pinfabric.New(rawPins, nil, nil, nil)
	d.Setup(pins)
	d.SetupExc()
	defer d.Cleanup(pins)

	out := d.Execute(types.Op{Kind: types.OpRead, Repeat: 1}, nil)
	if len(out) != 1 || out[0].Severity != types.SevError {
		t.Fatalf("out = %+v, want SevError", out)
	}
}
