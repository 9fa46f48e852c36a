// Package onewire implements the Dallas/Maxim 1-Wire protocol: a single
// open-drain data line bit-banged directly through the pin fabric.
//
// Grounded on original_source/lib/arduino-ch32v003-swio/uart.c's
// single-wire trick of sharing one GPIO for both directions of a serial
// protocol (there it's a UART register pair repurposed onto one pin; here
// the same "one line, strict turnaround" idea drives raw bit-bang timing
// instead). Timing constants are the standard 1-Wire slot widths.
package onewire

import (
	"time"

	"buspirate-go/errcode"
	"buspirate-go/modes"
	"buspirate-go/periodic"
	"buspirate-go/pinfabric"
	"buspirate-go/types"
)

const (
	dqPin  = 0
	auxPin = types.NumPins - 1

	resetLow     = 480 * time.Microsecond
	presenceWait = 70 * time.Microsecond
	presenceHold = 410 * time.Microsecond
	writeSlot    = 60 * time.Microsecond
	writeRecover = 10 * time.Microsecond
	readSample   = 15 * time.Microsecond
	readRecover  = 45 * time.Microsecond
)

type driver struct {
	pins  *pinfabric.Fabric
	sleep func(time.Duration)
	cfg   types.OneWireConfig
}

// Builder constructs the driver. Timing is fixed by the protocol; the one
// piece of persisted configuration is whether AUX should drive a strong
// pull-up for parasite-powered slaves during a conversion.
type Builder struct {
	Cfg types.OneWireConfig
}

func (b Builder) Build() (modes.Driver, error) { return &driver{sleep: time.Sleep, cfg: b.Cfg}, nil }

func (d *driver) Name() string { return "onewire" }

func (d *driver) Capabilities() modes.Capability {
	return modes.CapWrite | modes.CapRead | modes.CapStart | modes.CapAuxOut | modes.CapAuxIn | modes.CapADC
}

func (d *driver) DefaultBits() uint32 { return 8 }

func (d *driver) Setup(pins *pinfabric.Fabric) error {
	d.pins = pins
	if err := pins.Claim(dqPin, "onewire", "DQ"); err != nil {
		return err
	}
	if err := pins.Claim(auxPin, "onewire", "AUX"); err != nil {
		pins.Release(dqPin)
		return err
	}
	return nil
}

func (d *driver) SetupExc() error { return nil }

func (d *driver) Cleanup(pins *pinfabric.Fabric) {
	pins.Release(dqPin)
	pins.Release(auxPin)
}

func (d *driver) Execute(op types.Op, out []types.Result) []types.Result {
	n := op.Repeat
	if n == 0 {
		n = 1
	}
	for i := uint32(0); i < n; i++ {
		out = append(out, d.executeOne(op))
	}
	return out
}

func (d *driver) executeOne(op types.Op) types.Result {
	switch op.Kind {
	case types.OpStart:
		return d.reset()
	case types.OpWrite:
		nbits := op.Bits
		if nbits == 0 {
			nbits = 8
		}
		for i := uint32(0); i < nbits; i++ {
			bit := (op.OutData >> i) & 1
			d.writeBit(bit != 0)
		}
		return types.Result{Severity: types.SevNone}
	case types.OpRead:
		nbits := op.Bits
		if nbits == 0 {
			nbits = 8
		}
		var v uint32
		for i := uint32(0); i < nbits; i++ {
			if d.readBit() {
				v |= 1 << i
			}
		}
		return types.Result{InData: v, Severity: types.SevNone}
	case types.OpAuxOut:
		d.pins.SetOutput(auxPin, op.OutData != 0)
		return types.Result{Severity: types.SevNone}
	case types.OpAuxIn:
		v, err := d.pins.ReadInput(auxPin)
		if err != nil {
			return errResult(err)
		}
		in := uint32(0)
		if v {
			in = 1
		}
		return types.Result{InData: in, Severity: types.SevNone}
	case types.OpADC:
		mv, err := d.pins.ReadVoltage(0)
		if err != nil {
			return errResult(err)
		}
		return types.Result{InData: uint32(mv), Severity: types.SevNone}
	default:
		return errResult(errcode.NotSupportedInMode)
	}
}

// Periodic re-asserts AUX as a strong pull-up when StrongPullup is
// enabled, the background half of parasite-power support: a DS18B20-style
// slave mid-conversion needs the line held high between foreground ops,
// not just for the duration of a single write.
func (d *driver) Periodic(svc *periodic.Service) {
	if !d.cfg.StrongPullup {
		return
	}
	svc.Submit(func() {
		d.pins.SetDirection(auxPin, types.DirOutput)
		d.pins.SetOutput(auxPin, true)
	})
}

// reset drives DQ low for the reset pulse, releases it, and samples for
// a presence pulse from the slave.
func (d *driver) reset() types.Result {
	d.pins.SetDirection(dqPin, types.DirOutput)
	d.pins.SetOutput(dqPin, false)
	d.sleep(resetLow)
	d.pins.SetDirection(dqPin, types.DirInput)
	d.sleep(presenceWait)
	present, _ := d.pins.ReadInput(dqPin)
	d.sleep(presenceHold)
	if present {
		return types.Result{Severity: types.SevError, Message: string(errcode.NoAck)}
	}
	return types.Result{Severity: types.SevNone}
}

func (d *driver) writeBit(one bool) {
	d.pins.SetDirection(dqPin, types.DirOutput)
	d.pins.SetOutput(dqPin, false)
	if one {
		d.sleep(2 * time.Microsecond)
		d.pins.SetDirection(dqPin, types.DirInput)
		d.sleep(writeSlot - 2*time.Microsecond)
	} else {
		d.sleep(writeSlot)
		d.pins.SetDirection(dqPin, types.DirInput)
	}
	d.sleep(writeRecover)
}

func (d *driver) readBit() bool {
	d.pins.SetDirection(dqPin, types.DirOutput)
	d.pins.SetOutput(dqPin, false)
	d.sleep(2 * time.Microsecond)
	d.pins.SetDirection(dqPin, types.DirInput)
	d.sleep(readSample)
	v, _ := d.pins.ReadInput(dqPin)
	d.sleep(readRecover)
	return v
}

func errResult(err error) types.Result {
	return types.Result{Severity: types.SevError, Message: err.Error()}
}
