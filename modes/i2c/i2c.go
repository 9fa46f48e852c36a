// Package i2c implements the I2C mode. The bus interface is
// tinygo.org/x/drivers.I2C's Tx(addr, w, r []byte) error, exactly the
// shape the teacher's driversI2C adapter exposes over its bus-owner
// goroutine (services/hal/internal/provider/rp2_resources.go).
//
// START/STOP brackets are I2C-native here: they batch the ops between
// them into a single Tx call instead of issuing per-byte transactions,
// since real I2C controllers don't expose a standalone repeated-start
// primitive the way this op-at-a-time grammar is written. A bracket pair
// with both a write and a read inside becomes one Tx(addr, w, r) call.
//
// Every iteration still produces exactly one types.Result, in program
// order, even though the actual bus.Tx call is deferred to STOP (or to
// the write/read itself outside a bracket): each queued READ/WRITE_READ
// gets a placeholder result appended immediately, and flush backfills it
// in place once the real transaction completes. pending tracks which
// result index holds which slice of the eventual read buffer.
package i2c

import (
	"buspirate-go/errcode"
	"buspirate-go/modes"
	"buspirate-go/periodic"
	"buspirate-go/pinfabric"
	"buspirate-go/types"
)

// Bus is the narrow surface this mode needs, matching drivers.I2C.
type Bus interface {
	Tx(addr uint16, w, r []byte) error
}

const (
	sdaPin = 2
	sclPin = 3
	auxPin = types.NumPins - 1
)

// pendingSlot records that out[idx] is a placeholder awaiting flush: a
// write ack (nbytes 0) or the next nbytes bytes of the read buffer.
type pendingSlot struct {
	idx    int
	nbytes int
}

type driver struct {
	bus  Bus
	cfg  types.I2CConfig
	pins *pinfabric.Fabric

	inBracket bool
	addr      uint16
	addrKnown bool
	wbuf      []byte
	rlen      int
	pending   []pendingSlot
}

// Builder constructs the driver bound to a concrete bus and starting
// config loaded by modecfg.
type Builder struct {
	Bus Bus
	Cfg types.I2CConfig
}

func (b Builder) Build() (modes.Driver, error) { return &driver{bus: b.Bus, cfg: b.Cfg}, nil }

func (d *driver) Name() string { return "i2c" }

func (d *driver) Capabilities() modes.Capability {
	return modes.CapWrite | modes.CapRead | modes.CapWriteRead |
		modes.CapStart | modes.CapStop | modes.CapAuxOut | modes.CapAuxIn | modes.CapADC
}

func (d *driver) DefaultBits() uint32 { return 8 }

func (d *driver) Setup(pins *pinfabric.Fabric) error {
	d.pins = pins
	if err := pins.Claim(sdaPin, "i2c", "SDA"); err != nil {
		return err
	}
	if err := pins.Claim(sclPin, "i2c", "SCL"); err != nil {
		pins.Release(sdaPin)
		return err
	}
	if err := pins.Claim(auxPin, "i2c", "AUX"); err != nil {
		pins.Release(sdaPin)
		pins.Release(sclPin)
		return err
	}
	return nil
}

func (d *driver) SetupExc() error {
	if d.bus == nil {
		return errcode.SetupFailed
	}
	return nil
}

func (d *driver) Cleanup(pins *pinfabric.Fabric) {
	d.resetBracket()
	pins.Release(sdaPin)
	pins.Release(sclPin)
	pins.Release(auxPin)
}

// Periodic is a no-op: I2C is purely master-polled, there's no
// unsolicited RX stream to drain between foreground ops.
func (d *driver) Periodic(svc *periodic.Service) {}

func (d *driver) resetBracket() {
	d.inBracket = false
	d.addrKnown = false
	d.wbuf = nil
	d.rlen = 0
	d.pending = nil
}

func (d *driver) Execute(op types.Op, out []types.Result) []types.Result {
	n := op.Repeat
	if n == 0 {
		n = 1
	}
	for i := uint32(0); i < n; i++ {
		out = d.executeOne(op, out)
	}
	return out
}

func (d *driver) executeOne(op types.Op, out []types.Result) []types.Result {
	switch op.Kind {
	case types.OpStart:
		d.resetBracket()
		d.inBracket = true
		return append(out, types.Result{Severity: types.SevNone})
	case types.OpStop:
		var err error
		out, err = d.flush(out)
		if err != nil {
			out = append(out, types.Result{Severity: types.SevError, Message: string(errcode.NoAck)})
		} else {
			out = append(out, types.Result{Severity: types.SevNone})
		}
		d.resetBracket()
		return out
	case types.OpWrite:
		return d.queueWrite(op, out)
	case types.OpRead:
		idx := len(out)
		out = append(out, types.Result{Severity: types.SevNone})
		nbytes := byteCount(op.Bits)
		d.rlen += nbytes
		d.pending = append(d.pending, pendingSlot{idx: idx, nbytes: nbytes})
		if !d.inBracket {
			out, _ = d.flush(out)
		}
		return out
	case types.OpWriteRead:
		return d.queueWriteRead(op, out)
	case types.OpAuxOut:
		d.pins.SetOutput(auxPin, op.OutData != 0)
		return append(out, types.Result{Severity: types.SevNone})
	case types.OpAuxIn:
		v, err := d.pins.ReadInput(auxPin)
		if err != nil {
			return append(out, errResult(err))
		}
		in := uint32(0)
		if v {
			in = 1
		}
		return append(out, types.Result{InData: in, Severity: types.SevNone})
	case types.OpADC:
		mv, err := d.pins.ReadVoltage(0)
		if err != nil {
			return append(out, errResult(err))
		}
		return append(out, types.Result{InData: uint32(mv), Severity: types.SevNone})
	default:
		return append(out, errResult(errcode.NotSupportedInMode))
	}
}

// appendWrite stages op's data byte(s). The first write of a transaction
// is always the 7-bit address (per Bus Pirate I2C convention, the
// address byte is typed like any other write) and never joins wbuf.
func (d *driver) appendWrite(op types.Op) (learnedAddr bool) {
	if !d.addrKnown {
		d.addr = uint16(op.OutData >> 1)
		d.addrKnown = true
		return true
	}
	nbytes := byteCount(op.Bits)
	for i := 0; i < nbytes; i++ {
		d.wbuf = append(d.wbuf, byte(op.OutData>>(8*uint(nbytes-1-i))))
	}
	return false
}

// queueWrite handles a plain WRITE op: stage the byte(s), register a
// zero-length pending slot so a NoAck error still lands on this op's own
// result, and flush immediately when not inside a START/STOP bracket.
func (d *driver) queueWrite(op types.Op, out []types.Result) []types.Result {
	learned := d.appendWrite(op)
	idx := len(out)
	out = append(out, types.Result{Severity: types.SevNone})
	if learned {
		return out
	}
	d.pending = append(d.pending, pendingSlot{idx: idx, nbytes: 0})
	if !d.inBracket {
		out, _ = d.flush(out)
	}
	return out
}

// queueWriteRead handles a WRITE_READ op: stage the write byte(s) and
// register a pending slot sized for the read half, in one op producing
// exactly one result. An address-learning WriteRead has no write payload
// and no read component, matching queueWrite's address-learn case.
func (d *driver) queueWriteRead(op types.Op, out []types.Result) []types.Result {
	learned := d.appendWrite(op)
	idx := len(out)
	out = append(out, types.Result{Severity: types.SevNone})
	if learned {
		return out
	}
	nbytes := byteCount(op.Bits)
	d.rlen += nbytes
	d.pending = append(d.pending, pendingSlot{idx: idx, nbytes: nbytes})
	if !d.inBracket {
		out, _ = d.flush(out)
	}
	return out
}

// flush runs the accumulated write/read as a single bus.Tx and backfills
// every pending placeholder in out with its real result, in place. out is
// the same backing slice every executeOne call has been appending to, so
// indices recorded earlier in the bracket are still valid here.
func (d *driver) flush(out []types.Result) ([]types.Result, error) {
	if !d.addrKnown {
		d.pending = nil
		return out, nil
	}
	var rbuf []byte
	if d.rlen > 0 {
		rbuf = make([]byte, d.rlen)
	}
	err := d.bus.Tx(d.addr, d.wbuf, rbuf)
	if err != nil {
		for _, p := range d.pending {
			out[p.idx] = types.Result{Severity: types.SevError, Message: string(errcode.NoAck)}
		}
	} else {
		off := 0
		for _, p := range d.pending {
			if p.nbytes == 0 {
				out[p.idx] = types.Result{Severity: types.SevNone}
				continue
			}
			var v uint32
			for _, b := range rbuf[off : off+p.nbytes] {
				v = v<<8 | uint32(b)
			}
			out[p.idx] = types.Result{InData: v, Severity: types.SevNone}
			off += p.nbytes
		}
	}
	d.wbuf = nil
	d.rlen = 0
	d.pending = nil
	return out, err
}

func byteCount(bits uint32) int {
	n := int(bits+7) / 8
	if n < 1 {
		n = 1
	}
	return n
}

func errResult(err error) types.Result {
	return types.Result{Severity: types.SevError, Message: err.Error()}
}
