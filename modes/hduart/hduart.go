// Package hduart implements half-duplex UART: a single RXTX line shared
// between transmit and receive, switching direction around each op.
//
// Grounded on original_source/mode/hwhduart.c, whose pin_labels table
// names a single "RXTX" line (plus RST/CTS/RTS housekeeping pins this
// port narrows to just the data line, since CTS/RTS flow control isn't
// modelled by the bytecode grammar). The underlying hardware port is the
// same github.com/jangala-dev/tinygo-uartx surface as modes/uart; what
// differs here is pin bookkeeping, not the wire protocol.
package hduart

import (
	"context"
	"time"

	"buspirate-go/errcode"
	"buspirate-go/modes"
	"buspirate-go/periodic"
	"buspirate-go/pinfabric"
	"buspirate-go/types"
	"buspirate-go/x/conv"
	"buspirate-go/x/fmtx"
)

// HardwarePort mirrors modes/uart.HardwarePort; kept as a separate type
// so this package has no import-time dependency on modes/uart.
type HardwarePort interface {
	Write(p []byte) (int, error)
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
	SetBaudRate(br uint32) error
	SetFormat(dataBits, stopBits uint8, parity types.Parity) error
}

const (
	rxtxPin = 0
	auxPin  = types.NumPins - 1

	readPollTimeout  = 50 * time.Millisecond
	asyncPollTimeout = time.Millisecond
)

type driver struct {
	port HardwarePort
	cfg  types.UARTConfig
	pins *pinfabric.Fabric
}

// Builder constructs the driver bound to a concrete port and config.
type Builder struct {
	Port HardwarePort
	Cfg  types.UARTConfig
}

func (b Builder) Build() (modes.Driver, error) { return &driver{port: b.Port, cfg: b.Cfg}, nil }

func (d *driver) Name() string { return "hduart" }

func (d *driver) Capabilities() modes.Capability {
	return modes.CapWrite | modes.CapRead | modes.CapWriteRead |
		modes.CapStart | modes.CapStop | modes.CapAuxOut | modes.CapAuxIn | modes.CapADC
}

func (d *driver) DefaultBits() uint32 { return 8 }

func (d *driver) Setup(pins *pinfabric.Fabric) error {
	d.pins = pins
	if err := pins.Claim(rxtxPin, "hduart", "RXTX"); err != nil {
		return err
	}
	if err := pins.Claim(auxPin, "hduart", "AUX"); err != nil {
		pins.Release(rxtxPin)
		return err
	}
	return nil
}

func (d *driver) SetupExc() error {
	if d.port == nil {
		return errcode.SetupFailed
	}
	if err := d.port.SetBaudRate(d.cfg.Baud); err != nil {
		return err
	}
	return d.port.SetFormat(d.cfg.DataBits, d.cfg.StopBits, d.cfg.Parity)
}

func (d *driver) Cleanup(pins *pinfabric.Fabric) {
	pins.Release(rxtxPin)
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
	case types.OpWrite:
		d.pins.SetDirection(rxtxPin, types.DirOutput)
		return d.write(op)
	case types.OpRead:
		d.pins.SetDirection(rxtxPin, types.DirInput)
		return d.read(op.Bits)
	case types.OpWriteRead:
		d.pins.SetDirection(rxtxPin, types.DirOutput)
		if r := d.write(op); r.Severity >= types.SevError {
			return r
		}
		d.pins.SetDirection(rxtxPin, types.DirInput)
		return d.read(op.Bits)
	case types.OpStart, types.OpStop:
		return types.Result{Severity: types.SevNone}
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

func (d *driver) write(op types.Op) types.Result {
	nbytes := byteWidth(op.Bits)
	buf := make([]byte, nbytes)
	for i := 0; i < nbytes; i++ {
		buf[nbytes-1-i] = byte(op.OutData >> (8 * uint(i)))
	}
	if _, err := d.port.Write(buf); err != nil {
		return errResult(err)
	}
	return types.Result{Severity: types.SevNone}
}

func (d *driver) read(bits uint32) types.Result {
	nbytes := byteWidth(bits)
	buf := make([]byte, nbytes)
	got := 0
	ctx, cancel := context.WithTimeout(context.Background(), readPollTimeout)
	defer cancel()
	for got < nbytes {
		n, _ := d.port.RecvSomeContext(ctx, buf[got:])
		got += n
		if n == 0 {
			select {
			case <-ctx.Done():
				return types.Result{Severity: types.SevError, Message: string(errcode.ReadTimeout)}
			default:
			}
		}
	}
	var v uint32
	for _, b := range buf {
		v = v<<8 | uint32(b)
	}
	return types.Result{InData: v, Severity: types.SevNone}
}

// Periodic mirrors modes/uart.driver.Periodic: a single-byte non-blocking
// poll, pushed to the terminal when async-print is on. The shared RXTX
// line is switched to input first since the last foreground op may have
// left it driving.
func (d *driver) Periodic(svc *periodic.Service) {
	if !d.cfg.AsyncPrint || d.port == nil {
		return
	}
	svc.Submit(func() {
		d.pins.SetDirection(rxtxPin, types.DirInput)
		var b [1]byte
		ctx, cancel := context.WithTimeout(context.Background(), asyncPollTimeout)
		defer cancel()
		n, _ := d.port.RecvSomeContext(ctx, b[:])
		if n == 0 {
			return
		}
		var hexBuf [8]byte
		fmtx.Printf("ASYNC: 0x%s\n", conv.U32Hex(hexBuf[:], uint32(b[0]))[6:])
	})
}

func byteWidth(bits uint32) int {
	n := int(bits+7) / 8
	if n < 1 {
		n = 1
	}
	return n
}

func errResult(err error) types.Result {
	return types.Result{Severity: types.SevError, Message: err.Error()}
}
