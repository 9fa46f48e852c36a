// Package uart implements the full-duplex UART mode.
//
// The hardware port shape (Write/RecvSomeContext/SetBaudRate/SetFormat)
// is grounded on the teacher's rp2SerialPort adapter over
// github.com/jangala-dev/tinygo-uartx (services/hal/internal/provider/
// rp2_resources.go): on the MCU build a concrete HardwarePort wraps a
// *uartx.UART the same way rp2SerialPort does; on host builds a fake
// satisfies the same interface for tests.
package uart

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

// HardwarePort is the narrow surface this mode needs from a UART
// peripheral, mirroring rp2SerialPort.
type HardwarePort interface {
	Write(p []byte) (int, error)
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
	SetBaudRate(br uint32) error
	SetFormat(dataBits, stopBits uint8, parity types.Parity) error
}

const (
	txPin  = 0
	rxPin  = 1
	auxPin = types.NumPins - 1

	readPollTimeout  = 50 * time.Millisecond
	asyncPollTimeout = time.Millisecond
)

type driver struct {
	port HardwarePort
	cfg  types.UARTConfig
	pins *pinfabric.Fabric
}

// Builder constructs the driver bound to a concrete port and a starting
// config loaded by modecfg.
type Builder struct {
	Port HardwarePort
	Cfg  types.UARTConfig
}

func (b Builder) Build() (modes.Driver, error) {
	return &driver{port: b.Port, cfg: b.Cfg}, nil
}

func (d *driver) Name() string { return "uart" }

func (d *driver) Capabilities() modes.Capability {
	return modes.CapWrite | modes.CapRead | modes.CapWriteRead |
		modes.CapStart | modes.CapStop | modes.CapAuxOut | modes.CapAuxIn | modes.CapADC
}

func (d *driver) DefaultBits() uint32 { return 8 }

func (d *driver) Setup(pins *pinfabric.Fabric) error {
	d.pins = pins
	if err := pins.Claim(txPin, "uart", "TX"); err != nil {
		return err
	}
	if err := pins.Claim(rxPin, "uart", "RX"); err != nil {
		pins.Release(txPin)
		return err
	}
	if err := pins.Claim(auxPin, "uart", "AUX"); err != nil {
		pins.Release(txPin)
		pins.Release(rxPin)
		return err
	}
	pins.SetDirection(txPin, types.DirOutput)
	pins.SetDirection(rxPin, types.DirInput)
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
	pins.Release(txPin)
	pins.Release(rxPin)
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
		return d.write(op)
	case types.OpRead:
		return d.read(op.Bits)
	case types.OpWriteRead:
		if r := d.write(op); r.Severity >= types.SevError {
			return r
		}
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

// Periodic polls for one unsolicited byte when AsyncPrint is enabled and
// formats it to the terminal, mirroring spec.md §4.4's "periodic is called
// at the async tick; if async-print is enabled and the UART has a byte, it
// is formatted ... and pushed to the TX ring".
func (d *driver) Periodic(svc *periodic.Service) {
	if !d.cfg.AsyncPrint || d.port == nil {
		return
	}
	svc.Submit(func() {
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
