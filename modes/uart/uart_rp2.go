//go:build rp2040 || rp2350

package uart

import (
	"context"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"machine"

	"buspirate-go/types"
)

// rp2Port adapts a *uartx.UART to HardwarePort, grounded directly on
// rp2_resources.go's rp2SerialPort: the same peripheral, wired to
// whichever machine.UART the board's TX/RX pins for this mode select.
type rp2Port struct{ u *uartx.UART }

// NewHardwarePort configures hw on txPin/rxPin at the mode's starting
// baud and returns the HardwarePort modes/uart drives ops through.
func NewHardwarePort(hw *uartx.UART, tx, rx machine.Pin, baud uint32) HardwarePort {
	_ = hw.Configure(uartx.UARTConfig{BaudRate: baud, TX: tx, RX: rx})
	return &rp2Port{u: hw}
}

func (p *rp2Port) Write(b []byte) (int, error) { return p.u.Write(b) }

func (p *rp2Port) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	return p.u.RecvSomeContext(ctx, buf)
}

func (p *rp2Port) SetBaudRate(br uint32) error {
	p.u.SetBaudRate(br)
	return nil
}

func (p *rp2Port) SetFormat(dataBits, stopBits uint8, parity types.Parity) error {
	var par uartx.UARTParity
	switch parity {
	case types.ParityEven:
		par = uartx.ParityEven
	case types.ParityOdd:
		par = uartx.ParityOdd
	default:
		par = uartx.ParityNone
	}
	return p.u.SetFormat(dataBits, stopBits, par)
}
