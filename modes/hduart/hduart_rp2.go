//go:build rp2040 || rp2350

package hduart

import (
	"context"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"machine"

	"buspirate-go/types"
)

// rp2Port reuses the same uartx.UART surface as modes/uart's rp2 adapter;
// half-duplex here means TX and RX share one machine.Pin when Configure
// is called, not a different peripheral type.
type rp2Port struct{ u *uartx.UART }

// NewHardwarePort configures hw with rxtx as both TX and RX at baud.
func NewHardwarePort(hw *uartx.UART, rxtx machine.Pin, baud uint32) HardwarePort {
	_ = hw.Configure(uartx.UARTConfig{BaudRate: baud, TX: rxtx, RX: rxtx})
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
