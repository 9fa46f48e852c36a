// Package transport implements spec.md §4.2: the dual-endpoint serial
// transport between the firmware and the host terminal. One ring carries
// the interactive/script byte stream (the "main" endpoint); a second,
// lower-priority path lets the status bar overlay a redraw onto the same
// physical wire without interleaving mid-line with main output.
//
// The ring plumbing is grounded on ring.Ring. The bounded background
// reader is grounded on services/hal/internal/uartio.Worker.Register: a
// single goroutine blocks on the port's Readable() edge, pulls what is
// available with a bounded context timeout, and feeds it into the RX
// ring without ever blocking the hardware ISR-equivalent path. Status-bar
// redraw requests are grounded on the teacher's bus package: the pump
// goroutine subscribes to a request topic instead of polling a flag.
package transport

import (
	"context"
	"sync"
	"time"

	"buspirate-go/bus"
	"buspirate-go/ring"
)

// Port is the hardware UART the transport pumps bytes across, mirroring
// halcore.UARTPort's surface.
type Port interface {
	Write(p []byte) (int, error)
	Readable() <-chan struct{}
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
}

const (
	rxRingSize  = 1024
	txRingSize  = 1024
	readTimeout = 250 * time.Millisecond
)

// StatusBarTopic is the bus topic a mode or the firmware's tick publishes
// to when the status bar needs to be redrawn out-of-band.
func StatusBarTopic() bus.Topic { return bus.T("transport", "statusbar", "redraw") }

// Transport owns the RX ring, the TX ring, and the status-bar overlay
// arbitration. Exactly one goroutine ("the pump") owns writes to Port; the
// status bar only ever gets a slice of wire time between main writes,
// never mid-write.
type Transport struct {
	port Port

	rx *ring.Ring
	tx *ring.Ring

	mu       sync.Mutex
	overlay  []byte // unused: queued redraws wait in sub's channel instead
	sub      *bus.Subscription
	conn     *bus.Connection
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New builds a Transport over port, optionally wiring status-bar redraw
// requests through b (b may be nil to disable the overlay path entirely).
func New(port Port, b *bus.Bus) *Transport {
	t := &Transport{
		port: port,
		rx:   ring.New(rxRingSize),
		tx:   ring.New(txRingSize),
	}
	if b != nil {
		t.conn = b.NewConnection("transport")
		t.sub = t.conn.Subscribe(StatusBarTopic())
	}
	return t
}

// Start launches the reader goroutine and the write pump. Call Stop to
// tear both down.
func (t *Transport) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.readLoop(cctx)

	t.wg.Add(1)
	go t.writeLoop(cctx)
}

// Stop cancels the background goroutines and waits for them to exit.
func (t *Transport) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	if t.sub != nil {
		t.conn.Disconnect()
	}
}

// readLoop is the RX half, grounded on uartio.Worker.Register: block on
// Readable(), pull with a bounded timeout so shutdown is never starved,
// push everything read straight into the RX ring.
func (t *Transport) readLoop(ctx context.Context) {
	defer t.wg.Done()
	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.port.Readable():
			rctx, rcancel := context.WithTimeout(ctx, readTimeout)
			n, _ := t.port.RecvSomeContext(rctx, buf)
			rcancel()
			if n > 0 {
				t.rx.Add(buf[:n])
			}
		}
	}
}

// writeLoop is the TX half and the overlay arbiter: it drains the main
// TX ring to the wire, and between main writes it checks for a queued
// status-bar redraw and flushes that too. A redraw never preempts a main
// write already in flight because both paths only ever touch the port
// from this single goroutine.
func (t *Transport) writeLoop(ctx context.Context) {
	defer t.wg.Done()
	buf := make([]byte, 256)
	for {
		var ov []byte
		select {
		case <-ctx.Done():
			return
		case <-t.tx.Readable():
		case msg := <-t.overlayReadable():
			// Receiving woke the pump and consumed the redraw; hold it
			// until the main ring has been drained.
			if msg != nil {
				ov, _ = msg.Payload.([]byte)
			}
		}

		for {
			n := t.tx.TryRemove(buf)
			if n == 0 {
				break
			}
			t.port.Write(buf[:n])
		}
		if ov == nil {
			ov = t.takeOverlay()
		}
		if ov != nil {
			t.port.Write(ov)
		}
	}
}

// overlayReadable returns the bus subscription's channel if one is
// wired, or a nil channel (which blocks forever in a select) otherwise.
func (t *Transport) overlayReadable() <-chan *bus.Message {
	if t.sub == nil {
		return nil
	}
	return t.sub.Channel()
}

func (t *Transport) takeOverlay() []byte {
	if t.sub == nil {
		return nil
	}
	select {
	case msg := <-t.sub.Channel():
		if p, ok := msg.Payload.([]byte); ok {
			return p
		}
	default:
	}
	return nil
}

// RequestStatusBarRedraw publishes payload on the overlay topic; the pump
// writes it to the wire the next time it is between main writes.
func (t *Transport) RequestStatusBarRedraw(payload []byte) {
	if t.conn == nil {
		return
	}
	t.conn.Publish(t.conn.NewMessage(StatusBarTopic(), payload))
}

// Write enqueues p on the main TX ring, blocking until all of it fits.
// This is what syntax/executor output goes through.
func (t *Transport) Write(p []byte) {
	t.tx.Add(p)
}

// Read drains up to len(p) bytes already received from the host, without
// blocking. Returns the number of bytes copied.
func (t *Transport) Read(p []byte) int {
	return t.rx.TryRemove(p)
}

// Peek mirrors Read without advancing the RX read pointer.
func (t *Transport) Peek(p []byte) int {
	return t.rx.TryPeek(p)
}

// Readable exposes the RX ring's readiness edge for callers (the syntax
// compiler's line reader) that want to block for input.
func (t *Transport) Readable() <-chan struct{} {
	return t.rx.Readable()
}
