package main

import (
	"bufio"
	"context"
	"errors"
	"os"
	"sync"

	"buspirate-go/transport"
	"buspirate-go/types"
)

// stdioPort adapts the process's stdin/stdout into a transport.Port, the
// host-build stand-in for the UART wire a real board would expose. A
// single goroutine reads from stdin and signals Readable; Write goes
// straight to stdout.
type stdioPort struct {
	readable chan struct{}
	in       *bufio.Reader

	mu      sync.Mutex
	pending []byte
}

func newStdioPort() *stdioPort {
	p := &stdioPort{
		readable: make(chan struct{}, 1),
		in:       bufio.NewReader(os.Stdin),
	}
	go p.pump()
	return p
}

func (p *stdioPort) pump() {
	buf := make([]byte, 256)
	for {
		n, err := p.in.Read(buf)
		if n > 0 {
			p.mu.Lock()
			p.pending = append(p.pending, buf[:n]...)
			p.mu.Unlock()
			select {
			case p.readable <- struct{}{}:
			default:
			}
		}
		if err != nil {
			return
		}
	}
}

func (p *stdioPort) Write(b []byte) (int, error) { return os.Stdout.Write(b) }

func (p *stdioPort) Readable() <-chan struct{} { return p.readable }

func (p *stdioPort) RecvSomeContext(ctx context.Context, b []byte) (int, error) {
	p.mu.Lock()
	empty := len(p.pending) == 0
	p.mu.Unlock()
	if empty {
		select {
		case <-p.readable:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// transportLines is a LineSource that frames the transport's byte stream
// on '\n', the boundary an interactive terminal or a script loader would
// both produce.
type transportLines struct {
	xport *transport.Transport
	buf   []byte
}

func newTransportLines(xport *transport.Transport) *transportLines {
	return &transportLines{xport: xport}
}

func (l *transportLines) NextLine() (string, bool) {
	if i := indexByte(l.buf, '\n'); i >= 0 {
		line := string(l.buf[:i])
		l.buf = l.buf[i+1:]
		return trimCR(line), true
	}

	chunk := make([]byte, 256)
	n := l.xport.Read(chunk)
	if n == 0 {
		return "", false
	}
	l.buf = append(l.buf, chunk[:n]...)
	if i := indexByte(l.buf, '\n'); i >= 0 {
		line := string(l.buf[:i])
		l.buf = l.buf[i+1:]
		return trimCR(line), true
	}
	return "", false
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

func trimCR(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\r' {
		return s[:n-1]
	}
	return s
}

// memVolume is the host stand-in for modecfg.Volume until a FatFs mount is
// wired on the target board; it keeps mode config in memory for the
// lifetime of the process.
type memVolume struct {
	files map[string][]byte
}

func newMemVolume() *memVolume { return &memVolume{files: map[string][]byte{}} }

func (v *memVolume) ReadFile(name string) ([]byte, error) {
	data, ok := v.files[name]
	if !ok {
		return nil, errors.New("modecfg: no such file")
	}
	return data, nil
}

func (v *memVolume) WriteFile(name string, data []byte) error {
	v.files[name] = data
	return nil
}

// loopbackSerial stands in for a wired UART/half-duplex peripheral on a
// host build that has no MCU hardware to bind modes/uart or modes/hduart
// to: writes land directly in a ring the same RecvSomeContext drains from,
// so the mode driver's logic exercises real bytes end to end without a
// board attached.
type loopbackSerial struct {
	mu      sync.Mutex
	buf     []byte
	baud    uint32
	fmtDone bool
}

func (l *loopbackSerial) Write(p []byte) (int, error) {
	l.mu.Lock()
	l.buf = append(l.buf, p...)
	l.mu.Unlock()
	return len(p), nil
}

func (l *loopbackSerial) RecvSomeContext(ctx context.Context, p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := copy(p, l.buf)
	l.buf = l.buf[n:]
	return n, nil
}

func (l *loopbackSerial) SetBaudRate(br uint32) error {
	l.baud = br
	return nil
}

func (l *loopbackSerial) SetFormat(dataBits, stopBits uint8, parity types.Parity) error {
	l.fmtDone = true
	return nil
}

// loopbackI2CBus is a host stand-in for tinygo.org/x/drivers.I2C: it
// always acknowledges and echoes zeroed register data, enough for
// modes/i2c's bracket-transaction logic to run without silicon attached.
type loopbackI2CBus struct{}

func (loopbackI2CBus) Tx(addr uint16, w, r []byte) error {
	for i := range r {
		r[i] = 0
	}
	return nil
}

// loopbackIR stands in for the PIO/PWM carrier hardware modes/ir expects:
// a SendFrame immediately becomes the next RecvFrame, so a write followed
// by a read round-trips through NEC encode/decode on a host build.
type loopbackIR struct {
	mu    sync.Mutex
	frame uint32
	have  bool
}

func (l *loopbackIR) SendFrame(frame uint32) error {
	l.mu.Lock()
	l.frame, l.have = frame, true
	l.mu.Unlock()
	return nil
}

func (l *loopbackIR) RecvFrame(ctx context.Context) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.have {
		return 0, errors.New("ir: no frame received")
	}
	l.have = false
	return l.frame, nil
}
