// Package ring implements the single-producer/single-consumer byte ring
// queue of spec.md §3: power-of-two capacity so a hardware DMA wrap matches
// the software wrap, a read pointer that never advances past the write
// pointer, and the blocking-add / try-remove / try-peek / available-bytes
// surface the serial transport and mode drivers are built on.
//
// The span/atomic-index design is grounded on x/shmring.Ring: indices are
// atomic.Uint32 so the IRQ-equivalent producer and the pump-equivalent
// consumer can touch them from different goroutines without a mutex, and
// readiness is signalled on the empty->non-empty / full->non-full edges
// only, exactly as x/shmring does.
package ring

import "sync/atomic"

// Ring is a byte-granular SPSC ring of power-of-two capacity.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index, monotonic modulo size
	wr   atomic.Uint32 // producer index, monotonic modulo size

	readable chan struct{} // empty -> non-empty edge, coalesced
	writable chan struct{} // full -> non-full edge, coalesced
}

// New returns a Ring with the given power-of-two capacity (>= 2).
func New(size int) *Ring {
	if size < 2 || size&(size-1) != 0 {
		panic("ring: size must be a power of two >= 2")
	}
	return &Ring{
		buf:      make([]byte, size),
		mask:     uint32(size - 1),
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
	}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

// Cap returns the ring's capacity in bytes.
func (r *Ring) Cap() int { return len(r.buf) }

// Available returns the number of bytes ready for the consumer.
func (r *Ring) Available() int {
	return int(r.wr.Load() - r.rd.Load())
}

// Space returns the number of bytes free for the producer.
func (r *Ring) Space() int {
	return int(r.size() - (r.wr.Load() - r.rd.Load()))
}

// Readable signals the empty->non-empty transition. Always re-check state
// after waking; the notification is coalesced, not counted.
func (r *Ring) Readable() <-chan struct{} { return r.readable }

// Writable signals the full->non-full transition, same caveat as Readable.
func (r *Ring) Writable() <-chan struct{} { return r.writable }

// TryAdd writes as many bytes of p as currently fit, without blocking.
// Returns the number of bytes written.
func (r *Ring) TryAdd(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	size := r.size()
	space := size - (wr - rd)
	if space == 0 {
		return 0
	}
	n := uint32(len(p))
	if n > space {
		n = space
	}
	idx := wr & r.mask
	first := size - idx
	if first > n {
		first = n
	}
	copy(r.buf[idx:idx+first], p[:first])
	if rem := n - first; rem > 0 {
		copy(r.buf[:rem], p[first:n])
	}
	r.commitWrite(wr, rd, n)
	return int(n)
}

// Add blocks (by spinning on the Writable channel) until all of p has been
// written. The spec calls this "blocking add"; on the firmware it reduces
// to "must always fit" from IRQ context (callers there use TryAdd instead).
func (r *Ring) Add(p []byte) {
	for len(p) > 0 {
		n := r.TryAdd(p)
		p = p[n:]
		if len(p) == 0 {
			return
		}
		<-r.Writable()
	}
}

func (r *Ring) commitWrite(wr, rd, n uint32) {
	beforeAvail := wr - rd
	r.wr.Store(wr + n)
	if beforeAvail == 0 && n > 0 {
		select {
		case r.readable <- struct{}{}:
		default:
		}
	}
}

// TryRemove reads as many bytes as are available into dst, without
// blocking. Returns the number of bytes read.
func (r *Ring) TryRemove(dst []byte) int {
	if len(dst) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	size := r.size()
	avail := wr - rd
	if avail == 0 {
		return 0
	}
	n := uint32(len(dst))
	if n > avail {
		n = avail
	}
	idx := rd & r.mask
	first := size - idx
	if first > n {
		first = n
	}
	copy(dst[:first], r.buf[idx:idx+first])
	if rem := n - first; rem > 0 {
		copy(dst[first:n], r.buf[:rem])
	}
	r.commitRead(wr, rd, n)
	return int(n)
}

// TryPeek copies up to len(dst) bytes without advancing the read pointer.
// Returns the number of bytes copied.
func (r *Ring) TryPeek(dst []byte) int {
	if len(dst) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	size := r.size()
	avail := wr - rd
	if avail == 0 {
		return 0
	}
	n := uint32(len(dst))
	if n > avail {
		n = avail
	}
	idx := rd & r.mask
	first := size - idx
	if first > n {
		first = n
	}
	copy(dst[:first], r.buf[idx:idx+first])
	if rem := n - first; rem > 0 {
		copy(dst[first:n], r.buf[:rem])
	}
	return int(n)
}

func (r *Ring) commitRead(wr, rd, n uint32) {
	beforeSpace := r.size() - (wr - rd)
	r.rd.Store(rd + n)
	if beforeSpace == 0 && n > 0 {
		select {
		case r.writable <- struct{}{}:
		default:
		}
	}
}

// AdvanceRead moves the read pointer forward by n bytes, for callers that
// drained bytes via Peek and now want to commit the read without a second
// copy. n must not exceed Available().
func (r *Ring) AdvanceRead(n int) {
	if n <= 0 {
		return
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	avail := wr - rd
	if uint32(n) > avail {
		n = int(avail)
	}
	r.commitRead(wr, rd, uint32(n))
}
