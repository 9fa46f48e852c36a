package ring

import "testing"

func TestRoundTripAcrossWrap(t *testing.T) {
	r := New(64)
	const N = 2000
	src := make([]byte, N)
	for i := range src {
		src[i] = byte(i)
	}

	p := src
	dst := make([]byte, N)
	off := 0
	for off < N {
		if len(p) > 0 {
			step := 7
			if step > len(p) {
				step = len(p)
			}
			n := r.TryAdd(p[:step])
			p = p[n:]
		}
		var tmp [17]byte
		n := r.TryRemove(tmp[:])
		if n > 0 {
			copy(dst[off:], tmp[:n])
			off += n
		}
	}

	for i := 0; i < N; i++ {
		if dst[i] != src[i] {
			t.Fatalf("dequeue order diverged at %d: got=%d want=%d", i, dst[i], src[i])
		}
	}
}

func TestReadableWritableEdges(t *testing.T) {
	r := New(8)
	select {
	case <-r.Readable():
		t.Fatal("unexpected Readable on empty ring")
	default:
	}
	if n := r.TryAdd([]byte{1, 2, 3}); n != 3 {
		t.Fatalf("TryAdd = %d, want 3", n)
	}
	select {
	case <-r.Readable():
	default:
		t.Fatal("expected Readable on empty->non-empty edge")
	}
	select {
	case <-r.Readable():
		t.Fatal("Readable should be coalesced, not re-armed without a new edge")
	default:
	}

	// Fill to capacity, drain fully, expect a Writable edge.
	r.TryAdd([]byte{4, 5, 6, 7, 8})
	if r.Space() != 0 {
		t.Fatalf("Space = %d, want 0 (full)", r.Space())
	}
	var tmp [8]byte
	r.TryRemove(tmp[:])
	select {
	case <-r.Writable():
	default:
		t.Fatal("expected Writable on full->non-full edge")
	}
}

func TestTryPeekDoesNotAdvance(t *testing.T) {
	r := New(8)
	r.TryAdd([]byte{1, 2, 3})
	var peek [2]byte
	if n := r.TryPeek(peek[:]); n != 2 || peek[0] != 1 || peek[1] != 2 {
		t.Fatalf("TryPeek = %d %v, want 2 [1 2]", n, peek[:n])
	}
	if r.Available() != 3 {
		t.Fatalf("Available after peek = %d, want 3 (unchanged)", r.Available())
	}
	var removed [3]byte
	n := r.TryRemove(removed[:])
	if n != 3 || removed != [3]byte{1, 2, 3} {
		t.Fatalf("TryRemove after peek = %v, want [1 2 3]", removed[:n])
	}
}

func TestReadPointerNeverPassesWritePointer(t *testing.T) {
	r := New(4)
	var dst [4]byte
	if n := r.TryRemove(dst[:]); n != 0 {
		t.Fatalf("TryRemove on empty ring = %d, want 0", n)
	}
	if r.Available() != 0 {
		t.Fatalf("Available on empty ring = %d, want 0", r.Available())
	}
}

func TestBlockingAdd(t *testing.T) {
	r := New(2)
	r.TryAdd([]byte{1, 2})
	done := make(chan struct{})
	go func() {
		r.Add([]byte{3, 4})
		close(done)
	}()
	var tmp [2]byte
	r.TryRemove(tmp[:])
	<-done
	if r.Available() != 2 {
		t.Fatalf("Available after blocking add completes = %d, want 2", r.Available())
	}
}
