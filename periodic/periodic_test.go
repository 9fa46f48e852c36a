package periodic

import "testing"

func TestTickRunsOneTaskAtATime(t *testing.T) {
	s := New(4)
	ran := 0
	s.Submit(func() { ran++ })
	s.Submit(func() { ran++ })

	if !s.Tick() {
		t.Fatal("expected Tick to run a task")
	}
	if ran != 1 {
		t.Fatalf("ran = %d, want 1 (one bounded unit per tick)", ran)
	}
	if !s.Tick() {
		t.Fatal("expected second Tick to run the remaining task")
	}
	if ran != 2 {
		t.Fatalf("ran = %d, want 2", ran)
	}
	if s.Tick() {
		t.Fatal("expected Tick on empty queue to do nothing")
	}
}

func TestSubmitDropsOnFullQueue(t *testing.T) {
	s := New(1)
	s.Submit(func() {})
	s.Submit(func() {}) // queue full, should drop
	if s.Drops() != 1 {
		t.Fatalf("Drops = %d, want 1", s.Drops())
	}
}

func TestPendingReflectsQueueDepth(t *testing.T) {
	s := New(4)
	s.Submit(func() {})
	s.Submit(func() {})
	if s.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", s.Pending())
	}
}
