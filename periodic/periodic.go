// Package periodic implements the async periodic service of spec.md §5:
// background work (the active mode's Periodic hook queues it: UART and
// half-duplex UART async-print polls, IR frame polls, the 1-Wire strong
// pull-up) is submitted from an ISR-equivalent producer and drained,
// one bounded unit per call, only when the foreground explicitly ticks
// it between syntax lines. It must never run while a tape is executing.
//
// The submit-without-blocking / bounded-queue shape is grounded on
// services/hal/gpio_worker.go's isrQ: a producer (there, an interrupt
// handler) must never block, so Submit drops the newest item on a full
// queue rather than waiting. Unlike gpio_worker's own consumer goroutine,
// this service's consumer only ever runs synchronously inside Tick,
// matching the single foreground thread spec.md §5 describes.
package periodic

const defaultQueueSize = 16

// Task is one bounded unit of background work.
type Task func()

// Service holds the queue of submitted tasks and statistics on drops.
type Service struct {
	q     chan Task
	drops uint32
}

// New creates a Service with the given queue depth (defaultQueueSize if
// size <= 0).
func New(size int) *Service {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Service{q: make(chan Task, size)}
}

// Submit enqueues task without blocking. It is safe to call from an
// interrupt-equivalent producer; a full queue silently drops the task
// and increments Drops so the status bar can surface it as a WARN.
func (s *Service) Submit(task Task) {
	select {
	case s.q <- task:
	default:
		s.drops++
	}
}

// Drops reports how many tasks were dropped because the queue was full.
func (s *Service) Drops() uint32 { return s.drops }

// Tick drains at most one pending task, running it synchronously on the
// caller's goroutine. Callers schedule this between syntax lines, never
// during tape execution (spec.md §5). Returns whether a task ran.
func (s *Service) Tick() bool {
	select {
	case task := <-s.q:
		task()
		return true
	default:
		return false
	}
}

// Pending reports how many tasks are currently queued.
func (s *Service) Pending() int { return len(s.q) }
