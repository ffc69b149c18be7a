// Package executor provides the task executors streams deliver on.
//
// The event-stream transformer serialises downstream signals by routing
// them through an injected Executor. Serial is the default and keeps all
// deliveries on one goroutine; Go runs each task on its own goroutine for
// callers that provide their own ordering.
package executor

import (
	"log/slog"
	"sync"
)

// Executor runs tasks submitted to it. Implementations decide ordering and
// parallelism; Submit itself must not run the task synchronously.
type Executor interface {
	Submit(task func())
}

// Serial runs tasks one at a time, in submission order, on a single
// goroutine. The queue is unbounded so Submit never blocks.
type Serial struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	notify chan struct{}
	done   chan struct{}
}

// NewSerial creates a Serial executor and starts its worker goroutine.
func NewSerial() *Serial {
	s := &Serial{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Submit enqueues a task. Tasks submitted after Close are dropped.
func (s *Serial) Submit(task func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		slog.Warn("executor: task submitted after close, dropping")
		return
	}
	s.queue = append(s.queue, task)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Close stops the executor after all queued tasks have run and waits for
// the worker goroutine to exit.
func (s *Serial) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	<-s.done
}

func (s *Serial) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			if s.closed {
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			<-s.notify
			continue
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		task()
	}
}

// Go runs every task on its own goroutine. No ordering guarantees.
type Go struct{}

func (Go) Submit(task func()) { go task() }
