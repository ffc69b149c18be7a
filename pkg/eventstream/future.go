package eventstream

import (
	"context"
	"sync"
)

// Future is a one-shot completion notification: settled at most once,
// observable by any number of waiters.
//
// The transformer completes it only when the final event has been
// delivered and the subscriber saw OnComplete. It is deliberately not
// settled on error; the enclosing request layer owns failure because it
// has the retry context.
type Future struct {
	once sync.Once
	done chan struct{}
}

// NewFuture creates an unsettled Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Complete settles the future. Returns false if it was already settled.
func (f *Future) Complete() bool {
	settled := false
	f.once.Do(func() {
		settled = true
		close(f.done)
	})
	return settled
}

// Done returns a channel closed when the future settles.
func (f *Future) Done() <-chan struct{} { return f.done }

// Completed reports whether the future has settled.
func (f *Future) Completed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future settles or ctx is done.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
