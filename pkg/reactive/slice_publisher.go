package reactive

import "sync"

// SlicePublisher replays a fixed slice of items to a subscriber under
// demand, then completes. Each Subscribe starts an independent pass over
// the items.
//
// Emission happens on the goroutine that calls Request. Re-entrant Request
// calls from inside OnNext only accumulate demand; the outer call keeps
// emitting, so deliveries are never nested.
type SlicePublisher[T any] struct {
	Items []T
}

func (p *SlicePublisher[T]) Subscribe(s Subscriber[T]) {
	s.OnSubscribe(&sliceSubscription[T]{items: p.Items, sub: s})
}

type sliceSubscription[T any] struct {
	sub Subscriber[T]

	mu        sync.Mutex
	items     []T
	pos       int
	demand    int64
	emitting  bool
	cancelled bool
	completed bool
}

func (s *sliceSubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.demand += n
	if s.emitting {
		s.mu.Unlock()
		return
	}
	s.emitting = true
	for {
		if s.cancelled || s.completed {
			break
		}
		if s.pos >= len(s.items) {
			s.completed = true
			s.mu.Unlock()
			s.sub.OnComplete()
			s.mu.Lock()
			break
		}
		if s.demand == 0 {
			break
		}
		item := s.items[s.pos]
		s.pos++
		s.demand--
		// Callbacks run outside the lock so the subscriber may re-enter
		// Request or Cancel.
		s.mu.Unlock()
		s.sub.OnNext(item)
		s.mu.Lock()
	}
	s.emitting = false
	s.mu.Unlock()
}

func (s *sliceSubscription[T]) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}
