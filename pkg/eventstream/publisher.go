package eventstream

import (
	"log/slog"

	"github.com/eventflow-io/eventflow/pkg/reactive"
)

// eventPublisher exposes the decoded event stream to the consumer's
// subscriber. Single-subscriber: the first Subscribe wins, any later one
// is failed synchronously.
type eventPublisher[R, E any] struct {
	t *Transformer[R, E]
}

func (p *eventPublisher[R, E]) Subscribe(s reactive.Subscriber[E]) {
	if !p.t.subscriber.CompareAndSwap(nil, &subscriberRef[E]{sub: s}) {
		slog.Error("eventstream: event publishers can only be subscribed to once")
		s.OnError(ErrAlreadySubscribed)
		return
	}
	s.OnSubscribe(&eventSubscription[R, E]{t: p.t})
}

// eventSubscription carries the downstream demand and cancellation
// signals into the transformer.
type eventSubscription[R, E any] struct {
	t *Transformer[R, E]
}

func (s *eventSubscription[R, E]) Request(n int64) {
	if n <= 0 {
		slog.Warn("eventstream: non-positive demand ignored", "n", n)
		return
	}
	t := s.t
	if t.done.Load() || t.cancelled.Load() {
		return
	}
	t.mu.Lock()
	t.ledger.addDemand(n)
	if len(t.queue) > 0 {
		t.mu.Unlock()
		t.kickDrain()
		return
	}
	t.mu.Unlock()
	t.requestDataIfNotAlready()
}

// Cancel cancels the upstream byte subscription and suppresses every
// later signal. No other teardown: queued events are simply never
// delivered, and neither OnComplete nor OnError follows.
func (s *eventSubscription[R, E]) Cancel() {
	s.t.cancelled.Store(true)
	if ref := s.t.upstream.Load(); ref != nil {
		ref.sub.Cancel()
	}
}
