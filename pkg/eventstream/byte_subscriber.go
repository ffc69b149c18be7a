package eventstream

import "github.com/eventflow-io/eventflow/pkg/reactive"

// byteSubscriber consumes the upstream byte publisher: it feeds chunks to
// the frame decoder and keeps one byte request in flight while downstream
// demand is unmet.
type byteSubscriber[R, E any] struct {
	t *Transformer[R, E]
}

// OnSubscribe stores the upstream token and hands the event publisher to
// the handler. A panicking handler fails the stream and cancels upstream.
func (b *byteSubscriber[R, E]) OnSubscribe(s reactive.Subscription) {
	t := b.t
	t.upstream.Store(&subscriptionRef{sub: s})

	defer func() {
		if r := recover(); r != nil {
			t.ExceptionOccurred(recoveredError(r))
			s.Cancel()
		}
	}()
	t.handler.OnEventStream(&eventPublisher[R, E]{t: t})
}

// OnNext decodes one chunk under the queue lock, then either drains (the
// chunk produced events) or requests the next chunk (demand still unmet).
func (b *byteSubscriber[R, E]) OnNext(chunk []byte) {
	t := b.t
	// A terminal signal already went downstream; late bytes are noise.
	if t.done.Load() {
		return
	}

	t.mu.Lock()
	err := t.decoder.Feed(chunk)
	if err != nil {
		t.mu.Unlock()
		t.ExceptionOccurred(err)
		return
	}
	if len(t.queue) > 0 {
		// The in-flight request produced output; the next one is issued
		// by the drain engine when demand calls for it.
		t.ledger.releaseRequestLease()
		t.mu.Unlock()
		t.kickDrain()
		return
	}
	needMore := t.ledger.outstanding() > 0
	t.mu.Unlock()
	if needMore {
		// Keep the requesting lease and ask for the next chunk until the
		// outstanding demand can be met.
		t.requestUpstream()
	}
}

// OnError is deliberately empty: the terminal coordinator is driven by
// the dispatcher and by the enclosing request layer's ExceptionOccurred,
// which has more context on what was already delivered downstream.
func (b *byteSubscriber[R, E]) OnError(err error) {}

// OnComplete is deliberately empty: upstream byte completion does not
// imply event-stream completion, because events are buffered. The request
// layer signals completion through Transformer.Complete.
func (b *byteSubscriber[R, E]) OnComplete() {}
