// Package reactive defines the pull-based streaming contracts shared by
// transports, the event-stream transformer, and tests.
//
// The protocol follows the reactive-streams discipline: a Subscriber
// attaches to a Publisher, receives a Subscription in OnSubscribe, and
// grants demand with Request(n). The Publisher may emit at most as many
// OnNext calls as demand granted, followed by exactly one terminal signal
// (OnComplete or OnError), after which no further signals arrive.
package reactive

// Subscription links one Subscriber to one Publisher for the lifetime of a
// stream. Request and Cancel may be called from any goroutine, including
// from inside the Subscriber's own callbacks.
type Subscription interface {
	// Request grants the publisher credit to emit up to n more items.
	// n must be positive.
	Request(n int64)

	// Cancel stops the stream. After Cancel returns, the subscriber should
	// expect no further signals beyond those already in flight.
	Cancel()
}

// Subscriber consumes a stream of items under its own demand.
type Subscriber[T any] interface {
	// OnSubscribe is called once, before any other signal, with the
	// Subscription the subscriber uses to grant demand.
	OnSubscribe(s Subscription)

	// OnNext delivers one item. Never called without outstanding demand.
	OnNext(item T)

	// OnError signals abnormal termination. Terminal.
	OnError(err error)

	// OnComplete signals successful termination. Terminal.
	OnComplete()
}

// Publisher is a source of a potentially unbounded number of sequenced
// items, emitted according to the demand its Subscriber grants.
type Publisher[T any] interface {
	Subscribe(s Subscriber[T])
}
