package eventstream

import "github.com/eventflow-io/eventflow/pkg/reactive"

// ResponseHandler receives the consumer-facing callbacks of an
// event-stream operation: the decoded initial response, the event
// publisher to subscribe to, and the terminal outcome.
//
// ResponseReceived fires strictly before any event delivery. Exactly one
// of Complete or ExceptionOccurred fires per stream, unless the consumer
// cancels first.
type ResponseHandler[R, E any] interface {
	// ResponseReceived is called with the unmarshalled initial response,
	// synchronously from frame decoding.
	ResponseReceived(resp R)

	// OnEventStream hands over the publisher of decoded events. The
	// handler (or code it delegates to) subscribes exactly once and
	// drives delivery with demand.
	OnEventStream(pub reactive.Publisher[E])

	// Complete is called after the final event was delivered downstream.
	Complete()

	// ExceptionOccurred is called with the first error observed on any
	// path: decode failures, wire error frames, or request-level errors.
	ExceptionOccurred(err error)
}
