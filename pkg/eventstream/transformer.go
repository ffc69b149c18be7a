package eventstream

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"

	"github.com/eventflow-io/eventflow/pkg/executor"
	"github.com/eventflow-io/eventflow/pkg/reactive"
)

// Config assembles a Transformer. Handler and the three unmarshallers are
// required; Executor defaults to a fresh serial executor and Future to a
// fresh Future.
type Config[R, E any] struct {
	// Handler receives the consumer-facing stream callbacks.
	Handler ResponseHandler[R, E]

	// InitialUnmarshaller decodes the initial-response message.
	InitialUnmarshaller Unmarshaller[R]

	// EventUnmarshaller decodes data event messages.
	EventUnmarshaller Unmarshaller[E]

	// ErrorUnmarshaller decodes wire error and exception messages into a
	// domain error.
	ErrorUnmarshaller Unmarshaller[error]

	// Executor delivers downstream signals. May be single- or
	// multi-goroutine; single is the default and the simplest way to get
	// strictly ordered deliveries.
	Executor executor.Executor

	// Future settles when the final event has been delivered and the
	// subscriber saw OnComplete. Never settled on error.
	Future *Future
}

// queueItem is one entry of the event queue: either a decoded event or
// the end-of-stream marker, which appears at most once and only as the
// final item.
type queueItem[E any] struct {
	event E
	eos   bool
}

type subscriberRef[E any] struct{ sub reactive.Subscriber[E] }

type subscriptionRef struct{ sub reactive.Subscription }

type errBox struct{ err error }

// Transformer is the event-stream response transformer. It is created per
// request attempt and driven by the enclosing request layer through
// ResponseReceived, OnStream, ExceptionOccurred and Complete.
//
// One transformer serves one downstream subscriber; a second subscription
// attempt on its event publisher is rejected.
type Transformer[R, E any] struct {
	handler             ResponseHandler[R, E]
	initialUnmarshaller Unmarshaller[R]
	eventUnmarshaller   Unmarshaller[E]
	errorUnmarshaller   Unmarshaller[error]
	exec                executor.Executor
	future              *Future

	ledger  demandLedger
	decoder *FrameDecoder

	// mu guards the event queue. Frame decoding and every queue update
	// happen under it.
	mu        sync.Mutex
	queue     []queueItem[E]
	eosQueued bool

	// stateMu serialises terminal transitions (done flips) against
	// concurrent error and complete paths. Lock order is mu before
	// stateMu; nothing takes mu while holding stateMu.
	stateMu sync.Mutex

	// done marks terminal state: once set, no further events, errors, or
	// completion signals reach the downstream subscriber.
	done atomic.Bool

	// cancelled is set when the downstream subscriber cancels. Not an
	// error: every signal after it is suppressed, terminal ones included.
	cancelled atomic.Bool

	// errSlot holds the first error observed by any path. Once set,
	// completion is suppressed.
	errSlot atomic.Pointer[errBox]

	subscriber atomic.Pointer[subscriberRef[E]]
	upstream   atomic.Pointer[subscriptionRef]
}

// New validates cfg and creates a Transformer.
func New[R, E any](cfg Config[R, E]) (*Transformer[R, E], error) {
	if cfg.Handler == nil {
		return nil, errors.New("eventstream: Config.Handler is required")
	}
	if cfg.InitialUnmarshaller == nil || cfg.EventUnmarshaller == nil || cfg.ErrorUnmarshaller == nil {
		return nil, errors.New("eventstream: all three unmarshallers are required")
	}
	if cfg.Executor == nil {
		cfg.Executor = executor.NewSerial()
	}
	if cfg.Future == nil {
		cfg.Future = NewFuture()
	}
	t := &Transformer[R, E]{
		handler:             cfg.Handler,
		initialUnmarshaller: cfg.InitialUnmarshaller,
		eventUnmarshaller:   cfg.EventUnmarshaller,
		errorUnmarshaller:   cfg.ErrorUnmarshaller,
		exec:                cfg.Executor,
		future:              cfg.Future,
	}
	t.decoder = NewFrameDecoder(t.handleMessage)
	return t, nil
}

// Future returns the completion future.
func (t *Transformer[R, E]) Future() *Future { return t.future }

// ResponseReceived is a no-op: the real initial response arrives in-band
// as the first frame of the stream and is unmarshalled there.
func (t *Transformer[R, E]) ResponseReceived(resp any) {}

// OnStream attaches the upstream byte publisher. Clears the terminal
// marker so a retried request attempt can deliver again.
func (t *Transformer[R, E]) OnStream(pub reactive.Publisher[[]byte]) {
	t.stateMu.Lock()
	t.done.Store(false)
	t.cancelled.Store(false)
	t.stateMu.Unlock()
	pub.Subscribe(&byteSubscriber[R, E]{t: t})
}

// ExceptionOccurred routes an error into the terminal path: at most once,
// the transformer flips done, records the error, notifies the downstream
// subscriber (if attached) and the handler. The future is not settled
// here; failing it is owned by the enclosing request layer.
func (t *Transformer[R, E]) ExceptionOccurred(err error) {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	if t.done.Load() || t.cancelled.Load() {
		return
	}
	t.done.Store(true)
	t.errSlot.CompareAndSwap(nil, &errBox{err: err})
	if ref := t.subscriber.Load(); ref != nil {
		safeCall("Subscriber.OnError", func() { ref.sub.OnError(err) })
	}
	t.handler.ExceptionOccurred(err)
}

// Complete is called by the enclosing request layer once the wire-level
// request has been fully received. Completion of the event stream itself
// is deferred: the end-of-stream marker is queued behind any undelivered
// events and the subscriber sees OnComplete only after all of them.
//
// If an error was recorded, Complete returns it instead so the request
// layer can fail its future; this is the only path that raises an error
// out of the transformer's top-level API.
//
// Upstream byte-publisher completion alone does not trigger this: events
// may still be buffered. The request layer owns the call.
func (t *Transformer[R, E]) Complete() error {
	if box := t.errSlot.Load(); box != nil {
		return box.err
	}
	t.mu.Lock()
	if !t.eosQueued {
		t.eosQueued = true
		t.queue = append(t.queue, queueItem[E]{eos: true})
	}
	t.mu.Unlock()
	t.kickDrain()
	return nil
}

// onEventComplete runs when the drain engine dequeues the end-of-stream
// marker: all events have been delivered, so the terminal completion is
// delivered and the future settles.
func (t *Transformer[R, E]) onEventComplete() {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	if t.done.Load() || t.cancelled.Load() {
		return
	}
	t.done.Store(true)
	if ref := t.subscriber.Load(); ref != nil {
		safeCall("Subscriber.OnComplete", func() { ref.sub.OnComplete() })
	}
	t.handler.Complete()
	t.future.Complete()
}

// handleMessage classifies one decoded message and routes it. Invoked
// synchronously from the frame decoder, under the queue lock.
func (t *Transformer[R, E]) handleMessage(msg eventstream.Message) error {
	mt, ok := headerString(msg, headerMessageType)
	if !ok {
		return nil
	}
	switch mt {
	case messageTypeEvent:
		if et, _ := headerString(msg, headerEventType); et == eventTypeInitialResponse {
			resp, err := t.initialUnmarshaller.Unmarshal(adaptMessage(msg))
			if err != nil {
				return &DecodeError{Cause: err}
			}
			t.handler.ResponseReceived(resp)
			return nil
		}
		ev, err := t.eventUnmarshaller.Unmarshal(adaptMessage(msg))
		if err != nil {
			return &DecodeError{Cause: err}
		}
		// Queued for the drain engine; the queue lock is already held.
		t.queue = append(t.queue, queueItem[E]{event: ev})
	case messageTypeError, messageTypeException:
		domainErr, err := t.errorUnmarshaller.Unmarshal(adaptMessage(msg))
		if err != nil {
			return &DecodeError{Cause: err}
		}
		safeCall("ExceptionOccurred", func() { t.ExceptionOccurred(domainErr) })
	}
	return nil
}

// requestUpstream issues one byte-chunk request. Chunk sizing is owned by
// the transport.
func (t *Transformer[R, E]) requestUpstream() {
	if ref := t.upstream.Load(); ref != nil {
		ref.sub.Request(1)
	}
}

// requestDataIfNotAlready starts a byte request unless one is already in
// flight.
func (t *Transformer[R, E]) requestDataIfNotAlready() {
	if t.ledger.tryTakeRequestLease() {
		t.requestUpstream()
	}
}

// safeCall runs fn and swallows a panic with a log line. Downstream
// callback bugs are the subscriber's problem, never the pipeline's.
func safeCall(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("eventstream: panic from "+what+", ignoring", "panic", r)
		}
	}()
	fn()
}
