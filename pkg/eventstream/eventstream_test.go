package eventstream

import (
	"bytes"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"

	"github.com/eventflow-io/eventflow/pkg/executor"
	"github.com/eventflow-io/eventflow/pkg/reactive"
)

// Shared fixtures for the transformer tests: wire-frame builders, a push
// upstream, and recording handler/subscriber doubles.

const waitTimeout = 2 * time.Second

type testResponse struct {
	RequestID string `json:"request_id"`
}

type testEvent struct {
	ID  int    `json:"id"`
	Msg string `json:"msg"`
}

type testStreamError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *testStreamError) Error() string { return e.Code + ": " + e.Message }

func encodeMessage(t *testing.T, msg eventstream.Message) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := eventstream.NewEncoder().Encode(&buf, msg); err != nil {
		t.Fatalf("encode message: %v", err)
	}
	return buf.Bytes()
}

func eventFrame(t *testing.T, ev testEvent) []byte {
	t.Helper()
	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return encodeMessage(t, eventstream.Message{
		Headers: eventstream.Headers{
			{Name: headerMessageType, Value: eventstream.StringValue(messageTypeEvent)},
			{Name: headerEventType, Value: eventstream.StringValue("data")},
		},
		Payload: payload,
	})
}

func initialResponseFrame(t *testing.T, resp testResponse) []byte {
	t.Helper()
	payload, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return encodeMessage(t, eventstream.Message{
		Headers: eventstream.Headers{
			{Name: headerMessageType, Value: eventstream.StringValue(messageTypeEvent)},
			{Name: headerEventType, Value: eventstream.StringValue(eventTypeInitialResponse)},
		},
		Payload: payload,
	})
}

func rawEventFrame(t *testing.T, payload []byte) []byte {
	t.Helper()
	return encodeMessage(t, eventstream.Message{
		Headers: eventstream.Headers{
			{Name: headerMessageType, Value: eventstream.StringValue(messageTypeEvent)},
			{Name: headerEventType, Value: eventstream.StringValue("data")},
		},
		Payload: payload,
	})
}

func errorFrame(t *testing.T, e testStreamError) []byte {
	t.Helper()
	payload, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	return encodeMessage(t, eventstream.Message{
		Headers: eventstream.Headers{
			{Name: headerMessageType, Value: eventstream.StringValue(messageTypeException)},
		},
		Payload: payload,
	})
}

func concat(chunks ...[]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// pushPublisher models an eager upstream transport: the test pushes
// chunks regardless of demand, the way an HTTP layer may run ahead of the
// consumer. It records demand and cancellation for assertions.
type pushPublisher struct {
	sub       reactive.Subscriber[[]byte]
	requested atomic.Int64
	cancelled atomic.Bool
}

func (p *pushPublisher) Subscribe(s reactive.Subscriber[[]byte]) {
	p.sub = s
	s.OnSubscribe(p)
}

func (p *pushPublisher) Request(n int64) { p.requested.Add(n) }
func (p *pushPublisher) Cancel() { p.cancelled.Store(true) }

func (p *pushPublisher) push(chunk []byte) { p.sub.OnNext(chunk) }

// testHandler records the consumer-facing hooks.
type testHandler struct {
	mu        sync.Mutex
	initial   []testResponse
	pub       reactive.Publisher[testEvent]
	completed chan struct{}
	errs      chan error
}

func newTestHandler() *testHandler {
	return &testHandler{
		completed: make(chan struct{}),
		errs:      make(chan error, 4),
	}
}

func (h *testHandler) ResponseReceived(resp testResponse) {
	h.mu.Lock()
	h.initial = append(h.initial, resp)
	h.mu.Unlock()
}

func (h *testHandler) OnEventStream(pub reactive.Publisher[testEvent]) {
	h.mu.Lock()
	h.pub = pub
	h.mu.Unlock()
}

func (h *testHandler) Complete() { close(h.completed) }

func (h *testHandler) ExceptionOccurred(err error) { h.errs <- err }

func (h *testHandler) initialResponses() []testResponse {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]testResponse(nil), h.initial...)
}

func (h *testHandler) publisher() reactive.Publisher[testEvent] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pub
}

// testSubscriber records everything delivered downstream. The optional
// onNext hook runs inside OnNext, after recording, to exercise re-entrant
// behaviour (cancel from a callback, a panicking subscriber).
type testSubscriber struct {
	mu        sync.Mutex
	sub       reactive.Subscription
	events    []testEvent
	nextCh    chan testEvent
	completed chan struct{}
	errs      chan error
	onNext    func(s *testSubscriber, ev testEvent)
}

func newTestSubscriber() *testSubscriber {
	return &testSubscriber{
		nextCh:    make(chan testEvent, 64),
		completed: make(chan struct{}),
		errs:      make(chan error, 4),
	}
}

func (s *testSubscriber) OnSubscribe(sub reactive.Subscription) { s.sub = sub }

func (s *testSubscriber) OnNext(ev testEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	s.nextCh <- ev
	if s.onNext != nil {
		s.onNext(s, ev)
	}
}

func (s *testSubscriber) OnError(err error) { s.errs <- err }
func (s *testSubscriber) OnComplete() { close(s.completed) }

func (s *testSubscriber) snapshot() []testEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]testEvent(nil), s.events...)
}

func newTestTransformer(t *testing.T, h *testHandler) *Transformer[testResponse, testEvent] {
	t.Helper()
	exec := executor.NewSerial()
	t.Cleanup(exec.Close)
	tr, err := New(Config[testResponse, testEvent]{
		Handler:             h,
		InitialUnmarshaller: JSONUnmarshaller[testResponse]{},
		EventUnmarshaller:   JSONUnmarshaller[testEvent]{},
		ErrorUnmarshaller: UnmarshalFunc[error](func(r *EventResponse) (error, error) {
			var e testStreamError
			if err := json.Unmarshal(r.Payload, &e); err != nil {
				return nil, err
			}
			return &e, nil
		}),
		Executor: exec,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func waitEvent(t *testing.T, s *testSubscriber) testEvent {
	t.Helper()
	select {
	case ev := <-s.nextCh:
		return ev
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for event")
		return testEvent{}
	}
}

func waitErr(t *testing.T, ch <-chan error, what string) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}

// expectQuiet asserts that no event, completion, or error arrives within
// a short window.
func expectQuiet(t *testing.T, s *testSubscriber) {
	t.Helper()
	select {
	case ev := <-s.nextCh:
		t.Fatalf("unexpected event %+v", ev)
	case <-s.completed:
		t.Fatalf("unexpected completion")
	case err := <-s.errs:
		t.Fatalf("unexpected error %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}
