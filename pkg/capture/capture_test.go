package capture

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eventflow-io/eventflow/pkg/reactive"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(t *testing.T, s *Store, source string, chunks ...[]byte) string {
	t.Helper()
	w, err := s.Begin(source)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for i, c := range chunks {
		if err := w.Append(c); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return w.ID()
}

func TestRecordAndReadBack(t *testing.T) {
	s := newTestStore(t)
	chunks := [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")}
	id := record(t, s, "ws://example/stream", chunks...)

	man, err := s.Session(id)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if man.Source != "ws://example/stream" {
		t.Fatalf("source = %q", man.Source)
	}
	if man.Chunks != 3 || man.Bytes != 14 {
		t.Fatalf("chunks = %d, bytes = %d", man.Chunks, man.Bytes)
	}

	got, err := s.Chunks(id)
	if err != nil {
		t.Fatalf("chunks: %v", err)
	}
	if len(got) != len(chunks) {
		t.Fatalf("got %d chunks", len(got))
	}
	for i := range chunks {
		if !bytes.Equal(got[i], chunks[i]) {
			t.Fatalf("chunk %d = %q", i, got[i])
		}
	}
}

func TestChunkOrderSurvivesManyAppends(t *testing.T) {
	s := newTestStore(t)

	// More than 256 chunks so single-byte sequence numbers would misorder.
	var chunks [][]byte
	for i := 0; i < 300; i++ {
		chunks = append(chunks, []byte{byte(i >> 8), byte(i)})
	}
	id := record(t, s, "test", chunks...)

	got, err := s.Chunks(id)
	if err != nil {
		t.Fatalf("chunks: %v", err)
	}
	if len(got) != len(chunks) {
		t.Fatalf("got %d chunks", len(got))
	}
	for i := range chunks {
		if !bytes.Equal(got[i], chunks[i]) {
			t.Fatalf("chunk %d out of order: %v", i, got[i])
		}
	}
}

func TestSessionsListsOldestFirst(t *testing.T) {
	s := newTestStore(t)
	first := record(t, s, "a", []byte("1"))
	time.Sleep(2 * time.Millisecond)
	second := record(t, s, "b", []byte("2"))

	mans, err := s.Sessions()
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(mans) != 2 {
		t.Fatalf("got %d sessions", len(mans))
	}
	if mans[0].ID != first || mans[1].ID != second {
		t.Fatalf("order = %s, %s", mans[0].ID, mans[1].ID)
	}
}

func TestUnknownSession(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Session("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Session err = %v", err)
	}
	if _, err := s.Chunks("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Chunks err = %v", err)
	}
	if _, err := s.Replay("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Replay err = %v", err)
	}
	if err := s.Delete("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete err = %v", err)
	}
}

func TestDeleteRemovesSession(t *testing.T) {
	s := newTestStore(t)
	keep := record(t, s, "keep", []byte("k"))
	gone := record(t, s, "gone", []byte("g1"), []byte("g2"))

	if err := s.Delete(gone); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Session(gone); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted session still present: %v", err)
	}
	if _, err := s.Chunks(keep); err != nil {
		t.Fatalf("surviving session broken: %v", err)
	}
}

func TestAppendAfterClose(t *testing.T) {
	s := newTestStore(t)
	w, err := s.Begin("test")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Append([]byte("late")); err == nil {
		t.Fatalf("append after close succeeded")
	}
}

// replayCollector pulls one chunk at a time.
type replayCollector struct {
	mu     sync.Mutex
	sub    reactive.Subscription
	chunks [][]byte
	done   chan struct{}
}

func (c *replayCollector) OnSubscribe(s reactive.Subscription) {
	c.sub = s
	s.Request(1)
}

func (c *replayCollector) OnNext(chunk []byte) {
	c.mu.Lock()
	c.chunks = append(c.chunks, chunk)
	c.mu.Unlock()
	c.sub.Request(1)
}

func (c *replayCollector) OnError(error) { close(c.done) }
func (c *replayCollector) OnComplete() { close(c.done) }

func TestReplayDeliversInOrder(t *testing.T) {
	s := newTestStore(t)
	chunks := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	id := record(t, s, "test", chunks...)

	pub, err := s.Replay(id)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	c := &replayCollector{done: make(chan struct{})}
	pub.Subscribe(c)

	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for replay to finish")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.chunks) != len(chunks) {
		t.Fatalf("got %d chunks", len(c.chunks))
	}
	for i := range chunks {
		if !bytes.Equal(c.chunks[i], chunks[i]) {
			t.Fatalf("chunk %d = %q", i, c.chunks[i])
		}
	}
}
