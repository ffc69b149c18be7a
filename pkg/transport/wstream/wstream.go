// Package wstream adapts a websocket connection into a demand-driven
// byte publisher for the event-stream transformer.
//
// Binary websocket messages map one-to-one onto byte chunks: the read
// loop pulls a message from the connection only while downstream demand
// is outstanding, so the websocket's own flow control is the only
// buffering. Text and control messages are skipped without consuming
// demand.
package wstream

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eventflow-io/eventflow/pkg/reactive"
)

// ErrAlreadySubscribed is delivered to a second subscriber; a Publisher
// wraps one connection and serves one subscriber.
var ErrAlreadySubscribed = errors.New("wstream: publisher may only be subscribed to once")

const defaultHandshakeTimeout = 30 * time.Second

// Publisher turns one websocket connection into a
// reactive.Publisher[[]byte].
type Publisher struct {
	conn       *websocket.Conn
	subscribed atomic.Bool
}

// NewPublisher wraps an established connection. The publisher owns the
// connection from here on; Cancel on the subscription closes it.
func NewPublisher(conn *websocket.Conn) *Publisher {
	return &Publisher{conn: conn}
}

// Dial connects to a websocket endpoint and wraps the connection.
func Dial(ctx context.Context, url string, header http.Header) (*Publisher, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: defaultHandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return NewPublisher(conn), nil
}

// Subscribe attaches the single subscriber and starts the read loop.
func (p *Publisher) Subscribe(s reactive.Subscriber[[]byte]) {
	if !p.subscribed.CompareAndSwap(false, true) {
		s.OnError(ErrAlreadySubscribed)
		return
	}
	sub := &wsSubscription{
		conn:    p.conn,
		sub:     s,
		notify:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
	s.OnSubscribe(sub)
	go sub.readLoop()
}

type wsSubscription struct {
	conn *websocket.Conn
	sub  reactive.Subscriber[[]byte]

	demand    atomic.Int64
	notify    chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once
}

func (s *wsSubscription) Request(n int64) {
	if n <= 0 {
		return
	}
	s.demand.Add(n)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Cancel closes the connection. The subscriber gets no further signals.
func (s *wsSubscription) Cancel() {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *wsSubscription) readLoop() {
	for {
		for s.demand.Load() == 0 {
			select {
			case <-s.notify:
			case <-s.closeCh:
				return
			}
		}

		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closeCh:
				// Cancelled; the read error is our own Close.
				return
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.sub.OnComplete()
			} else {
				s.sub.OnError(err)
			}
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		s.demand.Add(-1)
		s.sub.OnNext(data)
	}
}
