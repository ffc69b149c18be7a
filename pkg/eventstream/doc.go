// Package eventstream adapts a byte-oriented asynchronous transport
// carrying the AWS event-stream binary format into an event-oriented
// stream for a downstream subscriber.
//
// The central type is Transformer, which sits between an upstream byte
// publisher (any reactive.Publisher[[]byte]: a websocket connection, a
// capture replay, a test fixture) and a consumer-supplied
// reactive.Subscriber for decoded events. It performs three jobs:
//
//   - incremental frame decoding of wire chunks into discrete messages
//     (FrameDecoder, built on the aws eventstream codec),
//   - dispatch of each message to one of three roles — initial response,
//     data event, or error frame — through caller-provided unmarshallers,
//   - backpressure coordination between upstream byte demand and
//     downstream event demand, which advertise credit independently and
//     at different granularities.
//
// Downstream signals are serialised through an injected executor: the
// subscriber sees OnNext calls strictly in wire order, never re-entrant
// with its own Request calls, and exactly one terminal signal.
//
// A minimal session looks like:
//
//	fut := eventstream.NewFuture()
//	t, err := eventstream.New(eventstream.Config[MyResponse, MyEvent]{
//	    Handler:             handler,
//	    InitialUnmarshaller: eventstream.JSONUnmarshaller[MyResponse]{},
//	    EventUnmarshaller:   eventstream.JSONUnmarshaller[MyEvent]{},
//	    ErrorUnmarshaller:   myErrorUnmarshaller,
//	    Executor:            executor.NewSerial(),
//	    Future:              fut,
//	})
//	...
//	t.OnStream(bytePublisher) // invoked by the request layer
//	...
//	if err := t.Complete(); err != nil { ... } // wire request fully read
//	<-fut.Done()
package eventstream
