package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/eventflow-io/eventflow/pkg/eventstream"
	"github.com/eventflow-io/eventflow/pkg/executor"
	"github.com/eventflow-io/eventflow/pkg/reactive"
)

var replayTimeout time.Duration

var replayCmd = &cobra.Command{
	Use:   "replay <session-id>",
	Short: "Replay a captured session through the stream transformer",
	Long: `Replay feeds a capture session's chunks through the event-stream
transformer exactly as a live client would consume them: frames are
reassembled, events unmarshalled as JSON and printed one per line,
error frames fail the stream.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		pub, err := store.Replay(args[0])
		if err != nil {
			return err
		}

		exec := executor.NewSerial()
		defer exec.Close()

		p := &printer{done: make(chan struct{})}
		t, err := eventstream.New(eventstream.Config[json.RawMessage, json.RawMessage]{
			Handler:             p,
			InitialUnmarshaller: eventstream.JSONUnmarshaller[json.RawMessage]{},
			EventUnmarshaller:   eventstream.JSONUnmarshaller[json.RawMessage]{},
			ErrorUnmarshaller: eventstream.UnmarshalFunc[error](func(resp *eventstream.EventResponse) (error, error) {
				return &streamError{Payload: string(resp.Payload)}, nil
			}),
			Executor: exec,
		})
		if err != nil {
			return err
		}

		// The capture is bounded, so exhaustion of the byte publisher is
		// the whole wire response: completing the transformer there
		// releases any events still queued behind demand.
		t.OnStream(&completingPublisher{
			inner: pub,
			onExhausted: func() {
				if err := t.Complete(); err != nil {
					p.fail(err)
				}
			},
		})

		select {
		case <-p.done:
		case <-time.After(replayTimeout):
			return errors.New("replay timed out; stream neither completed nor failed")
		}

		if p.err != nil {
			return fmt.Errorf("stream failed after %d events: %w", p.count, p.err)
		}
		fmt.Printf("replayed %d events\n", p.count)
		return nil
	},
}

// streamError is the decoded form of an error or exception frame.
type streamError struct {
	Payload string
}

func (e *streamError) Error() string { return "stream error frame: " + e.Payload }

// printer consumes the event publisher one event at a time and prints
// each payload.
type printer struct {
	sub   reactive.Subscription
	count int

	once sync.Once
	err  error
	done chan struct{}
}

func (p *printer) fail(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

func (p *printer) ResponseReceived(r json.RawMessage) {
	fmt.Printf("initial-response: %s\n", r)
}

func (p *printer) OnEventStream(pub reactive.Publisher[json.RawMessage]) {
	pub.Subscribe(p)
}

func (p *printer) Complete() {}

func (p *printer) ExceptionOccurred(err error) {}

func (p *printer) OnSubscribe(s reactive.Subscription) {
	p.sub = s
	s.Request(1)
}

func (p *printer) OnNext(ev json.RawMessage) {
	p.count++
	fmt.Printf("%s\n", ev)
	p.sub.Request(1)
}

func (p *printer) OnError(err error) { p.fail(err) }

func (p *printer) OnComplete() {
	p.once.Do(func() { close(p.done) })
}

// completingPublisher wraps a bounded byte publisher and fires a callback
// when it signals completion.
type completingPublisher struct {
	inner       reactive.Publisher[[]byte]
	onExhausted func()
}

func (p *completingPublisher) Subscribe(s reactive.Subscriber[[]byte]) {
	p.inner.Subscribe(&completingSubscriber{inner: s, onExhausted: p.onExhausted})
}

type completingSubscriber struct {
	inner       reactive.Subscriber[[]byte]
	onExhausted func()
}

func (s *completingSubscriber) OnSubscribe(sub reactive.Subscription) { s.inner.OnSubscribe(sub) }
func (s *completingSubscriber) OnNext(chunk []byte) { s.inner.OnNext(chunk) }
func (s *completingSubscriber) OnError(err error) { s.inner.OnError(err) }

func (s *completingSubscriber) OnComplete() {
	s.inner.OnComplete()
	s.onExhausted()
}

func init() {
	replayCmd.Flags().DurationVar(&replayTimeout, "timeout", 30*time.Second, "abort if the stream does not finish in time")
	rootCmd.AddCommand(replayCmd)
}
