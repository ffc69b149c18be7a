package commands

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/eventflow-io/eventflow/pkg/capture"
	"github.com/eventflow-io/eventflow/pkg/reactive"
	"github.com/eventflow-io/eventflow/pkg/transport/wstream"
)

var (
	recordMaxChunks int64
	recordTimeout   time.Duration
)

var recordCmd = &cobra.Command{
	Use:   "record <url>",
	Short: "Record an event stream from a websocket endpoint",
	Long: `Record connects to a websocket endpoint and stores every binary
message it receives as one chunk of a new capture session. Chunks are
stored verbatim; frame boundaries are reconstructed at inspect or
replay time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		header := http.Header{}
		for k, v := range cfg.Headers {
			header.Set(k, v)
		}

		ctx := cmd.Context()
		if recordTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, recordTimeout)
			defer cancel()
		}

		url := args[0]
		pub, err := wstream.Dial(ctx, url, header)
		if err != nil {
			return fmt.Errorf("dial %s: %w", url, err)
		}

		w, err := store.Begin(url)
		if err != nil {
			return err
		}

		count, err := runRecording(ctx, pub, w, recordMaxChunks)
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("stream failed after %d chunks: %w", count, err)
		}
		fmt.Printf("recorded %d chunks into session %s\n", count, w.ID())
		return nil
	},
}

// runRecording consumes the byte publisher into the writer until the
// stream ends, max chunks arrive, or ctx is done. Context expiry is a
// normal stop, not an error: after Cancel the publisher goes silent, so
// the recorder finishes itself rather than waiting for a terminal
// signal that will never come.
func runRecording(ctx context.Context, pub reactive.Publisher[[]byte], w *capture.Writer, max int64) (int64, error) {
	rec := &recorder{w: w, max: max, done: make(chan struct{})}
	pub.Subscribe(rec)

	select {
	case <-rec.done:
	case <-ctx.Done():
		rec.sub.Cancel()
		rec.finish(nil)
	}
	return rec.count.Load(), rec.err
}

// recorder appends each chunk before requesting the next, so the
// websocket is never read faster than the store can persist.
type recorder struct {
	w   *capture.Writer
	sub reactive.Subscription
	max int64

	count atomic.Int64
	once  sync.Once
	err   error
	done  chan struct{}
}

// finish settles the recorder at most once. err may be nil for a normal
// stop.
func (r *recorder) finish(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

func (r *recorder) OnSubscribe(s reactive.Subscription) {
	r.sub = s
	s.Request(1)
}

func (r *recorder) OnNext(chunk []byte) {
	if err := r.w.Append(chunk); err != nil {
		r.sub.Cancel()
		r.finish(err)
		return
	}
	n := r.count.Add(1)
	if r.max > 0 && n >= r.max {
		r.sub.Cancel()
		r.finish(nil)
		return
	}
	r.sub.Request(1)
}

func (r *recorder) OnError(err error) {
	r.finish(err)
}

func (r *recorder) OnComplete() {
	r.finish(nil)
}

func init() {
	recordCmd.Flags().Int64Var(&recordMaxChunks, "max-chunks", 0, "stop after this many chunks (0 = until close)")
	recordCmd.Flags().DurationVar(&recordTimeout, "timeout", 0, "stop recording after this duration (0 = no limit)")
	rootCmd.AddCommand(recordCmd)
}
