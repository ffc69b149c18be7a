package eventstream

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
)

const (
	// A frame is at least the 12-byte prelude plus the 4-byte message CRC.
	minFrameLen = 16

	// Wire-format ceiling on total frame length. A prelude above this is
	// corrupt input, not a frame we should wait for.
	maxFrameLen = 1 << 24
)

// FrameDecoder incrementally decodes event-stream frames from arbitrarily
// sized byte chunks. Chunks may split frames at any offset; complete
// frames invoke the callback synchronously, in wire order, from inside
// Feed. Parsing and CRC validation are done by the aws eventstream codec.
//
// FrameDecoder is not safe for concurrent use; the transformer feeds it
// under its queue lock.
type FrameDecoder struct {
	buf       bytes.Buffer
	dec       *eventstream.Decoder
	onMessage func(eventstream.Message) error
}

// NewFrameDecoder creates a decoder that calls onMessage for every
// complete frame. An error returned by onMessage aborts the current Feed
// and is returned from it; remaining buffered bytes stay buffered.
func NewFrameDecoder(onMessage func(eventstream.Message) error) *FrameDecoder {
	return &FrameDecoder{
		dec:       eventstream.NewDecoder(),
		onMessage: onMessage,
	}
}

// Feed appends a chunk and decodes as many complete frames as it now
// holds.
func (d *FrameDecoder) Feed(p []byte) error {
	d.buf.Write(p)
	for {
		data := d.buf.Bytes()
		if len(data) < 4 {
			return nil
		}
		total := binary.BigEndian.Uint32(data[:4])
		if total < minFrameLen || total > maxFrameLen {
			return &DecodeError{Cause: fmt.Errorf("invalid frame length %d", total)}
		}
		if uint32(len(data)) < total {
			return nil
		}
		msg, err := d.dec.Decode(bytes.NewReader(data[:total]), nil)
		if err != nil {
			return &DecodeError{Cause: err}
		}
		d.buf.Next(int(total))
		if err := d.onMessage(msg); err != nil {
			return err
		}
	}
}

// Buffered reports how many bytes are held waiting for the rest of a
// frame.
func (d *FrameDecoder) Buffered() int { return d.buf.Len() }
