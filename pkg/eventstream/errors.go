package eventstream

import (
	"errors"
	"fmt"
)

// ErrAlreadySubscribed is delivered to a second subscriber attaching to an
// event publisher. Event publishers are single-subscriber.
var ErrAlreadySubscribed = errors.New("eventstream: publisher may only be subscribed to once")

// DecodeError wraps a failure on the client side of the wire: a corrupt
// frame, or an unmarshaller that could not produce a value from a message.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("eventstream: decode failed: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// recoveredError converts a recovered panic value into an error.
func recoveredError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("eventstream: panic: %v", r)
}
