package eventstream

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Unmarshaller decodes a value of type T from a synthetic event response.
// The transformer takes one each for the initial response, data events,
// and error frames.
type Unmarshaller[T any] interface {
	Unmarshal(resp *EventResponse) (T, error)
}

// UnmarshalFunc adapts a function to the Unmarshaller interface.
type UnmarshalFunc[T any] func(resp *EventResponse) (T, error)

func (f UnmarshalFunc[T]) Unmarshal(resp *EventResponse) (T, error) { return f(resp) }

// JSONUnmarshaller decodes the message payload as JSON.
type JSONUnmarshaller[T any] struct{}

func (JSONUnmarshaller[T]) Unmarshal(resp *EventResponse) (T, error) {
	var v T
	if err := json.Unmarshal(resp.Payload, &v); err != nil {
		return v, err
	}
	return v, nil
}

// MsgpackUnmarshaller decodes the message payload as msgpack.
type MsgpackUnmarshaller[T any] struct{}

func (MsgpackUnmarshaller[T]) Unmarshal(resp *EventResponse) (T, error) {
	var v T
	if err := msgpack.Unmarshal(resp.Payload, &v); err != nil {
		return v, err
	}
	return v, nil
}
