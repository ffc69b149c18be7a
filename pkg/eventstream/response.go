package eventstream

import (
	"bytes"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
)

// Message headers that drive dispatch.
const (
	headerMessageType = ":message-type"
	headerEventType   = ":event-type"
)

// Values of the :message-type header.
const (
	messageTypeEvent     = "event"
	messageTypeError     = "error"
	messageTypeException = "exception"
)

// The :event-type value carrying protocol-level response metadata rather
// than a domain event.
const eventTypeInitialResponse = "initial-response"

// EventResponse is the synthetic response handed to unmarshallers: the
// message payload as body plus the message headers as HTTP-like
// string-valued headers. Typed headers other than strings are dropped.
type EventResponse struct {
	Header  http.Header
	Payload []byte
}

// Body returns the payload as a reader.
func (r *EventResponse) Body() io.Reader { return bytes.NewReader(r.Payload) }

// adaptMessage transforms a decoded message into an EventResponse so the
// caller's unmarshallers see a uniform response shape.
func adaptMessage(msg eventstream.Message) *EventResponse {
	header := make(http.Header, len(msg.Headers))
	for _, h := range msg.Headers {
		if sv, ok := h.Value.(eventstream.StringValue); ok {
			header.Set(h.Name, string(sv))
		}
	}
	return &EventResponse{Header: header, Payload: msg.Payload}
}

// headerString extracts a string-typed header value from a message.
func headerString(msg eventstream.Message, name string) (string, bool) {
	v := msg.Headers.Get(name)
	if v == nil {
		return "", false
	}
	sv, ok := v.(eventstream.StringValue)
	if !ok {
		return "", false
	}
	return string(sv), true
}
