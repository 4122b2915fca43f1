package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Message is the wire shape shared by clients and the broadcast bus.
// Ts is epoch milliseconds.
type Message struct {
	Text string `json:"text"`
	Type string `json:"type"`
	Ts   int64  `json:"ts"`
}

// DecodeError reports a payload that could not be turned into a Message.
// It is always recoverable: callers drop the payload and carry on.
type DecodeError struct {
	Reason string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode message: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("decode message: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// decodeFailure wraps a cause into a DecodeError.
func decodeFailure(reason string, cause error) error {
	return &DecodeError{Reason: reason, Cause: cause}
}

// Decode parses raw into a Message. The schema is strict: all three fields
// must be present and no unknown fields are accepted. Any failure is
// returned as a *DecodeError, never a panic.
func Decode(raw []byte) (Message, error) {
	// Pointer fields distinguish "absent" from zero values.
	var wire struct {
		Text *string `json:"text"`
		Type *string `json:"type"`
		Ts   *int64  `json:"ts"`
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&wire); err != nil {
		return Message{}, decodeFailure("malformed payload", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Message{}, decodeFailure("trailing data after message", nil)
	}

	switch {
	case wire.Text == nil:
		return Message{}, decodeFailure(`missing required field "text"`, nil)
	case wire.Type == nil:
		return Message{}, decodeFailure(`missing required field "type"`, nil)
	case wire.Ts == nil:
		return Message{}, decodeFailure(`missing required field "ts"`, nil)
	}

	return Message{Text: *wire.Text, Type: *wire.Type, Ts: *wire.Ts}, nil
}

// Encode serializes a Message to its wire form. It is total over Message
// values and the exact inverse of Decode for anything it produces.
func Encode(m Message) []byte {
	data, err := json.Marshal(m)
	if err != nil {
		// Marshalling a flat struct of strings and ints cannot fail.
		panic(fmt.Sprintf("chat: encode message: %v", err))
	}
	return data
}
