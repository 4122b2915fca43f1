package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValidMessage(t *testing.T) {
	msg, err := Decode([]byte(`{"text":"hi","type":"message","ts":1000}`))
	require.NoError(t, err)

	assert.Equal(t, Message{Text: "hi", Type: "message", Ts: 1000}, msg)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	messages := []Message{
		{Text: "hi", Type: "message", Ts: 1000},
		{Text: "", Type: "message", Ts: 0},
		{Text: `with "quotes" and \slashes\`, Type: "message", Ts: 1723456789012},
		{Text: "日本語 und Ümläute", Type: "system", Ts: 42},
	}

	for _, m := range messages {
		decoded, err := Decode(Encode(m))
		require.NoError(t, err, "round trip failed for %+v", m)
		assert.Equal(t, m, decoded)
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"not json":         `invalid json`,
		"empty input":      ``,
		"bare number":      `5`,
		"bare string":      `"hello"`,
		"array":            `[1,2,3]`,
		"truncated object": `{"text":"hi","type":"message"`,
		"trailing data":    `{"text":"hi","type":"message","ts":1}{"x":1}`,
		"ts not integer":   `{"text":"hi","type":"message","ts":"1000"}`,
		"ts fractional":    `{"text":"hi","type":"message","ts":10.5}`,
		"text not string":  `{"text":7,"type":"message","ts":1000}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestDecodeRejectsMissingFields(t *testing.T) {
	cases := map[string]string{
		"missing text": `{"type":"message","ts":1000}`,
		"missing type": `{"text":"hi","ts":1000}`,
		"missing ts":   `{"text":"hi","type":"message"}`,
		"empty object": `{}`,
		"null":         `null`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode([]byte(`{"text":"hi","type":"message","ts":1000,"extra":true}`))

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestDecodeErrorUnwrapsCause(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.NotEmpty(t, decodeErr.Reason)
}
