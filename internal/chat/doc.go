// Package chat defines the wire message shape and its strict JSON codec.
//
// Every payload crossing a WebSocket frame or the broadcast bus is exactly
// {"text": string, "type": string, "ts": int64}; anything else is a DecodeError.
package chat
