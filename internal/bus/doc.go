// Package bus bridges a server process to the cross-instance broadcast channel.
//
// Bus is a Redis Pub/Sub client with a connect/listen/disconnect lifecycle and
// a single message handler slot; History keeps a bounded record of recent
// messages on a capped Redis Stream for the replay endpoint.
package bus
