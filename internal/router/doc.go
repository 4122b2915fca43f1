// Package router owns the live WebSocket connection set and the local fan-out.
//
// Inbound frames flow decode -> bus publish; bus messages flow encode once ->
// snapshot -> concurrent bounded-time send to every peer, with failed or slow
// peers pruned and closed without affecting the rest of the room.
package router
