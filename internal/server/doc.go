// Package server implements the HTTP edge using Echo.
//
// Routes: /ws (WebSocket upgrade + read loop), /history (recent-message
// replay), /healthz and /readyz (probes), /metrics (Prometheus).
package server
