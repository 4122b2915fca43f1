package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/hhoikoo/multiuser-webchat/internal/metrics"
)

// controlWriteTimeout bounds ping and close frame writes.
const controlWriteTimeout = 5 * time.Second

func (s *Server) handleIndex(c echo.Context) error {
	return c.String(http.StatusOK, "multiuser-webchat up")
}

// handleWebSocket upgrades the connection, registers it with the router, and
// runs the read loop. Each text frame is one message-submission attempt;
// any other frame type ends the read loop and the connection with it.
func (s *Server) handleWebSocket(c echo.Context) error {
	if !s.limiter.Acquire() {
		metrics.ConnectionsTotal.WithLabelValues("rejected").Inc()
		return c.String(http.StatusServiceUnavailable, "connection limit reached")
	}
	defer s.limiter.Release()

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		metrics.ConnectionsTotal.WithLabelValues("upgrade_failed").Inc()
		slog.Warn("Failed to upgrade WebSocket", "error", err)
		return nil
	}

	handle := s.router.Accept(conn)
	defer handle.Release()

	// Keepalive: pongs refresh the read deadline, so a peer that stops
	// answering pings trips the deadline and falls out of the read loop.
	_ = conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	})

	pingStop := make(chan struct{})
	defer close(pingStop)
	go s.pingLoop(conn, pingStop)

	// Per-connection inbound throttle; excess submissions are dropped the
	// same way garbage is, without penalizing the connection.
	limiter := rate.NewLimiter(rate.Limit(s.config.MessageRate), s.config.MessageBurst)
	ctx := c.Request().Context()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			slog.Warn("Terminating connection after non-text frame", "frame_type", msgType)
			break
		}
		if !limiter.Allow() {
			metrics.DroppedMessagesTotal.WithLabelValues("rate_limited").Inc()
			continue
		}
		if err := s.router.HandleInbound(ctx, data); err != nil {
			// Sequencing faults (e.g. bus not connected) are loud but do
			// not take down the connection.
			slog.Error("Failed to forward inbound message", "error", err)
		}
	}

	return nil
}

// pingLoop pings the peer until the connection goes away or the read loop
// exits. WriteControl is safe concurrently with broadcast writes.
func (s *Server) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWriteTimeout)); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}
