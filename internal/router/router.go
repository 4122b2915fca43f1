package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/hhoikoo/multiuser-webchat/internal/chat"
	"github.com/hhoikoo/multiuser-webchat/internal/logging"
	"github.com/hhoikoo/multiuser-webchat/internal/metrics"
)

const (
	closeFrameTimeout    = time.Second
	historyAppendTimeout = 5 * time.Second
)

// Publisher is the outbound half of the broadcast bus.
type Publisher interface {
	Publish(ctx context.Context, m chat.Message) error
}

// Appender records published messages for the history collaborator.
type Appender interface {
	Append(ctx context.Context, m chat.Message) error
}

// sendStatus is the per-peer outcome of one fan-out delivery attempt.
type sendStatus int

const (
	sendOK sendStatus = iota
	sendAlreadyClosed
	sendTimeout
	sendInternalError
)

func (s sendStatus) String() string {
	switch s {
	case sendOK:
		return "ok"
	case sendAlreadyClosed:
		return "already_closed"
	case sendTimeout:
		return "timeout"
	default:
		return "internal_error"
	}
}

// Router owns the set of live local connections. Inbound client messages are
// decoded and forwarded to the bus; bus messages are fanned out to every
// registered peer concurrently, pruning any peer whose send fails or times
// out.
type Router struct {
	bus          Publisher
	history      Appender // optional, may be nil
	clock        clockwork.Clock
	sendTimeout  time.Duration
	drainTimeout time.Duration

	mu    sync.Mutex
	peers map[*peer]struct{}
}

// New creates a router. history may be nil when no persistence collaborator
// is wired in. sendTimeout bounds a single per-peer write; drainTimeout
// bounds CloseAll.
func New(bus Publisher, history Appender, clock clockwork.Clock, sendTimeout, drainTimeout time.Duration) *Router {
	return &Router{
		bus:          bus,
		history:      history,
		clock:        clock,
		sendTimeout:  sendTimeout,
		drainTimeout: drainTimeout,
		peers:        make(map[*peer]struct{}),
	}
}

// Handle scopes one registered connection. Releasing it removes the
// connection from the live set and closes the transport exactly once,
// regardless of which exit path got there first.
type Handle struct {
	router *Router
	peer   *peer
}

// Release deregisters the connection and closes it. Idempotent.
func (h *Handle) Release() {
	if h.router.remove(h.peer) {
		metrics.DisconnectionsTotal.WithLabelValues("client").Inc()
		logging.WithPeer(h.peer.id).Debug("Peer deregistered")
	}
	h.peer.close(websocket.CloseNormalClosure, "", h.router.clock.Now().Add(closeFrameTimeout))
}

// Accept registers an upgraded connection in the live set and returns its
// scoped handle.
func (r *Router) Accept(conn Conn) *Handle {
	p := newPeer(conn)

	r.mu.Lock()
	r.peers[p] = struct{}{}
	total := len(r.peers)
	r.mu.Unlock()

	metrics.ConnectedClients.Inc()
	metrics.ConnectionsTotal.WithLabelValues("accepted").Inc()
	logging.WithPeer(p.id).Debug("Peer registered", "total_peers", total)

	return &Handle{router: r, peer: p}
}

// Len returns the number of currently registered peers.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// remove takes a peer out of the live set. Reports whether it was present.
func (r *Router) remove(p *peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[p]; !ok {
		return false
	}
	delete(r.peers, p)
	metrics.ConnectedClients.Dec()
	return true
}

// snapshot returns a point-in-time copy of the live set. Fan-out iterates
// the copy so that peers connecting or disconnecting mid-broadcast never
// corrupt the iteration; a peer that disconnects while a broadcast is in
// flight may or may not receive that one message.
func (r *Router) snapshot() []*peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	peers := make([]*peer, 0, len(r.peers))
	for p := range r.peers {
		peers = append(peers, p)
	}
	return peers
}

// HandleInbound processes one text frame from a client. Garbage input is
// dropped silently instead of crashing the room or closing the connection;
// valid messages are forwarded to the bus and, if wired, the history store.
func (r *Router) HandleInbound(ctx context.Context, raw []byte) error {
	m, err := chat.Decode(raw)
	if err != nil {
		logging.WithError(err).Debug("Dropping undecodable inbound frame")
		metrics.DroppedMessagesTotal.WithLabelValues("decode_error").Inc()
		return nil
	}

	if err := r.bus.Publish(ctx, m); err != nil {
		return fmt.Errorf("publish inbound message: %w", err)
	}

	if r.history != nil {
		// Fire-and-forget: history is best-effort and must never slow
		// down or fail the publish path.
		go func() {
			appendCtx, cancel := context.WithTimeout(context.Background(), historyAppendTimeout)
			defer cancel()
			if err := r.history.Append(appendCtx, m); err != nil {
				slog.Warn("Failed to append message to history", "error", err)
			}
		}()
	}

	return nil
}

// OnBusMessage fans one bus message out to every peer in a snapshot of the
// live set, concurrently. Registered as the bus client's message handler.
func (r *Router) OnBusMessage(m chat.Message) {
	payload := chat.Encode(m)
	start := r.clock.Now()

	snapshot := r.snapshot()
	if len(snapshot) == 0 {
		return
	}

	results := make([]sendStatus, len(snapshot))
	var wg sync.WaitGroup
	for i, p := range snapshot {
		wg.Add(1)
		go func(i int, p *peer) {
			defer wg.Done()
			results[i] = r.sendToPeer(p, payload)
		}(i, p)
	}
	wg.Wait()

	for i, p := range snapshot {
		status := results[i]
		metrics.PeerSendOutcomes.WithLabelValues(status.String()).Inc()
		if status == sendOK {
			continue
		}

		r.remove(p)
		switch status {
		case sendAlreadyClosed:
			metrics.DisconnectionsTotal.WithLabelValues("already_closed").Inc()
		case sendTimeout:
			metrics.DisconnectionsTotal.WithLabelValues("send_timeout").Inc()
			logging.WithPeer(p.id).Warn("Evicting peer: send timeout", "timeout", r.sendTimeout)
			go p.close(websocket.CloseGoingAway, "send timeout", r.clock.Now().Add(closeFrameTimeout))
		case sendInternalError:
			metrics.DisconnectionsTotal.WithLabelValues("send_error").Inc()
			logging.WithPeer(p.id).Warn("Evicting peer: send failed")
			go p.close(websocket.CloseInternalServerErr, "internal error", r.clock.Now().Add(closeFrameTimeout))
		}
	}

	metrics.BroadcastDuration.Observe(r.clock.Since(start).Seconds())
}

// sendToPeer attempts one bounded-time delivery. The write deadline covers
// the real transport; the timer covers transports that ignore deadlines, so
// a stuck peer can never stall the broadcast beyond sendTimeout.
func (r *Router) sendToPeer(p *peer, payload []byte) sendStatus {
	if p.closed.Load() {
		return sendAlreadyClosed
	}

	result := make(chan error, 1)
	go func() {
		p.writeMu.Lock()
		defer p.writeMu.Unlock()
		_ = p.conn.SetWriteDeadline(r.clock.Now().Add(r.sendTimeout))
		result <- p.conn.WriteMessage(websocket.TextMessage, payload)
	}()

	timer := r.clock.NewTimer(r.sendTimeout)
	defer timer.Stop()

	select {
	case err := <-result:
		switch {
		case err == nil:
			return sendOK
		case isTimeout(err):
			return sendTimeout
		default:
			return sendInternalError
		}
	case <-timer.Chan():
		return sendTimeout
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// CloseAll closes every still-open connection concurrently, bounded by the
// drain timeout. A timeout is logged and swallowed since the process is
// terminating regardless; the live set is cleared unconditionally either
// way. Safe to call repeatedly, including with zero connections.
func (r *Router) CloseAll() {
	r.mu.Lock()
	snapshot := make([]*peer, 0, len(r.peers))
	for p := range r.peers {
		snapshot = append(snapshot, p)
	}
	r.peers = make(map[*peer]struct{})
	r.mu.Unlock()

	metrics.ConnectedClients.Set(0)

	if len(snapshot) == 0 {
		return
	}

	slog.Info("Closing all peer connections", "count", len(snapshot))

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for _, p := range snapshot {
			wg.Add(1)
			go func(p *peer) {
				defer wg.Done()
				p.close(websocket.CloseGoingAway, "server shutting down", r.clock.Now().Add(closeFrameTimeout))
				metrics.DisconnectionsTotal.WithLabelValues("shutdown").Inc()
			}(p)
		}
		wg.Wait()
	}()

	timer := r.clock.NewTimer(r.drainTimeout)
	defer timer.Stop()

	select {
	case <-done:
		slog.Info("All peer connections closed")
	case <-timer.Chan():
		slog.Warn("Timed out draining peer connections", "timeout", r.drainTimeout)
	}
}
