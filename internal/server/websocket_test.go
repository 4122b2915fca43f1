package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hhoikoo/multiuser-webchat/internal/chat"
	"github.com/hhoikoo/multiuser-webchat/internal/config"
	"github.com/hhoikoo/multiuser-webchat/internal/router"
)

// recordingPublisher collects everything the router forwards to the bus.
type recordingPublisher struct {
	mu        sync.Mutex
	published []chat.Message
}

func (p *recordingPublisher) Publish(_ context.Context, m chat.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, m)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

// wsTestServer boots the full echo server around a real router and returns
// a dialer for its /ws endpoint.
type wsHarness struct {
	router *router.Router
	wsURL  string
}

func wsTestServer(t *testing.T, cfg *config.Config, pub router.Publisher) *wsHarness {
	t.Helper()

	rtr := router.New(pub, nil, clockwork.NewRealClock(), cfg.SendTimeout, cfg.ShutdownTimeout)
	srv := NewServer(cfg, rtr, nil, &fakePinger{})
	t.Cleanup(rtr.CloseAll)

	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)

	return &wsHarness{
		router: rtr,
		wsURL:  "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

func (h *wsHarness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForPeers(t *testing.T, rtr *router.Router, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return rtr.Len() == n },
		2*time.Second, 10*time.Millisecond, "expected %d registered peers", n)
}

func TestWebSocketRoundTrip(t *testing.T) {
	pub := &recordingPublisher{}
	h := wsTestServer(t, testConfig(), pub)

	conn := h.dial(t)
	waitForPeers(t, h.router, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"text":"hi","type":"message","ts":1000}`)))

	require.Eventually(t, func() bool { return pub.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, chat.Message{Text: "hi", Type: "message", Ts: 1000}, pub.published[0])
}

func TestWebSocketGarbageKeepsConnectionOpen(t *testing.T) {
	pub := &recordingPublisher{}
	h := wsTestServer(t, testConfig(), pub)

	conn := h.dial(t)
	waitForPeers(t, h.router, 1)

	// Garbage: no publish, no disconnect.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`invalid json`)))

	// A subsequent valid send still works over the same connection.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"text":"ok","type":"message","ts":2}`)))

	require.Eventually(t, func() bool { return pub.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, chat.Message{Text: "ok", Type: "message", Ts: 2}, pub.published[0])
	assert.Equal(t, 1, h.router.Len())
}

func TestWebSocketBinaryFrameTerminatesConnection(t *testing.T) {
	pub := &recordingPublisher{}
	h := wsTestServer(t, testConfig(), pub)

	conn := h.dial(t)
	waitForPeers(t, h.router, 1)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))

	waitForPeers(t, h.router, 0)
	assert.Zero(t, pub.count(), "non-text frames fan nothing out")
}

func TestWebSocketClientCloseDeregisters(t *testing.T) {
	pub := &recordingPublisher{}
	h := wsTestServer(t, testConfig(), pub)

	conn := h.dial(t)
	waitForPeers(t, h.router, 1)

	require.NoError(t, conn.Close())
	waitForPeers(t, h.router, 0)
}

func TestWebSocketCrossOriginRejected(t *testing.T) {
	h := wsTestServer(t, testConfig(), &recordingPublisher{})

	header := http.Header{"Origin": []string{"http://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(h.wsURL, header)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
	assert.Zero(t, h.router.Len())
}

func TestWebSocketKeepaliveEvictsUnresponsivePeer(t *testing.T) {
	cfg := testConfig()
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PongTimeout = 100 * time.Millisecond
	h := wsTestServer(t, cfg, &recordingPublisher{})

	// Never read from the connection, so ping frames are never serviced and
	// no pongs flow back.
	h.dial(t)
	waitForPeers(t, h.router, 1)

	// The read deadline expires without a pong and the peer is deregistered.
	waitForPeers(t, h.router, 0)
}

func TestWebSocketKeepaliveSustainsResponsivePeer(t *testing.T) {
	cfg := testConfig()
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PongTimeout = 100 * time.Millisecond
	h := wsTestServer(t, cfg, &recordingPublisher{})

	conn := h.dial(t)
	waitForPeers(t, h.router, 1)

	// Reading services ping frames, so pongs keep refreshing the deadline.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	time.Sleep(5 * cfg.PongTimeout)
	assert.Equal(t, 1, h.router.Len())
}

func TestWebSocketConnectionLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 1
	h := wsTestServer(t, cfg, &recordingPublisher{})

	h.dial(t)
	waitForPeers(t, h.router, 1)

	// Second connection is rejected before the upgrade.
	_, resp, err := websocket.DefaultDialer.Dial(h.wsURL, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, 503, resp.StatusCode)
	}
}
