package bus

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hhoikoo/multiuser-webchat/internal/chat"
	"github.com/hhoikoo/multiuser-webchat/internal/metrics"
	"github.com/hhoikoo/multiuser-webchat/internal/redis"
)

// Sequencing errors. These indicate caller misuse and should surface loudly
// during development rather than be swallowed.
var (
	ErrAlreadyConnected = errors.New("bus: already connected")
	ErrNotConnected     = errors.New("bus: not connected")
	ErrListenerRunning  = errors.New("bus: listener already running")
)

// Handler is invoked for every message received from the bus, from any
// publisher in any process (including this one).
type Handler func(chat.Message)

// Bus bridges this process to the deployment-wide broadcast channel over
// Redis Pub/Sub. All server instances subscribed to the same channel name
// see each other's traffic; publishes are delivered back to the publishing
// process's own listener as well.
type Bus struct {
	redisURL string
	channel  string

	mu         sync.Mutex
	rdb        *goredis.Client
	handler    Handler
	sub        *goredis.PubSub
	listenStop context.CancelFunc
	listenDone chan struct{}
}

// New creates a disconnected Bus for the given channel name. The channel is
// the sole rendezvous point between instances and must match across a
// deployment.
func New(redisURL, channel string) *Bus {
	return &Bus{
		redisURL: redisURL,
		channel:  channel,
	}
}

// Connect establishes the Redis connection. Calling Connect on an already
// connected Bus returns ErrAlreadyConnected.
func (b *Bus) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rdb != nil {
		return ErrAlreadyConnected
	}

	rdb, err := redis.NewClient(ctx, b.redisURL)
	if err != nil {
		return err
	}

	b.rdb = rdb
	slog.Info("Bus connected", "channel", b.channel)
	return nil
}

// SetMessageHandler registers the single callback invoked for every bus
// message. Replacing the handler replaces the prior registration; there is
// no multi-subscriber fan-out at this layer.
func (b *Bus) SetMessageHandler(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = handler
}

// Publish sends a message to the broadcast channel. It becomes visible to
// every subscriber, including this process's own listener.
func (b *Bus) Publish(ctx context.Context, m chat.Message) error {
	b.mu.Lock()
	rdb := b.rdb
	b.mu.Unlock()

	if rdb == nil {
		return ErrNotConnected
	}

	if err := rdb.Publish(ctx, b.channel, chat.Encode(m)).Err(); err != nil {
		return err
	}
	metrics.MessagesTotal.Inc()
	return nil
}

// StartListen spawns the single background goroutine that receives from the
// bus and invokes the registered handler for each decoded message. A second
// StartListen without an intervening Disconnect returns ErrListenerRunning.
func (b *Bus) StartListen() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rdb == nil {
		return ErrNotConnected
	}
	if b.listenDone != nil {
		return ErrListenerRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := b.rdb.Subscribe(ctx, b.channel)

	// Wait for the subscription confirmation so that messages published
	// right after StartListen returns are guaranteed to be received.
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		_ = sub.Close()
		return err
	}

	b.sub = sub
	b.listenStop = cancel
	b.listenDone = make(chan struct{})

	go b.listenLoop(ctx, sub, b.listenDone)
	return nil
}

// listenLoop terminates only on cancellation (Disconnect) or an
// unrecoverable transport fault. A fault is logged and the loop exits;
// the process then stops receiving bus traffic until restarted. That is a
// deliberate tradeoff: readiness checks go unhealthy and orchestration
// restarts the instance, instead of the loop retrying forever against a
// broken subscription.
func (b *Bus) listenLoop(ctx context.Context, sub *goredis.PubSub, done chan struct{}) {
	defer close(done)

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				slog.Error("Bus subscription closed unexpectedly, listener exiting", "channel", b.channel)
				return
			}

			m, err := chat.Decode([]byte(msg.Payload))
			if err != nil {
				// Malformed bus payloads are logged and dropped, never fatal.
				slog.Warn("Dropping malformed bus payload", "error", err, "payload", msg.Payload)
				metrics.DroppedMessagesTotal.WithLabelValues("bus_decode_error").Inc()
				continue
			}

			metrics.BusReceivedTotal.Inc()
			if handler := b.currentHandler(); handler != nil {
				handler(m)
			}
		case <-ctx.Done():
			slog.Info("Bus listener cancelled", "channel", b.channel)
			return
		}
	}
}

func (b *Bus) currentHandler() Handler {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handler
}

// Disconnect cancels the listener (and waits for it to finish) before
// releasing the Redis connection. Calling Disconnect with nothing connected
// is a no-op.
func (b *Bus) Disconnect() {
	b.mu.Lock()
	stop := b.listenStop
	done := b.listenDone
	sub := b.sub
	rdb := b.rdb
	b.listenStop = nil
	b.listenDone = nil
	b.sub = nil
	b.rdb = nil
	b.mu.Unlock()

	// Join the listener before tearing the connection down so the loop
	// never touches a closed client.
	if stop != nil {
		stop()
	}
	if done != nil {
		<-done
	}
	if sub != nil {
		_ = sub.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
		slog.Info("Bus disconnected", "channel", b.channel)
	}
}

// Ping reports whether the underlying Redis connection is healthy.
// Returns ErrNotConnected before Connect.
func (b *Bus) Ping(ctx context.Context) error {
	b.mu.Lock()
	rdb := b.rdb
	b.mu.Unlock()

	if rdb == nil {
		return ErrNotConnected
	}
	return rdb.Ping(ctx).Err()
}
