package redis

import (
	"context"
	"errors"
	"net"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hhoikoo/multiuser-webchat/internal/metrics"
)

// MetricsHook records a counter and latency histogram for every command the
// relay issues (publishes, stream appends, pings). Labels come from
// cmd.Name(), keeping cardinality bounded by the command set in use.
type MetricsHook struct{}

var _ goredis.Hook = (*MetricsHook)(nil)

func (MetricsHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			metrics.RedisConnectionErrors.Inc()
		}
		return conn, err
	}
}

func (MetricsHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		// A key miss is a successful round trip.
		if errors.Is(err, goredis.Nil) {
			observe(cmd.Name(), start, nil)
		} else {
			observe(cmd.Name(), start, err)
		}
		return err
	}
}

// ProcessPipelineHook records the whole pipeline as one operation.
func (MetricsHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		observe("pipeline", start, err)
		return err
	}
}

func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RedisOpsTotal.WithLabelValues(operation, status).Inc()
	metrics.RedisOpDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
