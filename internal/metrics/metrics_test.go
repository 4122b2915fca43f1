package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	// Verify all metrics are registered without conflicts
	metrics := []prometheus.Collector{
		ConnectedClients,
		ConnectionsTotal,
		DisconnectionsTotal,
		MessagesTotal,
		DroppedMessagesTotal,
		BusReceivedTotal,
		BroadcastDuration,
		PeerSendOutcomes,
		RedisOpsTotal,
		RedisOpDuration,
		RedisConnectionErrors,
		CircuitBreakerStateChanges,
		CircuitBreakerState,
		HistoryAppendsTotal,
	}

	for _, m := range metrics {
		assert.NotNil(t, m)
	}
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(MessagesTotal)
	MessagesTotal.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(MessagesTotal))

	beforeDropped := testutil.ToFloat64(DroppedMessagesTotal.WithLabelValues("decode_error"))
	DroppedMessagesTotal.WithLabelValues("decode_error").Inc()
	assert.Equal(t, beforeDropped+1, testutil.ToFloat64(DroppedMessagesTotal.WithLabelValues("decode_error")))
}
