package bus

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hhoikoo/multiuser-webchat/internal/chat"
	"github.com/hhoikoo/multiuser-webchat/internal/metrics"
)

// History keeps a bounded, best-effort record of recent messages on a capped
// Redis Stream. The cap is approximate (XADD MAXLEN ~) which is enough to
// bound memory; exactness is not required.
type History struct {
	rdb    *goredis.Client
	stream string
	maxLen int64
}

// NewHistory creates a history store on the given stream, retaining roughly
// maxLen entries.
func NewHistory(rdb *goredis.Client, stream string, maxLen int64) *History {
	return &History{
		rdb:    rdb,
		stream: stream,
		maxLen: maxLen,
	}
}

// Append records a message. Failures are reported to the caller but are
// never fatal to the message flow: history is a best-effort collaborator.
func (h *History) Append(ctx context.Context, m chat.Message) error {
	err := h.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: h.stream,
		MaxLen: h.maxLen,
		Approx: true,
		Values: map[string]any{"payload": string(chat.Encode(m))},
	}).Err()

	if err != nil {
		metrics.HistoryAppendsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("append history entry: %w", err)
	}
	metrics.HistoryAppendsTotal.WithLabelValues("success").Inc()
	return nil
}

// Recent returns up to limit past messages in chronological order, oldest
// first. Entries that fail to decode are skipped.
func (h *History) Recent(ctx context.Context, limit int64) ([]chat.Message, error) {
	entries, err := h.rdb.XRevRangeN(ctx, h.stream, "+", "-", limit).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	messages := make([]chat.Message, 0, len(entries))
	// XRevRange yields newest first; walk backwards for chronological order.
	for i := len(entries) - 1; i >= 0; i-- {
		payload, ok := entries[i].Values["payload"].(string)
		if !ok {
			slog.Warn("History entry missing payload field", "stream", h.stream, "id", entries[i].ID)
			continue
		}
		m, err := chat.Decode([]byte(payload))
		if err != nil {
			slog.Warn("Skipping undecodable history entry", "stream", h.stream, "id", entries[i].ID, "error", err)
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}
