package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"northstar/internal/ledger"
)

// Stream publishes entries onto a Redis stream via XADD. Live dashboards
// tail the stream; it is a feed, not a system of record.
type Stream struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

// NewStream builds a Redis stream sink. maxLen bounds the stream with
// approximate trimming; zero means unbounded.
func NewStream(client redis.Cmdable, stream string, maxLen int64) *Stream {
	return &Stream{client: client, stream: stream, maxLen: maxLen}
}

func (s *Stream) Name() string { return "redis_stream" }

func (s *Stream) Deliver(ctx context.Context, entry ledger.Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", entry.EntryID, err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"entry_id":   entry.EntryID,
			"entry_type": string(entry.Type),
			"hash":       entry.Hash,
			"entry":      raw,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}
