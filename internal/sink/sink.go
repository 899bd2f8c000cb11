// Package sink fans committed ledger entries out to downstream destinations:
// a JSONL registry file, a Postgres archive, a Redis stream, a Kafka topic.
// Delivery is asynchronous and best-effort per sink; the chain in memory is
// the source of truth and a failed delivery never blocks or fails an append.
package sink

import (
	"context"

	"northstar/internal/ledger"
)

// Sink delivers one committed entry to a destination.
type Sink interface {
	// Name labels the sink in logs and metrics.
	Name() string
	// Deliver writes one entry. Implementations must honor ctx cancellation.
	Deliver(ctx context.Context, entry ledger.Entry) error
}
