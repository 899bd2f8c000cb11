package sink

import (
	"context"
	"log/slog"
	"sync/atomic"

	"northstar/internal/ledger"
	"northstar/internal/platform/metrics"
	"northstar/pkg/platform/circuit"
)

const defaultBufferSize = 1024

// probeEvery is how many skipped deliveries an open breaker waits before
// letting one attempt through to test recovery.
const probeEvery = 32

// Dispatcher queues committed entries and fans them out to the configured
// sinks on a background goroutine. Publish never blocks: when the buffer is
// full the entry is dropped and counted. Downstream consumers that need
// completeness re-read from the archive sink, not from the stream.
type Dispatcher struct {
	sinks    []Sink
	breakers map[string]*circuit.Breaker
	skipped  map[string]int
	inbox    chan ledger.Entry
	logger   *slog.Logger
	metrics  *metrics.Metrics
	dropped  atomic.Int64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithBufferSize overrides the inbox capacity.
func WithBufferSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.inbox = make(chan ledger.Entry, n)
		}
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

func NewDispatcher(sinks []Sink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sinks:    sinks,
		breakers: make(map[string]*circuit.Breaker, len(sinks)),
		skipped:  make(map[string]int, len(sinks)),
		inbox:    make(chan ledger.Entry, defaultBufferSize),
		logger:   slog.Default(),
	}
	for _, s := range sinks {
		d.breakers[s.Name()] = circuit.New(s.Name(), circuit.WithFailureThreshold(5))
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish enqueues an entry for delivery. Called on the append path while
// the writer holds its commit lock; it must not block under any condition.
func (d *Dispatcher) Publish(entry ledger.Entry) {
	select {
	case d.inbox <- entry:
	default:
		d.dropped.Add(1)
		if d.metrics != nil {
			d.metrics.IncSinkDropped("dispatcher")
		}
		d.logger.Warn("sink inbox full, entry dropped",
			"entry_id", entry.EntryID,
			"entry_type", entry.Type,
		)
	}
}

// Dropped reports how many entries were discarded because the inbox was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Run consumes the inbox until ctx is canceled. Per-sink failures are logged
// and counted; one sink failing never stops delivery to the others.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-d.inbox:
			d.deliver(ctx, entry)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, entry ledger.Entry) {
	for _, s := range d.sinks {
		breaker := d.breakers[s.Name()]

		// An open breaker sheds entries, letting the occasional probe
		// through so recovery is detected.
		if breaker.IsOpen() {
			d.skipped[s.Name()]++
			if d.skipped[s.Name()]%probeEvery != 0 {
				if d.metrics != nil {
					d.metrics.IncSinkDropped(s.Name())
				}
				continue
			}
		}

		if err := s.Deliver(ctx, entry); err != nil {
			_, change := breaker.RecordFailure()
			if change.Opened {
				d.logger.Error("sink circuit opened", "sink", s.Name())
			}
			if d.metrics != nil {
				d.metrics.IncSinkDropped(s.Name())
			}
			d.logger.Error("sink delivery failed",
				"sink", s.Name(),
				"entry_id", entry.EntryID,
				"error", err,
			)
			continue
		}

		if _, change := breaker.RecordSuccess(); change.Closed {
			d.skipped[s.Name()] = 0
			d.logger.Info("sink circuit closed", "sink", s.Name())
		}
		if d.metrics != nil {
			d.metrics.IncSinkDelivered(s.Name())
		}
	}
}
