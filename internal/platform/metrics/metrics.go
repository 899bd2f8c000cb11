package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	EntriesAppended      *prometheus.CounterVec
	LedgerLength         prometheus.Gauge
	ObservationsAccepted prometheus.Counter
	ObservationsRejected *prometheus.CounterVec
	CoherenceRecomputed  *prometheus.CounterVec
	SinkDelivered        *prometheus.CounterVec
	SinkDropped          *prometheus.CounterVec
	IntegrityChecks      *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EntriesAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "northstar_ledger_entries_appended_total",
			Help: "Total ledger entries appended, by entry type",
		}, []string{"entry_type"}),
		LedgerLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "northstar_ledger_length",
			Help: "Current ledger chain length, genesis included",
		}),
		ObservationsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "northstar_observations_accepted_total",
			Help: "Total observation packets admitted past the consent gate",
		}),
		ObservationsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "northstar_observations_rejected_total",
			Help: "Total observation packets rejected, by error code",
		}, []string{"code"}),
		CoherenceRecomputed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "northstar_coherence_recomputed_total",
			Help: "Total group coherence recomputations, by resulting status",
		}, []string{"status"}),
		SinkDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "northstar_sink_delivered_total",
			Help: "Total entries delivered to downstream sinks, by sink",
		}, []string{"sink"}),
		SinkDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "northstar_sink_dropped_total",
			Help: "Total entries dropped before reaching a sink, by sink",
		}, []string{"sink"}),
		IntegrityChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "northstar_integrity_checks_total",
			Help: "Total chain verification runs, by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncEntryAppended(entryType string) {
	m.EntriesAppended.WithLabelValues(entryType).Inc()
}

func (m *Metrics) SetLedgerLength(n int) {
	m.LedgerLength.Set(float64(n))
}

func (m *Metrics) IncObservationAccepted() {
	m.ObservationsAccepted.Inc()
}

func (m *Metrics) IncObservationRejected(code string) {
	m.ObservationsRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) IncCoherenceRecomputed(status string) {
	m.CoherenceRecomputed.WithLabelValues(status).Inc()
}

func (m *Metrics) IncSinkDelivered(sink string) {
	m.SinkDelivered.WithLabelValues(sink).Inc()
}

func (m *Metrics) IncSinkDropped(sink string) {
	m.SinkDropped.WithLabelValues(sink).Inc()
}

func (m *Metrics) IncIntegrityCheck(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "violation"
	}
	m.IntegrityChecks.WithLabelValues(outcome).Inc()
}
