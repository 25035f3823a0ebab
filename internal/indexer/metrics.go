package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the pipeline's Prometheus instruments.
type Metrics struct {
	blocksTotal   *prometheus.CounterVec
	eventsTotal   *prometheus.CounterVec
	blockDuration prometheus.Histogram
	lastSynced    prometheus.Gauge
}

// NewMetrics registers the instruments with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		blocksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "tokensync_blocks_total", Help: "Blocks processed by outcome"},
			[]string{"status"},
		),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "tokensync_events_total", Help: "Events seen by transfer kind and outcome"},
			[]string{"kind", "status"},
		),
		blockDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{Name: "tokensync_block_duration_seconds", Help: "Block fetch and apply latency", Buckets: prometheus.DefBuckets},
		),
		lastSynced: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "tokensync_last_synced_block", Help: "Last committed block number"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.blocksTotal, m.eventsTotal, m.blockDuration, m.lastSynced)
	}
	return m
}
