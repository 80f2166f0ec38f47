// Package metrics defines the Prometheus metric collectors used by the
// migrator and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the migrator.
type Metrics struct {
	VocabCacheHitsTotal     *prometheus.CounterVec
	VocabCacheMissesTotal   *prometheus.CounterVec
	VocabFetchesTotal       *prometheus.CounterVec
	VocabFetchDuration      *prometheus.HistogramVec
	ValidationFailuresTotal *prometheus.CounterVec
	RecordsProcessedTotal   *prometheus.CounterVec
	VocabEntriesIndexed     prometheus.Counter
	IndexFlushesTotal       *prometheus.CounterVec
}

// New creates the collectors and registers them on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the collectors and registers them on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		VocabCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocab_cache_hits_total",
				Help: "Vocabulary key lookups answered from the cache.",
			},
			[]string{"vocab_type"},
		),
		VocabCacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocab_cache_misses_total",
				Help: "Vocabulary key lookups that had to query the source.",
			},
			[]string{"vocab_type"},
		),
		VocabFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocab_source_fetches_total",
				Help: "Source fetches by source and outcome (found, not_found, error).",
			},
			[]string{"source", "outcome"},
		),
		VocabFetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vocab_source_fetch_duration_seconds",
				Help:    "Vocabulary source fetch latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"source"},
		),
		ValidationFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocab_validation_failures_total",
				Help: "Values rejected because they are not part of their vocabulary.",
			},
			[]string{"vocab_type"},
		),
		RecordsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "migration_records_processed_total",
				Help: "Migrated records by record type and status.",
			},
			[]string{"rectype", "status"},
		),
		VocabEntriesIndexed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vocab_entries_indexed_total",
				Help: "Vocabulary entries written to the vocabulary index.",
			},
		),
		IndexFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocab_index_flushes_total",
				Help: "Vocabulary index flush operations by status.",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.VocabCacheHitsTotal,
		m.VocabCacheMissesTotal,
		m.VocabFetchesTotal,
		m.VocabFetchDuration,
		m.ValidationFailuresTotal,
		m.RecordsProcessedTotal,
		m.VocabEntriesIndexed,
		m.IndexFlushesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
