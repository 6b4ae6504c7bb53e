// Package metrics holds the Prometheus collectors of the sync service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Sync metrics
	RecordsTotal       *prometheus.CounterVec
	BatchesTotal       *prometheus.CounterVec
	BatchSize          prometheus.Histogram
	CollectionsCreated prometheus.Counter

	// Existence cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Query metrics
	SearchRequestsTotal *prometheus.CounterVec

	// Backend metrics
	BackendRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics on registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "typesense_sync_records_total",
				Help: "Total number of change records applied to the index",
			},
			[]string{"action", "status"},
		),
		BatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "typesense_sync_batches_total",
				Help: "Total number of change batches processed",
			},
			[]string{"status"},
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "typesense_sync_batch_size",
				Help:    "Number of records per change batch",
				Buckets: prometheus.ExponentialBuckets(1, 2, 11),
			},
		),
		CollectionsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "typesense_sync_collections_created_total",
				Help: "Total number of collections created by the provisioner",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "typesense_sync_existence_cache_hits_total",
				Help: "Collection existence cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "typesense_sync_existence_cache_misses_total",
				Help: "Collection existence cache misses",
			},
		),
		SearchRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "typesense_sync_search_requests_total",
				Help: "Total number of proxied search requests",
			},
			[]string{"status"},
		),
		BackendRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "typesense_sync_backend_request_duration_seconds",
				Help:    "Typesense request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.RecordsTotal,
			m.BatchesTotal,
			m.BatchSize,
			m.CollectionsCreated,
			m.CacheHitsTotal,
			m.CacheMissesTotal,
			m.SearchRequestsTotal,
			m.BackendRequestDuration,
		)
	}

	return m
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordApplied counts one applied (or failed) record
func (m *Metrics) RecordApplied(action string, err error) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(action, status(err)).Inc()
}

// BatchProcessed counts one processed batch
func (m *Metrics) BatchProcessed(size int, err error) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(status(err)).Inc()
	m.BatchSize.Observe(float64(size))
}

// CollectionCreated counts a collection created by this process
func (m *Metrics) CollectionCreated() {
	if m == nil {
		return
	}
	m.CollectionsCreated.Inc()
}

// CacheLookup counts an existence cache lookup
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}
}

// SearchServed counts a proxied search
func (m *Metrics) SearchServed(err error) {
	if m == nil {
		return
	}
	m.SearchRequestsTotal.WithLabelValues(status(err)).Inc()
}

// ObserveBackend records the latency of one Typesense call
func (m *Metrics) ObserveBackend(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.BackendRequestDuration.WithLabelValues(operation, status(err)).Observe(time.Since(start).Seconds())
}
