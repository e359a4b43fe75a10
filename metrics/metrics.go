// Package metrics exposes Prometheus metrics for caches, strategies and request execution.
//
// Every Record method is safe to call on a nil *Collector, so components take an
// optional collector and never check for nil themselves.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache read results.
const (
	ReadHit   = "hit"
	ReadStale = "stale"
	ReadMiss  = "miss"
)

// Collector provides Prometheus metrics for taskguard. It is safe for concurrent use.
type Collector struct {
	cacheReads  *prometheus.CounterVec
	cacheEvents *prometheus.CounterVec
	tierErrors  *prometheus.CounterVec

	strategyOutcomes *prometheus.CounterVec

	executions         *prometheus.CounterVec
	executionDuration  *prometheus.HistogramVec
	executionsInFlight *prometheus.GaugeVec
}

// NewCollector creates a collector on the default registerer.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector using the supplied registerer.
func NewCollectorWithRegistry(registry prometheus.Registerer) *Collector {
	factory := promauto.With(registry)
	return &Collector{
		cacheReads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskguard_cache_reads_total",
				Help: "Total number of cache reads by tier and result (hit, stale, miss)",
			},
			[]string{"tier", "result"},
		),
		cacheEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskguard_cache_events_total",
				Help: "Total number of cache lifecycle events emitted",
			},
			[]string{"tier", "event"},
		),
		tierErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskguard_cache_tier_errors_total",
				Help: "Total number of tier operations that failed and were skipped",
			},
			[]string{"tier", "operation"},
		),
		strategyOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskguard_strategy_outcomes_total",
				Help: "Total number of notable strategy outcomes",
			},
			[]string{"strategy", "outcome"},
		),
		executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskguard_executions_total",
				Help: "Total number of executed requests",
			},
			[]string{"name", "status"},
		),
		executionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskguard_execution_duration_seconds",
				Help:    "Duration of executed requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"name", "status"},
		),
		executionsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "taskguard_executions_in_flight",
				Help: "Number of requests currently executing",
			},
			[]string{"name"},
		),
	}
}

// RecordCacheRead counts a read of tier with result ReadHit, ReadStale or ReadMiss.
func (c *Collector) RecordCacheRead(tier, result string) {
	if c == nil {
		return
	}

	c.cacheReads.WithLabelValues(tier, result).Inc()
}

// RecordCacheEvent counts an emitted event.
func (c *Collector) RecordCacheEvent(tier, event string) {
	if c == nil {
		return
	}

	c.cacheEvents.WithLabelValues(tier, event).Inc()
}

// RecordTierError counts a failed tier operation.
func (c *Collector) RecordTierError(tier, operation string) {
	if c == nil {
		return
	}

	c.tierErrors.WithLabelValues(tier, operation).Inc()
}

// RecordStrategy counts a strategy outcome such as a shared dedup result or a retry.
func (c *Collector) RecordStrategy(strategy, outcome string) {
	if c == nil {
		return
	}

	c.strategyOutcomes.WithLabelValues(strategy, outcome).Inc()
}

// RecordExecutionStart increments the in-flight gauge for name.
func (c *Collector) RecordExecutionStart(name string) {
	if c == nil {
		return
	}

	c.executionsInFlight.WithLabelValues(name).Inc()
}

// RecordExecutionEnd decrements the in-flight gauge and records the outcome.
func (c *Collector) RecordExecutionEnd(name string, duration time.Duration, err error) {
	if c == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	c.executionsInFlight.WithLabelValues(name).Dec()
	c.executions.WithLabelValues(name, status).Inc()
	c.executionDuration.WithLabelValues(name, status).Observe(duration.Seconds())
}
