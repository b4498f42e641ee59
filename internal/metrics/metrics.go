// Package metrics exposes Prometheus counters for scheduler interactions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector groups the slurmjm metrics. A nil *Collector is valid and
// records nothing, so components can take one optionally.
type Collector struct {
	submissions   *prometheus.CounterVec
	cancellations prometheus.Counter
	refreshes     *prometheus.CounterVec
	refreshTime   prometheus.Histogram
	queueRecords  *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// Submission outcomes.
const (
	OutcomeSubmitted       = "submitted"
	OutcomeAlreadyQueued   = "already_queued"
	OutcomeAlreadyComplete = "already_complete"
	OutcomeError           = "error"
)

// NewCollector creates the metrics and registers them with reg.
// Pass prometheus.NewRegistry() in tests to avoid global state.
func NewCollector(reg *prometheus.Registry) *Collector {
	c := &Collector{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slurmjm_queue_requests_total",
			Help: "Queue requests by outcome",
		}, []string{"outcome"}),
		cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slurmjm_jobs_cancelled_total",
			Help: "Scheduler jobs cancelled through scancel",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slurmjm_queue_refreshes_total",
			Help: "squeue refreshes by result",
		}, []string{"result"}),
		refreshTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slurmjm_queue_refresh_seconds",
			Help:    "Duration of squeue refreshes in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		queueRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "slurmjm_queue_records",
			Help: "Records in the last queue snapshot by state",
		}, []string{"state"}),
		gatherer: reg,
	}

	reg.MustRegister(
		c.submissions,
		c.cancellations,
		c.refreshes,
		c.refreshTime,
		c.queueRecords,
	)
	return c
}

// RecordQueue counts one Environment.Queue call by outcome.
func (c *Collector) RecordQueue(outcome string) {
	if c == nil {
		return
	}
	c.submissions.WithLabelValues(outcome).Inc()
}

// RecordCancel counts cancelled scheduler jobs.
func (c *Collector) RecordCancel(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.cancellations.Add(float64(n))
}

// RecordRefresh counts a refresh and its duration.
func (c *Collector) RecordRefresh(ok bool, seconds float64) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	c.refreshes.WithLabelValues(result).Inc()
	c.refreshTime.Observe(seconds)
}

// SetQueueRecords publishes the per-state record counts of a snapshot.
func (c *Collector) SetQueueRecords(counts map[string]int) {
	if c == nil {
		return
	}
	c.queueRecords.Reset()
	for state, n := range counts {
		c.queueRecords.WithLabelValues(state).Set(float64(n))
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
