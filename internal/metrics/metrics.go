// Package metrics exposes the engine's counters as Prometheus gauges and
// counters, mirroring DownloadStats and the rate limiter's per-domain
// cumulative delay so an operator can watch a run from outside the
// process.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the registered series. One Collector is shared across
// a process_queue run.
type Collector struct {
	Completed     prometheus.Counter
	Failed        prometheus.Counter
	Retried       prometheus.Counter
	InFlight      prometheus.Gauge
	QueueDepth    *prometheus.GaugeVec
	DomainDelayMS *prometheus.GaugeVec
	BytesWritten  prometheus.Counter
}

// NewCollector builds and registers a Collector against reg. Registering
// against a caller-supplied registry (rather than the global default)
// keeps repeated test construction from panicking on duplicate
// registration.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fetchcite",
			Name:      "downloads_completed_total",
			Help:      "Total number of downloads that completed successfully.",
		}),
		Failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fetchcite",
			Name:      "downloads_failed_total",
			Help:      "Total number of downloads that ended in a terminal failure.",
		}),
		Retried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fetchcite",
			Name:      "downloads_retried_total",
			Help:      "Total number of retry attempts issued.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fetchcite",
			Name:      "downloads_in_flight",
			Help:      "Number of downloads currently holding a concurrency permit.",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fetchcite",
			Name:      "queue_depth",
			Help:      "Number of queue rows by status.",
		}, []string{"status"}),
		DomainDelayMS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fetchcite",
			Name:      "ratelimit_cumulative_delay_ms",
			Help:      "Cumulative time spent waiting on the per-domain rate limiter.",
		}, []string{"domain"}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fetchcite",
			Name:      "bytes_written_total",
			Help:      "Total bytes written to disk across all downloads.",
		}),
	}

	reg.MustRegister(c.Completed, c.Failed, c.Retried, c.InFlight, c.QueueDepth, c.DomainDelayMS, c.BytesWritten)
	return c
}

// ObserveQueueCounts records a snapshot of queue depth by status.
func (c *Collector) ObserveQueueCounts(counts map[string]int64) {
	for status, n := range counts {
		c.QueueDepth.WithLabelValues(status).Set(float64(n))
	}
}

// RecordCompleted increments the completed counter and the bytes
// written counter together, since a completed download is exactly
// where both advance.
func (c *Collector) RecordCompleted(bytes int64) {
	c.Completed.Inc()
	if bytes > 0 {
		c.BytesWritten.Add(float64(bytes))
	}
}

// RecordFailed increments the terminal-failure counter.
func (c *Collector) RecordFailed() {
	c.Failed.Inc()
}

// RecordRetry increments the retry counter.
func (c *Collector) RecordRetry() {
	c.Retried.Inc()
}

// ObserveDomainDelay records a domain's cumulative rate-limiter wait.
func (c *Collector) ObserveDomainDelay(domain string, delay time.Duration) {
	c.DomainDelayMS.WithLabelValues(domain).Add(float64(delay.Milliseconds()))
}
