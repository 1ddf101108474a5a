// Package metrics exposes Prometheus counters for the reminder scheduler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records scheduler activity in Prometheus metrics.
type Collector struct {
	ticks         prometheus.Counter
	tickFailures  prometheus.Counter
	delivered     prometheus.Counter
	notifyFailed  *prometheus.CounterVec
	tickDurations prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventide_scheduler_ticks_total",
			Help: "Number of reminder scheduler ticks started.",
		}),
		tickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventide_scheduler_tick_failures_total",
			Help: "Number of ticks aborted by a store error.",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventide_reminders_delivered_total",
			Help: "Number of reminders marked delivered.",
		}),
		notifyFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventide_notifications_failed_total",
			Help: "Number of events whose notification could not be delivered, by reason.",
		}, []string{"reason"}),
		tickDurations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventide_tick_duration_seconds",
			Help:    "Wall time spent in one scheduler tick.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(c.ticks, c.tickFailures, c.delivered, c.notifyFailed, c.tickDurations)
	return c
}

// TickStarted counts one scheduler tick.
func (c *Collector) TickStarted() { c.ticks.Inc() }

// TickFailed counts a tick aborted by a store error.
func (c *Collector) TickFailed() { c.tickFailures.Inc() }

// RemindersDelivered adds n reminders marked as sent.
func (c *Collector) RemindersDelivered(n int) { c.delivered.Add(float64(n)) }

// NotificationFailed counts one failed event under reason ("send", "user", "compose").
func (c *Collector) NotificationFailed(reason string) {
	c.notifyFailed.WithLabelValues(reason).Inc()
}

// TickDuration observes the wall time of one tick.
func (c *Collector) TickDuration(d time.Duration) { c.tickDurations.Observe(d.Seconds()) }

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
