// Package metrics holds the Prometheus metrics of the supply chain service.
package metrics

import (
	"strconv"
	"time"

	"github.com/meikuraledutech/supplychain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector owns a private registry, so several collectors can live in one
// process without duplicate registration.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Removals         prometheus.Counter
	RejectedRemovals prometheus.Counter
	RemovedProcesses prometheus.Counter
	RemovedLinks     prometheus.Counter
	Undos            prometheus.Counter
	Redos            prometheus.Counter
	OpenSessions     prometheus.Gauge
}

// NewCollector creates and registers every metric under namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Removals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supply_chain_removals_total",
			Help:      "Total number of executed supply chain removals",
		}),
		RejectedRemovals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supply_chain_removals_rejected_total",
			Help:      "Total number of supply chain removals rejected as unsafe",
		}),
		RemovedProcesses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "removed_processes_total",
			Help:      "Total number of processes taken out by supply chain removals",
		}),
		RemovedLinks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "removed_links_total",
			Help:      "Total number of links taken out by supply chain removals",
		}),
		Undos: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undos_total",
			Help:      "Total number of undone edits",
		}),
		Redos: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redos_total",
			Help:      "Total number of redone edits",
		}),
		OpenSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sessions",
			Help:      "Number of product systems currently open for editing",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Removals,
		c.RejectedRemovals,
		c.RemovedProcesses,
		c.RemovedLinks,
		c.Undos,
		c.Redos,
		c.OpenSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveRequest records one served HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, took time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// ObserveRemoval records an executed supply chain removal.
func (c *Collector) ObserveRemoval(r supplychain.Removal) {
	c.Removals.Inc()
	c.RemovedProcesses.Add(float64(len(r.Processes)))
	c.RemovedLinks.Add(float64(len(r.Links)))
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
