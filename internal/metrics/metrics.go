package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kdstore"

// Metrics exports cache and HTTP statistics to Prometheus. It implements
// cache.Observer.
type Metrics struct {
	registry *prometheus.Registry

	requestLatency *prometheus.HistogramVec
	loadLatency    *prometheus.HistogramVec
	persistLatency *prometheus.HistogramVec
	persistedBytes prometheus.Counter
	evictions      prometheus.Counter
	evictedBytes   prometheus.Counter
	residentBytes  prometheus.Gauge
}

// New creates metrics on a private registry that also carries the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		loadLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tree_load_duration_seconds",
			Help:      "Latency of loading trees from storage",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		persistLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tree_persist_duration_seconds",
			Help:      "Latency of writing trees to storage",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		persistedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_persisted_bytes_total",
			Help:      "Bytes written to storage",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_evictions_total",
			Help:      "Trees released from memory to fit the budget",
		}),
		evictedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_evicted_bytes_total",
			Help:      "Estimated bytes released by evictions",
		}),
		residentBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resident_bytes",
			Help:      "Estimated footprint of trees held in memory",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestLatency,
		m.loadLatency,
		m.persistLatency,
		m.persistedBytes,
		m.evictions,
		m.evictedBytes,
		m.residentBytes,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requestLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *Metrics) OnLoad(d time.Duration, err error) {
	m.loadLatency.WithLabelValues(statusLabel(err)).Observe(d.Seconds())
}

func (m *Metrics) OnPersist(d time.Duration, bytes int, err error) {
	m.persistLatency.WithLabelValues(statusLabel(err)).Observe(d.Seconds())
	if err == nil {
		m.persistedBytes.Add(float64(bytes))
	}
}

func (m *Metrics) OnEvict(bytes int64) {
	m.evictions.Inc()
	m.evictedBytes.Add(float64(bytes))
}

func (m *Metrics) OnResidentBytes(bytes int64) {
	m.residentBytes.Set(float64(bytes))
}
