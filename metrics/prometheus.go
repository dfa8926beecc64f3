// Package metrics exports vecdir operation metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/vecdir"
)

const namespace = "vecdir"

var _ vecdir.MetricsCollector = (*PrometheusCollector)(nil)

// PrometheusCollector implements vecdir.MetricsCollector with Prometheus
// instruments. Register it with a prometheus.Registerer before use.
type PrometheusCollector struct {
	opLatency    *prometheus.HistogramVec
	ops          *prometheus.CounterVec
	deletes      *prometheus.CounterVec
	searchResult prometheus.Histogram
	buildVectors prometheus.Gauge
	indexBytes   prometheus.Gauge
}

// NewPrometheusCollector creates the collector's instruments.
func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of collection operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Collection operations by type and outcome.",
		}, []string{"op", "status"}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletes_total",
			Help:      "Successful delete calls by whether a live vector was removed.",
		}, []string{"hit"}),
		searchResult: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of results returned per search.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		buildVectors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_build_vectors",
			Help:      "Vectors in the most recently built index.",
		}),
		indexBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_index_size_bytes",
			Help:      "Size of the most recently persisted index.bin.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	c.opLatency.Describe(ch)
	c.ops.Describe(ch)
	c.deletes.Describe(ch)
	c.searchResult.Describe(ch)
	c.buildVectors.Describe(ch)
	c.indexBytes.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	c.opLatency.Collect(ch)
	c.ops.Collect(ch)
	c.deletes.Collect(ch)
	c.searchResult.Collect(ch)
	c.buildVectors.Collect(ch)
	c.indexBytes.Collect(ch)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *PrometheusCollector) observe(op string, d time.Duration, err error) {
	s := status(err)
	c.opLatency.WithLabelValues(op, s).Observe(d.Seconds())
	c.ops.WithLabelValues(op, s).Inc()
}

// RecordInsert implements vecdir.MetricsCollector.
func (c *PrometheusCollector) RecordInsert(d time.Duration, err error) {
	c.observe("insert", d, err)
}

// RecordDelete implements vecdir.MetricsCollector.
func (c *PrometheusCollector) RecordDelete(deleted bool, d time.Duration, err error) {
	c.observe("delete", d, err)
	if err != nil {
		return
	}
	if deleted {
		c.deletes.WithLabelValues("true").Inc()
	} else {
		c.deletes.WithLabelValues("false").Inc()
	}
}

// RecordSearch implements vecdir.MetricsCollector.
func (c *PrometheusCollector) RecordSearch(_, results int, d time.Duration, err error) {
	c.observe("search", d, err)
	if err == nil {
		c.searchResult.Observe(float64(results))
	}
}

// RecordBuild implements vecdir.MetricsCollector.
func (c *PrometheusCollector) RecordBuild(vectors int, sizeBytes int64, d time.Duration, err error) {
	c.observe("build", d, err)
	if err == nil {
		c.buildVectors.Set(float64(vectors))
		c.indexBytes.Set(float64(sizeBytes))
	}
}

// RecordLoad implements vecdir.MetricsCollector.
func (c *PrometheusCollector) RecordLoad(d time.Duration, err error) {
	c.observe("load", d, err)
}
