package httpserver

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tinytelemetry/netglobe/internal/model"
)

const metricsNamespace = "netglobe"

var histogramBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// metrics owns a per-server registry rather than the global default one.
type metrics struct {
	registry        *prometheus.Registry
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func newMetrics(reader model.SnapshotReader, hub *Hub) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		newPipelineCollector(reader, hub),
		collectors.NewGoCollector(),
	)
	return m
}

// instrument records every request under its route template, not the raw
// path, to keep label cardinality fixed.
func (m *metrics) instrument(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	labels := prometheus.Labels{
		"method": c.Request.Method,
		"route":  route,
		"status": strconv.Itoa(c.Writer.Status()),
	}
	m.requestTotal.With(labels).Inc()
	m.requestDuration.With(labels).Observe(time.Since(start).Seconds())
}

func (m *metrics) handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// pipelineCollector reads one snapshot per scrape so all gauges describe the
// same instant.
type pipelineCollector struct {
	reader model.SnapshotReader
	hub    *Hub

	ingested      *prometheus.Desc
	windowEvents  *prometheus.Desc
	windowThreats *prometheus.Desc
	bandwidth     *prometheus.Desc
	pps           *prometheus.Desc
	avgThreat     *prometheus.Desc
	visuals       *prometheus.Desc
	streamClients *prometheus.Desc
}

func newPipelineCollector(reader model.SnapshotReader, hub *Hub) *pipelineCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "pipeline", name), help, labels, nil)
	}
	return &pipelineCollector{
		reader:        reader,
		hub:           hub,
		ingested:      desc("events_ingested_total", "Events ingested since start"),
		windowEvents:  desc("window_events", "Events held in the rolling window"),
		windowThreats: desc("window_threats", "Events held in the threat window"),
		bandwidth:     desc("window_bytes", "Sum of packet sizes across the rolling window"),
		pps:           desc("packets_per_second", "Recent packets-per-second estimate"),
		avgThreat:     desc("avg_threat_level", "Mean threat level across the threat window"),
		visuals:       desc("visual_entities", "Live visual entities by kind", "kind"),
		streamClients: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "stream", "clients"), "Connected snapshot stream clients", nil, nil),
	}
}

func (c *pipelineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ingested
	ch <- c.windowEvents
	ch <- c.windowThreats
	ch <- c.bandwidth
	ch <- c.pps
	ch <- c.avgThreat
	ch <- c.visuals
	ch <- c.streamClients
}

func (c *pipelineCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.reader.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.ingested, prometheus.CounterValue, float64(snap.TotalCount))
	ch <- prometheus.MustNewConstMetric(c.windowEvents, prometheus.GaugeValue, float64(len(snap.Events)))
	ch <- prometheus.MustNewConstMetric(c.windowThreats, prometheus.GaugeValue, float64(len(snap.Threats)))
	ch <- prometheus.MustNewConstMetric(c.bandwidth, prometheus.GaugeValue, float64(snap.Stats.TotalBandwidth))
	ch <- prometheus.MustNewConstMetric(c.pps, prometheus.GaugeValue, float64(snap.Stats.PacketsPerSecond))
	ch <- prometheus.MustNewConstMetric(c.avgThreat, prometheus.GaugeValue, snap.Stats.AvgThreatLevel)
	ch <- prometheus.MustNewConstMetric(c.visuals, prometheus.GaugeValue, float64(len(snap.Arcs)), "arc")
	ch <- prometheus.MustNewConstMetric(c.visuals, prometheus.GaugeValue, float64(len(snap.Rings)), "ring")
	ch <- prometheus.MustNewConstMetric(c.visuals, prometheus.GaugeValue, float64(len(snap.Points)), "point")
	ch <- prometheus.MustNewConstMetric(c.streamClients, prometheus.GaugeValue, float64(c.hub.Clients()))
}
