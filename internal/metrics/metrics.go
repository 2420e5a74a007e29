// Package metrics exposes Prometheus collectors for the soil monitor
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	soilSaturation = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "soil_monitor",
			Name:      "saturation_percent",
			Help:      "Most recent soil saturation reading.",
		},
	)

	airTemperature = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "soil_monitor",
			Name:      "air_temperature_celsius",
			Help:      "Most recent air temperature reading.",
		},
	)

	samples = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soil_monitor",
			Subsystem: "sampler",
			Name:      "samples_total",
			Help:      "Total number of soil samples taken.",
		},
		[]string{"result"},
	)

	breaches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soil_monitor",
			Subsystem: "sampler",
			Name:      "breaches_total",
			Help:      "Total number of plant profile limits crossed.",
		},
		[]string{"kind"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soil_monitor",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "soil_monitor",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		soilSaturation,
		airTemperature,
		samples,
		breaches,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveSoil records the latest live values.
func ObserveSoil(saturation int, temp float64) {
	soilSaturation.Set(float64(saturation))
	airTemperature.Set(temp)
}

// RecordSample counts a sampling attempt and the limits it crossed.
func RecordSample(err error, breachKinds ...string) {
	if err != nil {
		samples.WithLabelValues("error").Inc()
		return
	}
	samples.WithLabelValues("ok").Inc()
	for _, kind := range breachKinds {
		breaches.WithLabelValues(kind).Inc()
	}
}

// GinMiddleware records request counts and latencies by route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		if path == "/metrics" {
			return
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
