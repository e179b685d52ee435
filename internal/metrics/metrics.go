// Package metrics registers Prometheus instrumentation for the telemetry
// processing path and the trip persistence path.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "perfmon_"

var (
	registerOnce sync.Once

	samplesProcessed prometheus.Counter
	samplesSkipped   *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	tripsSaved       prometheus.Counter
	tripSaveFailures prometheus.Counter
	tripActive       prometheus.Gauge
)

// Init registers all metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		samplesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "samples_processed_total",
			Help: "Total telemetry samples scored",
		})
		samplesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "samples_skipped_total",
			Help: "Total telemetry samples skipped by reason",
		}, []string{"reason"})
		notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "notifications_total",
			Help: "Total scoring notifications emitted by type",
		}, []string{"type"})
		tripsSaved = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "trips_saved_total",
			Help: "Total trips persisted",
		})
		tripSaveFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "trip_save_failures_total",
			Help: "Total trip persistence failures",
		})
		tripActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "trip_active",
			Help: "1 while a trip is in progress, 0 otherwise",
		})

		prometheus.MustRegister(
			samplesProcessed,
			samplesSkipped,
			notifications,
			tripsSaved,
			tripSaveFailures,
			tripActive,
		)
	})
}

// IncSampleProcessed counts a scored sample.
func IncSampleProcessed() {
	if samplesProcessed != nil {
		samplesProcessed.Inc()
	}
}

// IncSampleSkipped counts a skipped sample by reason.
func IncSampleSkipped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if samplesSkipped != nil {
		samplesSkipped.WithLabelValues(reason).Inc()
	}
}

// IncNotification counts an emitted notification by type.
func IncNotification(kind string) {
	if kind == "" {
		kind = "info"
	}
	if notifications != nil {
		notifications.WithLabelValues(kind).Inc()
	}
}

// IncTripSaved counts a persisted trip.
func IncTripSaved() {
	if tripsSaved != nil {
		tripsSaved.Inc()
	}
}

// IncTripSaveFailure counts a trip persistence failure.
func IncTripSaveFailure() {
	if tripSaveFailures != nil {
		tripSaveFailures.Inc()
	}
}

// SetTripActive updates the active-trip gauge.
func SetTripActive(active bool) {
	if tripActive == nil {
		return
	}
	if active {
		tripActive.Set(1)
	} else {
		tripActive.Set(0)
	}
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
