package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var (
	// Global logger instance
	Logger *zap.Logger

	violationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "violations_total",
			Help: "Total number of policy violations detected",
		},
		[]string{"kind"},
	)

	enforcementActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enforcement_actions_total",
			Help: "Total number of enforcement actions applied",
		},
		[]string{"action"},
	)

	classifierFailOpenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "classifier_failopen_total",
			Help: "Number of classifier failures treated as no violation",
		},
	)

	messageProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "message_processing_duration_seconds",
			Help:    "Time spent processing messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	classifierDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classifier_call_duration_seconds",
			Help:    "Time spent on classifier backend calls, retries included",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func Init(ctx context.Context, metricsAddr string) error {
	var err error
	Logger, err = zap.NewProduction()
	if err != nil {
		return err
	}

	prometheus.MustRegister(violationsTotal)
	prometheus.MustRegister(enforcementActionsTotal)
	prometheus.MustRegister(classifierFailOpenTotal)
	prometheus.MustRegister(messageProcessingDuration)
	prometheus.MustRegister(classifierDuration)

	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			log.WithError(err).Error("metrics server failed")
		}
	}()

	return nil
}

// RecordViolation records one detected violation by kind
func RecordViolation(kind string) {
	violationsTotal.WithLabelValues(kind).Inc()
}

// RecordEnforcement records one applied enforcement action
func RecordEnforcement(action string) {
	enforcementActionsTotal.WithLabelValues(action).Inc()
}

// RecordFailOpen records a classifier failure that degraded to no violation
func RecordFailOpen() {
	classifierFailOpenTotal.Inc()
}

// ObserveClassifierCall records one classifier round-trip duration
func ObserveClassifierCall(seconds float64) {
	classifierDuration.Observe(seconds)
}

// StartMessageProcessing returns a function to record message processing duration
func StartMessageProcessing() func(status string) {
	timer := prometheus.NewTimer(nil)
	return func(status string) {
		messageProcessingDuration.WithLabelValues(status).Observe(timer.ObserveDuration().Seconds())
	}
}
