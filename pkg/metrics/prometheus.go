package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	callsTotal      *prometheus.CounterVec
	tokensDenied    *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	failuresTotal   *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec
	callLatency     *prometheus.HistogramVec
	predictionsMade *prometheus.CounterVec
	accuracyRecords prometheus.Counter
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		callsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyzer_calls_total",
				Help: "Total number of upstream call attempts",
			},
			[]string{"service", "outcome"},
		),
		tokensDenied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyzer_tokens_denied_total",
				Help: "Total number of rate-limiter denials",
			},
			[]string{"service"},
		),
		retriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyzer_retries_total",
				Help: "Total number of call retries scheduled",
			},
			[]string{"service"},
		),
		failuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyzer_terminal_failures_total",
				Help: "Total number of calls that exhausted their attempts",
			},
			[]string{"service", "kind"},
		),
		queueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "analyzer_queue_depth",
				Help: "Number of calls currently queued per service",
			},
			[]string{"service"},
		),
		callLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analyzer_call_duration_seconds",
				Help:    "Duration of upstream calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		predictionsMade: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyzer_predictions_total",
				Help: "Total number of prediction records emitted",
			},
			[]string{"symbol"},
		),
		accuracyRecords: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "analyzer_accuracy_records_total",
				Help: "Total number of accuracy records materialized",
			},
		),
	}
}

// RecordCall records an upstream call attempt and its outcome.
func (r *Recorder) RecordCall(service, outcome string) {
	r.callsTotal.WithLabelValues(service, outcome).Inc()
}

// RecordTokenDenied records a rate-limiter denial.
func (r *Recorder) RecordTokenDenied(service string) {
	r.tokensDenied.WithLabelValues(service).Inc()
}

// RecordRetry records a scheduled retry.
func (r *Recorder) RecordRetry(service string) {
	r.retriesTotal.WithLabelValues(service).Inc()
}

// RecordTerminalFailure records a call that exhausted its attempts.
func (r *Recorder) RecordTerminalFailure(service, kind string) {
	r.failuresTotal.WithLabelValues(service, kind).Inc()
}

// RecordQueueDepth records the current queue depth for a service.
func (r *Recorder) RecordQueueDepth(service string, depth int) {
	r.queueDepth.WithLabelValues(service).Set(float64(depth))
}

// RecordCallLatency records upstream call latency in seconds.
func (r *Recorder) RecordCallLatency(service string, seconds float64) {
	r.callLatency.WithLabelValues(service).Observe(seconds)
}

// RecordPrediction records an emitted prediction.
func (r *Recorder) RecordPrediction(symbol string) {
	r.predictionsMade.WithLabelValues(symbol).Inc()
}

// RecordAccuracyResolved records a materialized accuracy record.
func (r *Recorder) RecordAccuracyResolved() {
	r.accuracyRecords.Inc()
}
