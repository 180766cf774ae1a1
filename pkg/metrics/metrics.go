package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EvaluationsTotal counts robustness evaluations by kind and outcome
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cropwise_evaluations_total",
		Help: "Total robustness evaluations by kind and status",
	}, []string{"kind", "status"})

	// EvaluationDuration tracks evaluation latency
	EvaluationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cropwise_evaluation_duration_seconds",
		Help:    "Evaluation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"kind"})

	// ModelPredictionsTotal counts classifier invocations by model and status
	ModelPredictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cropwise_model_predictions_total",
		Help: "Total classifier invocations by model and status",
	}, []string{"model", "status"})

	// HTTPRequestDuration tracks API latency
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cropwise_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// HistoryRecordsTotal counts asynchronous history writes by outcome
	HistoryRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cropwise_history_records_total",
		Help: "History records by result (saved, failed, dropped)",
	}, []string{"result"})

	// FallbacksTotal counts default values served when a collaborator failed
	FallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cropwise_fallbacks_total",
		Help: "Fallback values served by source",
	}, []string{"source"})
)

// Status returns the metric label for an error outcome
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
