package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SubmissionMetrics содержит метрики оформления заказов.
type SubmissionMetrics struct {
	submissionsStarted   prometheus.Counter
	submissionsSucceeded prometheus.Counter
	// Неудачи по шагу, на котором остановилось оформление.
	submissionsFailed *prometheus.CounterVec
	shopsCreated      prometheus.Counter

	submissionDuration prometheus.Histogram
	stepDuration       *prometheus.HistogramVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	activeSubmissions prometheus.Gauge
}

// NewSubmissionMetrics регистрирует метрики в глобальном registry.
func NewSubmissionMetrics() *SubmissionMetrics {
	return NewSubmissionMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewSubmissionMetricsWithRegisterer регистрирует метрики в переданном registry.
func NewSubmissionMetricsWithRegisterer(registerer prometheus.Registerer) *SubmissionMetrics {
	return &SubmissionMetrics{
		submissionsStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_submissions_started_total",
			Help: "Total number of order submissions started",
		}),
		submissionsSucceeded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_submissions_succeeded_total",
			Help: "Total number of order submissions completed successfully",
		}),
		submissionsFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_submissions_failed_total",
			Help: "Total number of failed order submissions by failing step",
		}, []string{"step"}),
		shopsCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_shops_created_total",
			Help: "Total number of shops auto-created during submission",
		}),
		submissionDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "orderdesk_submission_duration_seconds",
			Help:    "Duration of order submissions in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orderdesk_submission_step_duration_seconds",
			Help:    "Duration of individual submission steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_outbox_events_enqueued_total",
			Help: "Total number of events written to the outbox",
		}),
		activeSubmissions: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orderdesk_active_submissions",
			Help: "Number of submissions currently in progress",
		}),
	}
}

// RecordSubmissionStarted увеличивает счётчик и число активных оформлений.
func (m *SubmissionMetrics) RecordSubmissionStarted() {
	m.submissionsStarted.Inc()
	m.activeSubmissions.Inc()
}

// RecordSubmissionFinished фиксирует результат и длительность оформления.
// Пустой failedStep означает успех.
func (m *SubmissionMetrics) RecordSubmissionFinished(failedStep string, duration time.Duration) {
	m.activeSubmissions.Dec()
	m.submissionDuration.Observe(duration.Seconds())
	if failedStep == "" {
		m.submissionsSucceeded.Inc()
		return
	}
	m.submissionsFailed.WithLabelValues(failedStep).Inc()
}

// RecordStepDuration записывает время выполнения шага.
func (m *SubmissionMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

func (m *SubmissionMetrics) RecordShopCreated() {
	m.shopsCreated.Inc()
}

func (m *SubmissionMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

func (m *SubmissionMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
