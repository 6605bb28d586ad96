// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "call_review"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Request metrics (gRPC and HTTP)
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Review run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram

	// Merge metrics
	MergesTotal       *prometheus.CounterVec
	MergedWords       prometheus.Histogram
	ConversationTurns prometheus.Histogram

	// Validation metrics
	FieldsValidated prometheus.Counter
	IssuesTotal     *prometheus.CounterVec
	EvidenceTotal   *prometheus.CounterVec
	IssuesResolved  *prometheus.CounterVec

	// Audio metrics
	AudioBytesReceived prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// ASR metrics
	ASRLatency *prometheus.HistogramVec
	ASRErrors  *prometheus.CounterVec

	// Form generator metrics
	FormGenLatency  *prometheus.HistogramVec
	FormGenErrors   *prometheus.CounterVec
	FormParseErrors prometheus.Counter

	// Backpressure metrics
	LimitExceeded *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of API requests by transport, method and code",
		}, []string{"transport", "method", "code"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		}, []string{"transport", "method"}),

		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of review runs by outcome",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of review runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),

		MergesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Total number of channel merges by outcome",
		}, []string{"status"}),
		MergedWords: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "merged_words",
			Help:      "Number of words in merged conversations",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 7),
		}),
		ConversationTurns: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversation_turns",
			Help:      "Number of turns in merged conversations",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),

		FieldsValidated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fields_validated_total",
			Help:      "Total number of form fields validated",
		}),
		IssuesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_total",
			Help:      "Total number of validation issues by kind",
		}, []string{"kind"}),
		EvidenceTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evidence_total",
			Help:      "Total number of evidence lookups by match type",
		}, []string{"match"}),
		IssuesResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_closed_total",
			Help:      "Total number of issues closed by final state",
		}, []string{"state"}),

		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		ASRLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "asr_latency_seconds",
			Help:      "Batch transcription latency per channel in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"provider"}),
		ASRErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asr_errors_total",
			Help:      "Total number of transcription errors",
		}, []string{"provider"}),

		FormGenLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "formgen_latency_seconds",
			Help:      "Form generation latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
		FormGenErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "formgen_errors_total",
			Help:      "Total number of form generation errors",
		}, []string{"provider"}),
		FormParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "form_parse_errors_total",
			Help:      "Total number of generated forms that could not be parsed",
		}),

		LimitExceeded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "limit_exceeded_total",
			Help:      "Total number of runs rejected by input limits",
		}, []string{"limit_type"}),
	}
}

// RecordRequest records one API call.
func (m *Metrics) RecordRequest(transport, method, code string, durationSeconds float64) {
	m.RequestsTotal.WithLabelValues(transport, method, code).Inc()
	m.RequestDuration.WithLabelValues(transport, method).Observe(durationSeconds)
}

// RecordRun records the end of a review run.
func (m *Metrics) RecordRun(success bool, durationSeconds float64) {
	m.RunDuration.Observe(durationSeconds)
	if success {
		m.RunsTotal.WithLabelValues("success").Inc()
	} else {
		m.RunsTotal.WithLabelValues("failed").Inc()
	}
}

// RecordMerge records a merge. On error words and turns are not observed.
func (m *Metrics) RecordMerge(words, turns int, err error) {
	if err != nil {
		m.MergesTotal.WithLabelValues("failed").Inc()
		return
	}
	m.MergesTotal.WithLabelValues("success").Inc()
	m.MergedWords.Observe(float64(words))
	m.ConversationTurns.Observe(float64(turns))
}

// RecordFieldsValidated records fields checked by one validation pass.
func (m *Metrics) RecordFieldsValidated(n int) {
	m.FieldsValidated.Add(float64(n))
}

// RecordIssue records one issue and how its evidence was found.
func (m *Metrics) RecordIssue(kind, match string) {
	m.IssuesTotal.WithLabelValues(kind).Inc()
	m.EvidenceTotal.WithLabelValues(match).Inc()
}

// RecordIssueClosed records an issue leaving the open state.
func (m *Metrics) RecordIssueClosed(state string) {
	m.IssuesResolved.WithLabelValues(state).Inc()
}

// RecordAudioReceived records audio bytes received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordASR records one channel transcription.
func (m *Metrics) RecordASR(provider string, err error, latencySeconds float64) {
	m.ASRLatency.WithLabelValues(provider).Observe(latencySeconds)
	if err != nil {
		m.ASRErrors.WithLabelValues(provider).Inc()
	}
}

// RecordFormGen records one form generation call.
func (m *Metrics) RecordFormGen(provider string, err error, latencySeconds float64) {
	m.FormGenLatency.WithLabelValues(provider).Observe(latencySeconds)
	if err != nil {
		m.FormGenErrors.WithLabelValues(provider).Inc()
	}
}

// RecordFormParseError records generator output that did not parse.
func (m *Metrics) RecordFormParseError() {
	m.FormParseErrors.Inc()
}

// RecordLimitExceeded records when an input limit is exceeded.
func (m *Metrics) RecordLimitExceeded(limitType string) {
	m.LimitExceeded.WithLabelValues(limitType).Inc()
}
