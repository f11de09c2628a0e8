// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "live_interpreter"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal    prometheus.Counter
	SessionsActive   prometheus.Gauge
	SessionsEnded    *prometheus.CounterVec
	SessionsRejected *prometheus.CounterVec
	SessionDuration  prometheus.Histogram

	// Transcript metrics
	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter
	SegmentsFinalized  prometheus.Counter
	SegmentsDropped    *prometheus.CounterVec

	// Translation metrics
	TranslationsTotal  *prometheus.CounterVec
	TranslationLatency prometheus.Histogram
	TranslationRetries prometheus.Counter

	// Synthesis metrics
	SynthesesTotal   *prometheus.CounterVec
	SynthesisLatency prometheus.Histogram
	SynthesisChunks  prometheus.Histogram

	// Audio metrics
	AudioFramesCaptured prometheus.Counter

	// Recognition metrics
	RecognitionRestarts prometheus.Counter
	RecognitionErrors   *prometheus.CounterVec

	// Kafka export metrics
	KafkaExportTotal   *prometheus.CounterVec
	KafkaExportErrors  *prometheus.CounterVec
	KafkaExportLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of interpretation sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active sessions",
		}),
		SessionsEnded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Total number of sessions ended",
		}, []string{"outcome"}),
		SessionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_rejected_total",
			Help:      "Total number of session starts rejected",
		}, []string{"reason"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of interpretation sessions in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),

		TranscriptsPartial: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total number of partial transcripts received",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of engine-final transcripts received",
		}),
		SegmentsFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_finalized_total",
			Help:      "Total number of transcript segments finalized for translation",
		}),
		SegmentsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_dropped_total",
			Help:      "Total number of segments dropped",
		}, []string{"reason"}),

		TranslationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_total",
			Help:      "Total number of translation results",
		}, []string{"status"}),
		TranslationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "translation_latency_seconds",
			Help:      "Translation latency per segment in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		TranslationRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_retries_total",
			Help:      "Total number of translation retry attempts",
		}),

		SynthesesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "syntheses_total",
			Help:      "Total number of synthesis results",
		}, []string{"status"}),
		SynthesisLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_latency_seconds",
			Help:      "Synthesis latency per segment in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 15},
		}),
		SynthesisChunks: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_chunks",
			Help:      "Number of chunks per synthesized segment",
			Buckets:   []float64{1, 2, 3, 5, 8, 13},
		}),

		AudioFramesCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_captured_total",
			Help:      "Total audio frames captured",
		}),

		RecognitionRestarts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_restarts_total",
			Help:      "Total number of recognition stream restarts",
		}),
		RecognitionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_errors_total",
			Help:      "Total number of recognition errors",
		}, []string{"kind"}),

		KafkaExportTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_export_total",
			Help:      "Total number of Kafka messages exported",
		}, []string{"topic", "event_type"}),
		KafkaExportErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_export_errors_total",
			Help:      "Total number of Kafka export errors",
		}, []string{"topic", "event_type"}),
		KafkaExportLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_export_latency_seconds",
			Help:      "Kafka export latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending with the given outcome.
func (m *Metrics) RecordSessionEnd(outcome string, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
	m.SessionsEnded.WithLabelValues(outcome).Inc()
}

// RecordSessionRejected records a rejected session start.
func (m *Metrics) RecordSessionRejected(reason string) {
	m.SessionsRejected.WithLabelValues(reason).Inc()
}

// RecordTranscript records a transcript event.
func (m *Metrics) RecordTranscript(isFinal bool) {
	if isFinal {
		m.TranscriptsFinal.Inc()
	} else {
		m.TranscriptsPartial.Inc()
	}
}

// RecordSegmentFinalized records a segment handed to translation.
func (m *Metrics) RecordSegmentFinalized() {
	m.SegmentsFinalized.Inc()
}

// RecordSegmentDropped records a dropped segment.
func (m *Metrics) RecordSegmentDropped(reason string) {
	m.SegmentsDropped.WithLabelValues(reason).Inc()
}

// RecordTranslation records a translation result.
func (m *Metrics) RecordTranslation(status string, latencySeconds float64) {
	m.TranslationsTotal.WithLabelValues(status).Inc()
	m.TranslationLatency.Observe(latencySeconds)
}

// RecordTranslationRetry records one translation retry attempt.
func (m *Metrics) RecordTranslationRetry() {
	m.TranslationRetries.Inc()
}

// RecordSynthesis records a synthesis result.
func (m *Metrics) RecordSynthesis(status string, latencySeconds float64, chunks int) {
	m.SynthesesTotal.WithLabelValues(status).Inc()
	m.SynthesisLatency.Observe(latencySeconds)
	m.SynthesisChunks.Observe(float64(chunks))
}

// RecordAudioFrame records a captured audio frame.
func (m *Metrics) RecordAudioFrame() {
	m.AudioFramesCaptured.Inc()
}

// RecordRecognitionRestart records a recognition stream restart.
func (m *Metrics) RecordRecognitionRestart() {
	m.RecognitionRestarts.Inc()
}

// RecordRecognitionError records a recognition error by fault kind.
func (m *Metrics) RecordRecognitionError(kind string) {
	m.RecognitionErrors.WithLabelValues(kind).Inc()
}

// RecordKafkaExport records a Kafka export attempt.
func (m *Metrics) RecordKafkaExport(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaExportTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaExportLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaExportErrors.WithLabelValues(topic, eventType).Inc()
	}
}
