package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"live-interpreter-service/internal/model"
	"live-interpreter-service/internal/observability/metrics"
)

// Exporter publishes finalized transcript and translation events to Kafka
// for external analytics consumers. The pipeline itself never persists; a
// disabled exporter (no brokers) degrades to log-only mode.
type Exporter struct {
	writerTranscript  *kafka.Writer
	writerTranslation *kafka.Writer
	principal         string
	topicTranscript   string
	topicTranslation  string
	enabled           bool
	metrics           *metrics.Metrics
}

// ExporterConfig holds Kafka exporter configuration.
type ExporterConfig struct {
	Brokers          []string
	TopicTranscript  string
	TopicTranslation string
	Principal        string
	Enabled          bool
}

// NewExporter creates the Kafka exporter with separate topics for finalized
// transcripts and translation results.
func NewExporter(cfg *ExporterConfig) *Exporter {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka export disabled (nil config), log-only mode")
		return &Exporter{enabled: false, metrics: m}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka export disabled, log-only mode")
		return &Exporter{
			principal:        cfg.Principal,
			topicTranscript:  cfg.TopicTranscript,
			topicTranslation: cfg.TopicTranslation,
			enabled:          false,
			metrics:          m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTranscript", cfg.TopicTranscript).
		Str("topicTranslation", cfg.TopicTranslation).
		Str("principal", cfg.Principal).
		Msg("Kafka exporter initialized")

	return &Exporter{
		writerTranscript:  newWriter(cfg.TopicTranscript),
		writerTranslation: newWriter(cfg.TopicTranslation),
		principal:         cfg.Principal,
		topicTranscript:   cfg.TopicTranscript,
		topicTranslation:  cfg.TopicTranslation,
		enabled:           true,
		metrics:           m,
	}
}

// ExportTranscript publishes a finalized transcript event keyed by session.
func (e *Exporter) ExportTranscript(ctx context.Context, sessionID string, ev model.TranscriptEvent) error {
	return e.export(ctx, e.writerTranscript, e.topicTranscript, "transcript", sessionID, ev)
}

// ExportTranslation publishes a completed translation result keyed by session.
func (e *Exporter) ExportTranslation(ctx context.Context, sessionID string, res model.TranslationResult) error {
	return e.export(ctx, e.writerTranslation, e.topicTranslation, "translation", sessionID, res)
}

func (e *Exporter) export(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", e.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Exporting event")

	if !e.enabled || writer == nil {
		e.metrics.RecordKafkaExport(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(e.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		e.metrics.RecordKafkaExport(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	e.metrics.RecordKafkaExport(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (e *Exporter) Close() error {
	var err error
	if e.writerTranscript != nil {
		if closeErr := e.writerTranscript.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Error closing transcript writer")
			err = closeErr
		}
	}
	if e.writerTranslation != nil {
		if closeErr := e.writerTranslation.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Error closing translation writer")
			err = closeErr
		}
	}
	return err
}
