// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ServiceConfig holds service identity and serving ports.
type ServiceConfig struct {
	Principal         string
	HTTPPort          string
	ObservabilityPort string
}

// AudioConfig holds capture cadence and level metering settings.
type AudioConfig struct {
	SampleRateHz  int
	FrameInterval time.Duration
	// LevelCeiling is the RMS value mapped to 1.0 on the normalized scale.
	LevelCeiling float64
}

// RecognizerConfig holds recognition stream settings and retry policy.
type RecognizerConfig struct {
	Provider       string // scripted, google
	SampleRateHz   int
	InterimResults bool
	MaxAttempts    int
	InitialBackoff time.Duration
}

// AggregatorConfig holds the transcript finalization policy.
type AggregatorConfig struct {
	Debounce    time.Duration
	MaxPartials int
}

// TranslateConfig holds the translation adapter policy.
type TranslateConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	// BackoffFactor multiplies the delay between successive retries.
	BackoffFactor int
	Timeout       time.Duration
	MaxInFlight   int
}

// SynthesisConfig holds the synthesis adapter policy.
type SynthesisConfig struct {
	ChunkThreshold int
	ChunkTimeout   time.Duration
	MaxInFlight    int
}

// SessionConfig holds session lifecycle limits.
type SessionConfig struct {
	DrainTimeout  time.Duration
	MaxAudioBytes int64
}

// KafkaConfig holds the optional event exporter settings.
type KafkaConfig struct {
	Enabled          bool
	Brokers          []string
	TopicTranscript  string
	TopicTranslation string
	Principal        string
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel string
}

// Config is the root configuration for the service.
type Config struct {
	Service       ServiceConfig
	Audio         AudioConfig
	Recognizer    RecognizerConfig
	Aggregator    AggregatorConfig
	Translate     TranslateConfig
	Synthesis     SynthesisConfig
	Session       SessionConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// Load reads configuration from environment variables, falling back to
// defaults on missing or unparseable values.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-live-interpreter")

	return &Config{
		Service: ServiceConfig{
			Principal:         principal,
			HTTPPort:          envOrDefault("HTTP_PORT", "8080"),
			ObservabilityPort: envOrDefault("OBSERVABILITY_PORT", "9090"),
		},
		Audio: AudioConfig{
			SampleRateHz:  envOrDefaultInt("AUDIO_SAMPLE_RATE_HZ", 16000),
			FrameInterval: envOrDefaultDuration("AUDIO_FRAME_INTERVAL", 20*time.Millisecond),
			LevelCeiling:  envOrDefaultFloat("AUDIO_LEVEL_CEILING", 12000),
		},
		Recognizer: RecognizerConfig{
			Provider:       envOrDefault("RECOGNIZER_PROVIDER", "scripted"),
			SampleRateHz:   envOrDefaultInt("RECOGNIZER_SAMPLE_RATE_HZ", 16000),
			InterimResults: envOrDefaultBool("RECOGNIZER_INTERIM_RESULTS", true),
			MaxAttempts:    envOrDefaultInt("RECOGNIZER_MAX_ATTEMPTS", 3),
			InitialBackoff: envOrDefaultDuration("RECOGNIZER_INITIAL_BACKOFF", 500*time.Millisecond),
		},
		Aggregator: AggregatorConfig{
			Debounce:    envOrDefaultDuration("AGGREGATOR_DEBOUNCE", 400*time.Millisecond),
			MaxPartials: envOrDefaultInt("AGGREGATOR_MAX_PARTIALS", 500),
		},
		Translate: TranslateConfig{
			MaxRetries:     envOrDefaultInt("TRANSLATE_MAX_RETRIES", 2),
			InitialBackoff: envOrDefaultDuration("TRANSLATE_INITIAL_BACKOFF", 300*time.Millisecond),
			BackoffFactor:  envOrDefaultInt("TRANSLATE_BACKOFF_FACTOR", 3),
			Timeout:        envOrDefaultDuration("TRANSLATE_TIMEOUT", 10*time.Second),
			MaxInFlight:    envOrDefaultInt("TRANSLATE_MAX_IN_FLIGHT", 3),
		},
		Synthesis: SynthesisConfig{
			ChunkThreshold: envOrDefaultInt("SYNTHESIS_CHUNK_THRESHOLD", 500),
			ChunkTimeout:   envOrDefaultDuration("SYNTHESIS_CHUNK_TIMEOUT", 15*time.Second),
			MaxInFlight:    envOrDefaultInt("SYNTHESIS_MAX_IN_FLIGHT", 3),
		},
		Session: SessionConfig{
			DrainTimeout:  envOrDefaultDuration("SESSION_DRAIN_TIMEOUT", 2*time.Second),
			MaxAudioBytes: envOrDefaultInt64("SESSION_MAX_AUDIO_BYTES", 50*1024*1024),
		},
		Kafka: KafkaConfig{
			Enabled:          envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:          envOrDefaultList("KAFKA_BROKERS", nil),
			TopicTranscript:  envOrDefault("KAFKA_TOPIC_TRANSCRIPT", "interpretation.transcript.final"),
			TopicTranslation: envOrDefault("KAFKA_TOPIC_TRANSLATION", "interpretation.translation"),
			Principal:        envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel: envOrDefault("LOG_LEVEL", "info"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
