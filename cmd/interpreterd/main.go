package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"live-interpreter-service/internal/aggregate"
	"live-interpreter-service/internal/app"
	"live-interpreter-service/internal/audio"
	"live-interpreter-service/internal/config"
	"live-interpreter-service/internal/events"
	"live-interpreter-service/internal/httpapi"
	"live-interpreter-service/internal/observability"
	"live-interpreter-service/internal/recognizer"
	"live-interpreter-service/internal/recognizer/google"
	"live-interpreter-service/internal/session"
	"live-interpreter-service/internal/synth"
	"live-interpreter-service/internal/translate"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfg := config.Load()
	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Application startup failed")
	}

	exporter := events.NewExporter(&events.ExporterConfig{
		Enabled:          cfg.Kafka.Enabled,
		Brokers:          cfg.Kafka.Brokers,
		TopicTranscript:  cfg.Kafka.TopicTranscript,
		TopicTranslation: cfg.Kafka.TopicTranslation,
		Principal:        cfg.Kafka.Principal,
	})
	defer exporter.Close()

	hub := events.NewHub()
	manager := session.NewManager(hub, exporter, collaborators(cfg), sessionConfig(cfg))

	api := httpapi.NewServer(":"+cfg.Service.HTTPPort, manager)
	api.Start()

	obs := observability.NewServer(":" + cfg.Service.ObservabilityPort)
	obs.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutdown signal received")
	manager.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server shutdown error")
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Observability server shutdown error")
	}
	application.Shutdown()
}

// collaborators assembles the pipeline boundaries from configuration. The
// scripted recognizer and the playback device back local development; the
// google provider requires GOOGLE_APPLICATION_CREDENTIALS.
func collaborators(cfg *config.Config) session.Collaborators {
	samplesPerFrame := int(float64(cfg.Audio.SampleRateHz) * cfg.Audio.FrameInterval.Seconds())
	if samplesPerFrame <= 0 {
		samplesPerFrame = 320
	}

	newDevice := func() (audio.Device, error) {
		return audio.NewPlayback(speechScript(samplesPerFrame, 12), cfg.Audio.FrameInterval, 50), nil
	}

	var newEngine session.EngineFactory
	switch cfg.Recognizer.Provider {
	case "google":
		newEngine = func(ctx context.Context) (recognizer.Engine, error) {
			return google.New(ctx, google.Config{
				LanguageCode:   "en-US",
				SampleRateHz:   cfg.Recognizer.SampleRateHz,
				InterimResults: cfg.Recognizer.InterimResults,
			})
		}
	default:
		newEngine = func(context.Context) (recognizer.Engine, error) {
			return recognizer.NewScripted(recognizer.DefaultUtterances), nil
		}
	}

	return session.Collaborators{
		NewDevice:   newDevice,
		NewEngine:   newEngine,
		Translator:  devTranslator(),
		Synthesizer: devSynthesizer(cfg.Audio.SampleRateHz),
	}
}

func sessionConfig(cfg *config.Config) session.Config {
	rec := recognizer.DefaultConfig()
	rec.MaxAttempts = cfg.Recognizer.MaxAttempts
	rec.InitialBackoff = cfg.Recognizer.InitialBackoff

	return session.Config{
		LevelCeiling: cfg.Audio.LevelCeiling,
		Recognizer:   rec,
		Aggregator: aggregate.Config{
			Debounce:    cfg.Aggregator.Debounce,
			MaxPartials: cfg.Aggregator.MaxPartials,
		},
		Translate: translate.Config{
			MaxRetries:     cfg.Translate.MaxRetries,
			InitialBackoff: cfg.Translate.InitialBackoff,
			BackoffFactor:  cfg.Translate.BackoffFactor,
			Timeout:        cfg.Translate.Timeout,
			MaxInFlight:    cfg.Translate.MaxInFlight,
		},
		Synthesis: synth.Config{
			ChunkThreshold: cfg.Synthesis.ChunkThreshold,
			ChunkTimeout:   cfg.Synthesis.ChunkTimeout,
			MaxInFlight:    cfg.Synthesis.MaxInFlight,
		},
		DrainTimeout:  cfg.Session.DrainTimeout,
		MaxAudioBytes: cfg.Session.MaxAudioBytes,
	}
}

// speechScript produces n frames of speech-shaped PCM so level metering and
// the scripted recognizer have something to chew on.
func speechScript(samplesPerFrame, n int) [][]int16 {
	frames := make([][]int16, n)
	for i := range frames {
		frame := make([]int16, samplesPerFrame)
		for j := range frame {
			if j%2 == 0 {
				frame[j] = 6000
			} else {
				frame[j] = -6000
			}
		}
		frames[i] = frame
	}
	return frames
}

// devTranslator marks text with the target language.
// TODO: wire a cloud translation provider behind the Translator interface.
func devTranslator() translate.Translator {
	return translate.TranslatorFunc(func(_ context.Context, text, _, targetLang string) (string, error) {
		return "[" + targetLang + "] " + text, nil
	})
}

// devSynthesizer renders silence sized to a plausible speaking rate.
func devSynthesizer(sampleRateHz int) synth.Synthesizer {
	return synth.SynthesizerFunc(func(_ context.Context, text, _ string) (synth.Clip, error) {
		// Roughly 60ms of audio per word-sized run of characters.
		duration := time.Duration(len(text)/5+1) * 60 * time.Millisecond
		samples := int(float64(sampleRateHz) * duration.Seconds())
		return synth.Clip{Audio: make([]byte, samples*2), Duration: duration}, nil
	})
}
