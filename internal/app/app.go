// Package app configures process-wide state for the service binaries: the
// global zerolog logger and startup bookkeeping.
package app

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"live-interpreter-service/internal/config"
)

// Application carries process lifecycle state.
type Application struct {
	cfg       *config.Config
	logger    zerolog.Logger
	startedAt time.Time
}

// New builds the application and installs the global logger. The level comes
// from configuration, falling back to info on a parse failure; with ENV=dev
// output renders for a terminal, otherwise JSON.
func New(cfg *config.Config) *Application {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Observability.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if os.Getenv("ENV") == "dev" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(out).With().
		Timestamp().
		Str("service", "live-interpreter-service").
		Logger()
	log.Logger = logger

	logger.Info().Str("logLevel", level.String()).Msg("Logger configured")
	return &Application{cfg: cfg, logger: logger}
}

// Start marks the service as running.
func (a *Application) Start() error {
	a.startedAt = time.Now().UTC()
	a.logger.Info().
		Time("startedAt", a.startedAt).
		Str("httpPort", a.cfg.Service.HTTPPort).
		Str("observabilityPort", a.cfg.Service.ObservabilityPort).
		Msg("Live interpreter service starting")
	return nil
}

// Uptime reports how long the service has been running.
func (a *Application) Uptime() time.Duration {
	if a.startedAt.IsZero() {
		return 0
	}
	return time.Since(a.startedAt)
}

// Shutdown logs final process state before exit.
func (a *Application) Shutdown() {
	a.logger.Info().Dur("uptime", a.Uptime()).Msg("Live interpreter service shutting down")
}
