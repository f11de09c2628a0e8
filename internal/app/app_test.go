package app

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"live-interpreter-service/internal/config"
)

func testAppConfig(level string) *config.Config {
	return &config.Config{
		Service:       config.ServiceConfig{HTTPPort: "8080", ObservabilityPort: "9090"},
		Observability: config.ObservabilityConfig{LogLevel: level},
	}
}

func TestNewAppliesConfiguredLogLevel(t *testing.T) {
	New(testAppConfig("warn"))
	if got := zerolog.GlobalLevel(); got != zerolog.WarnLevel {
		t.Errorf("global level = %s, want warn", got)
	}
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	New(testAppConfig("shouting"))
	if got := zerolog.GlobalLevel(); got != zerolog.InfoLevel {
		t.Errorf("global level = %s, want info", got)
	}
}

func TestUptimeTracksStart(t *testing.T) {
	a := New(testAppConfig("info"))
	if a.Uptime() != 0 {
		t.Errorf("uptime before Start = %s, want 0", a.Uptime())
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(time.Millisecond)
	if a.Uptime() <= 0 {
		t.Error("uptime did not advance after Start")
	}
	a.Shutdown()
}
