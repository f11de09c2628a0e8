package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"live-interpreter-service/internal/audio"
	"live-interpreter-service/internal/events"
	"live-interpreter-service/internal/fault"
	"live-interpreter-service/internal/observability/metrics"
	"live-interpreter-service/internal/recognizer"
	"live-interpreter-service/internal/synth"
	"live-interpreter-service/internal/translate"
)

// DeviceFactory opens the capture device for a new session.
type DeviceFactory func() (audio.Device, error)

// EngineFactory builds the recognition engine for a new session.
type EngineFactory func(ctx context.Context) (recognizer.Engine, error)

// Collaborators are the external services a session pipeline is built from.
type Collaborators struct {
	NewDevice   DeviceFactory
	NewEngine   EngineFactory
	Translator  translate.Translator
	Synthesizer synth.Synthesizer
}

// Manager owns session lifecycle. At most one non-terminal session exists at
// a time; starting a second one is rejected until the first reaches a
// terminal state.
type Manager struct {
	hub      *events.Hub
	exporter *events.Exporter
	collab   Collaborators
	cfg      Config
	metrics  *metrics.Metrics

	mu     sync.Mutex
	active *Session
}

// NewManager creates a session manager.
func NewManager(hub *events.Hub, exporter *events.Exporter, collab Collaborators, cfg Config) *Manager {
	return &Manager{
		hub:      hub,
		exporter: exporter,
		collab:   collab,
		cfg:      cfg,
		metrics:  metrics.DefaultMetrics,
	}
}

// StartSession validates the language pair, claims the single session slot
// and connects the pipeline. It returns once the session is active; the
// pipeline then runs until End, a fatal error, or natural completion.
func (m *Manager) StartSession(sourceLang, targetLang string) (*Session, error) {
	sourceLang = strings.TrimSpace(sourceLang)
	targetLang = strings.TrimSpace(targetLang)
	if sourceLang == "" || targetLang == "" {
		m.metrics.RecordSessionRejected(fault.KindConfiguration.String())
		return nil, fault.New(fault.KindConfiguration, "session.start", "source and target languages are required")
	}
	if sourceLang == targetLang {
		m.metrics.RecordSessionRejected(fault.KindConfiguration.String())
		return nil, fault.New(fault.KindConfiguration, "session.start", "source and target languages must differ")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && !m.active.State().IsTerminal() {
		m.metrics.RecordSessionRejected(fault.KindSessionActive.String())
		return nil, fault.New(fault.KindSessionActive, "session.start", "a session is already in progress")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:         uuid.NewString(),
		SourceLang: sourceLang,
		TargetLang: targetLang,
		StartedAt:  time.Now(),
		machine:    NewMachine(),
		hub:        m.hub,
		exporter:   m.exporter,
		metrics:    m.metrics,
		cfg:        m.cfg,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	s.logger = log.With().Str("component", "session").Str("sessionId", s.ID).
		Str("sourceLang", sourceLang).Str("targetLang", targetLang).Logger()
	s.onTerminate = func(ended *Session) { m.clearActive(ended) }

	if err := s.machine.Connect(); err != nil {
		cancel()
		return nil, err
	}
	s.publishState("")
	s.logger.Info().Msg("Session connecting")

	device, err := m.collab.NewDevice()
	if err != nil {
		return nil, m.abortConnect(s, fault.Wrap(fault.KindOf(err), "session.device", err))
	}
	s.source = audio.NewSource(device, m.cfg.LevelCeiling)

	frames, levels, err := s.source.Start(ctx)
	if err != nil {
		return nil, m.abortConnect(s, fault.Wrap(fault.KindOf(err), "session.capture", err))
	}

	engine, err := m.collab.NewEngine(ctx)
	if err != nil {
		return nil, m.abortConnect(s, fault.Wrap(fault.KindOf(err), "session.recognizer", err))
	}
	rec := recognizer.NewAdapter(engine, m.cfg.Recognizer)

	if err := s.machine.Activate(); err != nil {
		return nil, m.abortConnect(s, err)
	}
	s.publishState("")
	m.active = s
	m.metrics.RecordSessionStart()
	s.logger.Info().Msg("Session active")

	go s.run(ctx, frames, levels, rec, m.collab.Translator, m.collab.Synthesizer)
	return s, nil
}

// abortConnect fails a session that never left Connecting. Called with m.mu
// held; the session was never published as active.
func (m *Manager) abortConnect(s *Session, err error) error {
	s.logger.Error().Err(err).Msg("Session connect failed")
	m.metrics.RecordSessionRejected(fault.KindOf(err).String())
	if s.machine.Fail() {
		s.publishState(err.Error())
	}
	if s.machine.Disconnect() {
		s.publishState("")
	}
	if s.source != nil {
		s.source.Close()
	}
	s.cancel()
	s.hub.CloseSession(s.ID)
	return err
}

// EndSession ends the identified session. Unknown IDs and already-ended
// sessions are no-ops.
func (m *Manager) EndSession(id string) {
	if s, ok := m.Lookup(id); ok {
		s.End()
	}
}

// Lookup returns the session with the given ID, if it is the current one.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil && m.active.ID == id {
		return m.active, true
	}
	return nil, false
}

// Active returns the current session, if any.
func (m *Manager) Active() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != nil
}

// Shutdown ends any running session and waits for it to stop.
func (m *Manager) Shutdown() {
	if s, ok := m.Active(); ok {
		s.End()
		<-s.Done()
	}
}

func (m *Manager) clearActive(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == s {
		m.active = nil
	}
}
