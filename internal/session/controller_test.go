package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"live-interpreter-service/internal/aggregate"
	"live-interpreter-service/internal/audio"
	"live-interpreter-service/internal/events"
	"live-interpreter-service/internal/fault"
	"live-interpreter-service/internal/model"
	"live-interpreter-service/internal/recognizer"
	"live-interpreter-service/internal/synth"
	"live-interpreter-service/internal/translate"
)

func testPipelineConfig() Config {
	return Config{
		LevelCeiling: 12000,
		Recognizer: recognizer.Config{
			MaxAttempts:    3,
			InitialBackoff: 5 * time.Millisecond,
			FlushGrace:     50 * time.Millisecond,
		},
		Aggregator: aggregate.Config{
			Debounce:    30 * time.Millisecond,
			MaxPartials: 500,
		},
		Translate: translate.Config{
			MaxRetries:     1,
			InitialBackoff: 5 * time.Millisecond,
			BackoffFactor:  2,
			Timeout:        time.Second,
			MaxInFlight:    2,
		},
		Synthesis: synth.Config{
			ChunkThreshold: 500,
			ChunkTimeout:   time.Second,
			MaxInFlight:    2,
		},
		DrainTimeout: 500 * time.Millisecond,
	}
}

// speechFrames produces n non-silent PCM frames.
func speechFrames(n int) [][]int16 {
	frames := make([][]int16, n)
	for i := range frames {
		frames[i] = []int16{6000, -6000, 6000, -6000}
	}
	return frames
}

func dictionaryTranslator(entries map[string]string) translate.Translator {
	return translate.TranslatorFunc(func(_ context.Context, text, _, _ string) (string, error) {
		if translated, ok := entries[text]; ok {
			return translated, nil
		}
		return "", fault.New(fault.KindPermanent, "translate", "no entry for "+text)
	})
}

// recordingSynthesizer captures every synthesis call.
type recordingSynthesizer struct {
	mu    sync.Mutex
	calls []struct{ Text, Lang string }
	err   error
}

func (r *recordingSynthesizer) Synthesize(_ context.Context, text, lang string) (synth.Clip, error) {
	r.mu.Lock()
	r.calls = append(r.calls, struct{ Text, Lang string }{text, lang})
	r.mu.Unlock()
	if r.err != nil {
		return synth.Clip{}, r.err
	}
	return synth.Clip{Audio: []byte{0x01, 0x02, 0x03}, Duration: 120 * time.Millisecond}, nil
}

func (r *recordingSynthesizer) callList() []struct{ Text, Lang string } {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]struct{ Text, Lang string }(nil), r.calls...)
}

func newTestManager(utterances []recognizer.ScriptedUtterance, frames [][]int16, translator translate.Translator, synthesizer synth.Synthesizer) *Manager {
	collab := Collaborators{
		NewDevice: func() (audio.Device, error) {
			return audio.NewPlayback(frames, 5*time.Millisecond, 0), nil
		},
		NewEngine: func(context.Context) (recognizer.Engine, error) {
			return recognizer.NewScripted(utterances), nil
		},
		Translator:  translator,
		Synthesizer: synthesizer,
	}
	return NewManager(events.NewHub(), events.NewExporter(nil), collab, testPipelineConfig())
}

// collectEvents drains a subscription until the hub closes it at session end.
func collectEvents(t *testing.T, ch <-chan model.PipelineEvent) []model.PipelineEvent {
	t.Helper()
	var collected []model.PipelineEvent
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return collected
			}
			collected = append(collected, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for event feed to close, got %d events", len(collected))
		}
	}
}

func eventsOfType(all []model.PipelineEvent, typ model.EventType) []model.PipelineEvent {
	var out []model.PipelineEvent
	for _, ev := range all {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestSessionPipelineEndToEnd(t *testing.T) {
	utterances := []recognizer.ScriptedUtterance{
		{Partials: []string{"hello", "hello world"}, Final: "hello world", Confidence: 0.95},
	}
	synthesizer := &recordingSynthesizer{}
	m := newTestManager(utterances, speechFrames(3),
		dictionaryTranslator(map[string]string{"hello world": "hola mundo"}), synthesizer)

	s, err := m.StartSession("en", "es")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if s.State() != StateActive {
		t.Fatalf("state after start = %s, want active", s.State())
	}

	feed, cancel := s.Events()
	defer cancel()
	all := collectEvents(t, feed)

	if s.State() != StateDisconnected {
		t.Errorf("final state = %s, want disconnected", s.State())
	}

	finals := 0
	for _, ev := range eventsOfType(all, model.EventTranscript) {
		if ev.Transcript.IsFinal {
			finals++
			if ev.Transcript.Text != "hello world" {
				t.Errorf("final transcript text = %q, want %q", ev.Transcript.Text, "hello world")
			}
		}
	}
	if finals != 1 {
		t.Errorf("final transcripts = %d, want 1", finals)
	}

	translations := eventsOfType(all, model.EventTranslation)
	if len(translations) != 1 {
		t.Fatalf("translation events = %d, want 1", len(translations))
	}
	tr := translations[0].Translation
	if tr.Status != model.StatusSucceeded || tr.TranslatedText != "hola mundo" {
		t.Errorf("translation = %+v, want succeeded %q", tr, "hola mundo")
	}

	syntheses := eventsOfType(all, model.EventSynthesis)
	if len(syntheses) != 1 {
		t.Fatalf("synthesis events = %d, want 1", len(syntheses))
	}
	sr := syntheses[0].Synthesis
	if sr.Status != model.StatusSucceeded || len(sr.Audio) == 0 {
		t.Errorf("synthesis = %+v, want succeeded with audio", sr)
	}

	calls := synthesizer.callList()
	if len(calls) != 1 || calls[0].Text != "hola mundo" || calls[0].Lang != "es" {
		t.Errorf("synthesizer calls = %v, want one (hola mundo, es)", calls)
	}

	if len(eventsOfType(all, model.EventFailed)) != 0 {
		t.Errorf("unexpected failure events: %v", eventsOfType(all, model.EventFailed))
	}
}

func TestSessionSilenceProducesNothingDownstream(t *testing.T) {
	synthesizer := &recordingSynthesizer{}
	translator := translate.TranslatorFunc(func(context.Context, string, string, string) (string, error) {
		t.Error("translator called for silent session")
		return "", nil
	})
	m := newTestManager(nil, speechFrames(4), translator, synthesizer)

	s, err := m.StartSession("en", "es")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	feed, cancel := s.Events()
	defer cancel()
	all := collectEvents(t, feed)

	for _, typ := range []model.EventType{model.EventTranscript, model.EventTranslation, model.EventSynthesis} {
		if n := len(eventsOfType(all, typ)); n != 0 {
			t.Errorf("%s events = %d, want 0", typ, n)
		}
	}
	if calls := synthesizer.callList(); len(calls) != 0 {
		t.Errorf("synthesizer calls = %d, want 0", len(calls))
	}
	if s.State() != StateDisconnected {
		t.Errorf("final state = %s, want disconnected", s.State())
	}
}

func TestSessionOrderedDeliveryUnderSlowTranslation(t *testing.T) {
	utterances := []recognizer.ScriptedUtterance{
		{Partials: []string{"hello"}, Final: "hello world", Confidence: 0.95},
		{Partials: []string{"good"}, Final: "good morning", Confidence: 0.93},
	}
	// The first segment translates slowly, the second instantly; delivery
	// order must still follow segment order.
	translator := translate.TranslatorFunc(func(ctx context.Context, text, _, _ string) (string, error) {
		if text == "hello world" {
			select {
			case <-time.After(150 * time.Millisecond):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			return "hola mundo", nil
		}
		return "buenos dias", nil
	})
	synthesizer := &recordingSynthesizer{}
	m := newTestManager(utterances, speechFrames(4), translator, synthesizer)

	s, err := m.StartSession("en", "es")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	feed, cancel := s.Events()
	defer cancel()
	all := collectEvents(t, feed)

	translations := eventsOfType(all, model.EventTranslation)
	if len(translations) != 2 {
		t.Fatalf("translation events = %d, want 2", len(translations))
	}
	if translations[0].Translation.SourceText != "hello world" {
		t.Errorf("first delivered translation is %q, want %q",
			translations[0].Translation.SourceText, "hello world")
	}
	if translations[0].Translation.Seq >= translations[1].Translation.Seq {
		t.Errorf("translation seqs delivered out of order: %d then %d",
			translations[0].Translation.Seq, translations[1].Translation.Seq)
	}

	syntheses := eventsOfType(all, model.EventSynthesis)
	if len(syntheses) != 2 {
		t.Fatalf("synthesis events = %d, want 2", len(syntheses))
	}
	if syntheses[0].Synthesis.Text != "hola mundo" || syntheses[1].Synthesis.Text != "buenos dias" {
		t.Errorf("synthesis order = %q, %q; want hola mundo then buenos dias",
			syntheses[0].Synthesis.Text, syntheses[1].Synthesis.Text)
	}
}

func TestSessionTranslationFailurePublishesSegmentFailure(t *testing.T) {
	utterances := []recognizer.ScriptedUtterance{
		{Partials: []string{"hello"}, Final: "hello world", Confidence: 0.95},
	}
	synthesizer := &recordingSynthesizer{}
	m := newTestManager(utterances, speechFrames(2), dictionaryTranslator(nil), synthesizer)

	s, err := m.StartSession("en", "es")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	feed, cancel := s.Events()
	defer cancel()
	all := collectEvents(t, feed)

	translations := eventsOfType(all, model.EventTranslation)
	if len(translations) != 1 || translations[0].Translation.Status != model.StatusFailed {
		t.Fatalf("want one failed translation event, got %v", translations)
	}

	failures := eventsOfType(all, model.EventFailed)
	if len(failures) != 1 {
		t.Fatalf("failure events = %d, want 1", len(failures))
	}
	if f := failures[0].Failure; f.Stage != "translation" || f.Reason == "" {
		t.Errorf("failure = %+v, want translation stage with reason", f)
	}

	if calls := synthesizer.callList(); len(calls) != 0 {
		t.Errorf("synthesizer called %d times for failed translation, want 0", len(calls))
	}
	// A segment failure does not end the session abnormally.
	if s.State() != StateDisconnected {
		t.Errorf("final state = %s, want disconnected", s.State())
	}
}

func TestManagerRejectsSecondSession(t *testing.T) {
	synthesizer := &recordingSynthesizer{}
	// Long-running frames keep the first session active.
	frames := speechFrames(2000)
	m := newTestManager(nil, frames, dictionaryTranslator(nil), synthesizer)

	first, err := m.StartSession("en", "es")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if _, err := m.StartSession("en", "fr"); fault.KindOf(err) != fault.KindSessionActive {
		t.Fatalf("second StartSession kind = %v, want session active rejection", fault.KindOf(err))
	}

	first.End()
	<-first.Done()

	second, err := m.StartSession("en", "fr")
	if err != nil {
		t.Fatalf("StartSession after end: %v", err)
	}
	second.End()
	<-second.Done()
}

func TestManagerRejectsInvalidLanguagePairs(t *testing.T) {
	m := newTestManager(nil, speechFrames(1), dictionaryTranslator(nil), &recordingSynthesizer{})

	cases := []struct {
		name     string
		src, dst string
	}{
		{"empty source", "", "es"},
		{"empty target", "en", ""},
		{"same language", "en", "en"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.StartSession(tc.src, tc.dst)
			if fault.KindOf(err) != fault.KindConfiguration {
				t.Fatalf("StartSession(%q, %q) kind = %v, want configuration fault",
					tc.src, tc.dst, fault.KindOf(err))
			}
		})
	}
}

func TestSessionEndIdempotent(t *testing.T) {
	m := newTestManager(nil, speechFrames(2000), dictionaryTranslator(nil), &recordingSynthesizer{})

	s, err := m.StartSession("en", "es")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	s.End()
	s.End()
	<-s.Done()
	if s.State() != StateDisconnected {
		t.Fatalf("state after End = %s, want disconnected", s.State())
	}

	// Ending through the manager after termination is also a no-op.
	m.EndSession(s.ID)
}

func TestSessionMuteIdempotent(t *testing.T) {
	m := newTestManager(nil, speechFrames(2000), dictionaryTranslator(nil), &recordingSynthesizer{})

	s, err := m.StartSession("en", "es")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	defer func() {
		s.End()
		<-s.Done()
	}()

	if err := s.Mute(true); err != nil {
		t.Fatalf("Mute(true): %v", err)
	}
	if err := s.Mute(true); err != nil {
		t.Fatalf("repeated Mute(true): %v", err)
	}
	if !s.source.Muted() {
		t.Fatal("source not muted after Mute(true)")
	}
	if err := s.Mute(false); err != nil {
		t.Fatalf("Mute(false): %v", err)
	}
	if s.source.Muted() {
		t.Fatal("source still muted after Mute(false)")
	}
}

// blockingSynthesizer ignores its context and holds the pipeline until
// released, standing in for a misbehaving external call.
type blockingSynthesizer struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingSynthesizer) Synthesize(ctx context.Context, text, lang string) (synth.Clip, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return synth.Clip{}, ctx.Err()
}

func TestSessionEndReturnsWhenSynthesizerHangs(t *testing.T) {
	utterances := []recognizer.ScriptedUtterance{
		{Partials: []string{"hello"}, Final: "hello world", Confidence: 0.9},
	}
	synthesizer := &blockingSynthesizer{entered: make(chan struct{}), release: make(chan struct{})}
	m := newTestManager(utterances, speechFrames(2000),
		dictionaryTranslator(map[string]string{"hello world": "hola mundo"}), synthesizer)

	s, err := m.StartSession("en", "es")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	defer func() {
		close(synthesizer.release)
		<-s.Done()
	}()

	select {
	case <-synthesizer.entered:
	case <-time.After(10 * time.Second):
		t.Fatal("synthesis was never reached")
	}

	ended := make(chan struct{})
	go func() {
		s.End()
		close(ended)
	}()

	// End waits out the drain budget, cancels, then abandons the stuck call.
	select {
	case <-ended:
	case <-time.After(5 * time.Second):
		t.Fatal("End did not return while a synthesis call hung")
	}
}

func TestSessionMuteAfterEndReturnsErrTerminal(t *testing.T) {
	m := newTestManager(nil, speechFrames(2000), dictionaryTranslator(nil), &recordingSynthesizer{})

	s, err := m.StartSession("en", "es")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	s.End()
	<-s.Done()

	if err := s.Mute(true); !errors.Is(err, ErrTerminal) {
		t.Fatalf("Mute after end = %v, want ErrTerminal", err)
	}
}

func TestSessionAudioCapEndsCapture(t *testing.T) {
	synthesizer := &recordingSynthesizer{}
	m := newTestManager(nil, speechFrames(2000), dictionaryTranslator(nil), synthesizer)
	// Each frame is 4 samples = 8 bytes; cap capture at roughly 5 frames.
	m.cfg.MaxAudioBytes = 40

	s, err := m.StartSession("en", "es")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	select {
	case <-s.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("session did not end after reaching the audio cap")
	}

	if s.State() != StateDisconnected {
		t.Fatalf("final state = %s, want disconnected", s.State())
	}
}

// brokenEngine accepts the stream but rejects the first audio write with a
// non-transient error, like a recognizer whose credentials expire mid-session.
type brokenEngine struct{}

func (brokenEngine) Start(context.Context, recognizer.Callback) error { return nil }
func (brokenEngine) SendAudio(context.Context, []int16) error {
	return fault.New(fault.KindAuthorization, "recognizer.send", "credentials rejected")
}
func (brokenEngine) Close() error { return nil }

func TestSessionFatalRecognitionErrorEndsSession(t *testing.T) {
	collab := Collaborators{
		NewDevice: func() (audio.Device, error) {
			return audio.NewPlayback(speechFrames(2000), 5*time.Millisecond, 0), nil
		},
		NewEngine:   func(context.Context) (recognizer.Engine, error) { return brokenEngine{}, nil },
		Translator:  dictionaryTranslator(nil),
		Synthesizer: &recordingSynthesizer{},
	}
	m := NewManager(events.NewHub(), events.NewExporter(nil), collab, testPipelineConfig())

	s, err := m.StartSession("en", "es")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	feed, cancel := s.Events()
	defer cancel()
	all := collectEvents(t, feed)

	if s.State() != StateDisconnected {
		t.Fatalf("final state = %s, want disconnected", s.State())
	}

	var sawError bool
	for _, ev := range eventsOfType(all, model.EventStateChanged) {
		if ev.State.State == StateError.String() {
			sawError = true
			if ev.State.Reason == "" {
				t.Error("error state change carries no reason")
			}
		}
	}
	if !sawError {
		t.Error("no error state change published for fatal recognition failure")
	}

	// The slot frees up for a fresh session.
	if _, ok := m.Active(); ok {
		t.Error("manager still reports an active session after fatal error")
	}
}

func TestManagerDeviceFailureRejectsStart(t *testing.T) {
	collab := Collaborators{
		NewDevice: func() (audio.Device, error) {
			return nil, fault.New(fault.KindAuthorization, "device.open", "microphone permission denied")
		},
		NewEngine: func(context.Context) (recognizer.Engine, error) {
			return recognizer.NewScripted(nil), nil
		},
		Translator:  dictionaryTranslator(nil),
		Synthesizer: &recordingSynthesizer{},
	}
	m := NewManager(events.NewHub(), events.NewExporter(nil), collab, testPipelineConfig())

	if _, err := m.StartSession("en", "es"); fault.KindOf(err) != fault.KindAuthorization {
		t.Fatalf("StartSession kind = %v, want authorization fault", fault.KindOf(err))
	}
	if _, ok := m.Active(); ok {
		t.Error("failed connect left an active session behind")
	}

	// The failed attempt does not block a later start.
	collab.NewDevice = func() (audio.Device, error) {
		return audio.NewPlayback(speechFrames(1), time.Millisecond, 0), nil
	}
	m2 := NewManager(events.NewHub(), events.NewExporter(nil), collab, testPipelineConfig())
	s, err := m2.StartSession("en", "es")
	if err != nil {
		t.Fatalf("StartSession with working device: %v", err)
	}
	s.End()
	<-s.Done()
}
