package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"live-interpreter-service/internal/aggregate"
	"live-interpreter-service/internal/audio"
	"live-interpreter-service/internal/events"
	"live-interpreter-service/internal/fault"
	"live-interpreter-service/internal/model"
	"live-interpreter-service/internal/observability/metrics"
	"live-interpreter-service/internal/recognizer"
	"live-interpreter-service/internal/synth"
	"live-interpreter-service/internal/translate"
)

// Config holds the per-session pipeline tunables.
type Config struct {
	LevelCeiling float64
	Recognizer   recognizer.Config
	Aggregator   aggregate.Config
	Translate    translate.Config
	Synthesis    synth.Config
	// DrainTimeout bounds the best-effort drain on End; remaining in-flight
	// work is abandoned once it elapses.
	DrainTimeout time.Duration
	// MaxAudioBytes caps the PCM volume a session may capture; once reached,
	// capture stops and the session drains as if it ended naturally.
	// Zero means no cap.
	MaxAudioBytes int64
}

// DefaultConfig returns the default pipeline tunables.
func DefaultConfig() Config {
	return Config{
		LevelCeiling:  12000,
		Recognizer:    recognizer.DefaultConfig(),
		Aggregator:    aggregate.DefaultConfig(),
		Translate:     translate.DefaultConfig(),
		Synthesis:     synth.DefaultConfig(),
		DrainTimeout:  2 * time.Second,
		MaxAudioBytes: 50 * 1024 * 1024,
	}
}

// Session is one interpretation conversation: a single owner goroutine
// wires capture → recognition → aggregation → translation → synthesis and
// publishes every stage's events through the hub in causal order. All
// mutation happens on that goroutine or behind the state machine; callers
// interact only through exported methods.
type Session struct {
	ID         string
	SourceLang string
	TargetLang string
	StartedAt  time.Time

	machine  *Machine
	source   *audio.Source
	hub      *events.Hub
	exporter *events.Exporter
	metrics  *metrics.Metrics
	cfg      Config
	logger   zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu           sync.Mutex
	failure      error
	endRequested bool

	endOnce  sync.Once
	termOnce sync.Once

	onTerminate func(*Session)
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return s.machine.State()
}

// Mute suppresses or resumes audio capture without tearing down the device.
// Idempotent. Returns ErrTerminal once the session has ended.
func (s *Session) Mute(muted bool) error {
	if s.machine.State().IsTerminal() {
		return ErrTerminal
	}
	s.source.Mute(muted)
	s.logger.Debug().Bool("muted", muted).Msg("Mute toggled")
	return nil
}

// Events subscribes to the session's live event feed. Past events are not
// replayed. The cancel function releases the subscription.
func (s *Session) Events() (<-chan model.PipelineEvent, func()) {
	return s.hub.Subscribe(s.ID)
}

// End stops the session: capture stops immediately, in-flight pipeline work
// is drained best-effort within the drain timeout and then abandoned.
// Calling End again is a no-op.
func (s *Session) End() {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.endRequested = true
		s.mu.Unlock()

		s.logger.Info().Msg("Session end requested")
		s.source.Close()

		select {
		case <-s.done:
		case <-time.After(s.cfg.DrainTimeout):
			s.logger.Warn().Dur("drainTimeout", s.cfg.DrainTimeout).
				Msg("Drain timeout elapsed, abandoning in-flight work")
			s.cancel()
			// An adapter call that ignores its context can outlive the
			// cancel. Abandon it rather than wait; Done reports completion.
			select {
			case <-s.done:
			case <-time.After(s.cfg.DrainTimeout):
				s.logger.Error().Msg("Pipeline still stopping after cancel, abandoning wait")
			}
		}
	})
}

// Done is closed once the pipeline has fully stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// publish stamps and fans an event out to subscribers.
func (s *Session) publish(ev model.PipelineEvent) {
	ev.SessionID = s.ID
	ev.Timestamp = time.Now()
	s.hub.Publish(ev)
}

func (s *Session) publishState(reason string) {
	s.publish(model.PipelineEvent{
		Type:  model.EventStateChanged,
		State: &model.StateChange{State: s.machine.State().String(), Reason: reason},
	})
}

// fail records a fatal pipeline error and aborts the pipeline.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.failure == nil {
		s.failure = err
	}
	s.mu.Unlock()
	s.logger.Error().Err(err).Msg("Fatal pipeline error, ending session")
	s.cancel()
}

// run owns the session pipeline. It returns once every stage has stopped,
// then drives the terminal state transitions.
func (s *Session) run(ctx context.Context, frames <-chan model.AudioFrame, levels <-chan model.AudioLevelSample, rec *recognizer.Adapter, translator translate.Translator, synthesizer synth.Synthesizer) {
	defer close(s.done)
	defer s.terminate()

	transcripts, recErrs := rec.Run(ctx, s.limitFrames(ctx, frames))

	aggIn := make(chan model.TranscriptEvent, 32)
	trIn := make(chan aggregate.Segment, 16)
	synthIn := make(chan model.TranslationResult, 16)

	// Results are re-sequenced by the transcript seq that produced them, so
	// subscribers never see segment N+1 before segment N.
	synthSeq := NewSequencer(func(ev model.PipelineEvent) {
		s.publish(ev)
		if res := ev.Synthesis; res.Status == model.StatusFailed {
			s.publish(model.PipelineEvent{
				Type:    model.EventFailed,
				Failure: &model.SegmentFailure{Seq: res.Seq, Stage: "synthesis", Reason: res.Error},
			})
		}
	})
	trSeq := NewSequencer(func(ev model.PipelineEvent) {
		s.publish(ev)
		res := ev.Translation
		if res.Status != model.StatusSucceeded {
			s.publish(model.PipelineEvent{
				Type:    model.EventFailed,
				Failure: &model.SegmentFailure{Seq: res.Seq, Stage: "translation", Reason: res.Error},
			})
			return
		}
		// Succeeded translations continue to synthesis in delivery order.
		synthSeq.Expect(res.Seq)
		select {
		case synthIn <- *res:
		case <-ctx.Done():
		}
	})

	var wg sync.WaitGroup

	// Audio level fan-out. Observational only.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for sample := range levels {
			s.metrics.RecordAudioFrame()
			s.publish(model.PipelineEvent{Type: model.EventAudioLevel, AudioLevel: &sample})
		}
	}()

	// Transcript fan-out and aggregation feed.
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(aggIn)
		for ev := range transcripts {
			s.metrics.RecordTranscript(ev.IsFinal)
			s.publish(model.PipelineEvent{Type: model.EventTranscript, Transcript: &ev})
			if ev.IsFinal {
				if err := s.exporter.ExportTranscript(ctx, s.ID, ev); err != nil {
					s.logger.Warn().Err(err).Msg("Transcript export failed")
				}
			}
			select {
			case aggIn <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Finalized segments register their delivery slot and enter translation.
	agg := aggregate.New(s.cfg.Aggregator)
	segments := agg.Run(ctx, aggIn)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(trIn)
		for seg := range segments {
			s.metrics.RecordSegmentFinalized()
			trSeq.Expect(seg.Seq)
			select {
			case trIn <- seg:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Translation results complete out of order; the sequencer re-orders.
	trAdapter := translate.NewAdapter(translator, s.cfg.Translate)
	trResults := trAdapter.Run(ctx, trIn, s.SourceLang, s.TargetLang)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(synthIn)
		for res := range trResults {
			if err := s.exporter.ExportTranslation(ctx, s.ID, res); err != nil {
				s.logger.Warn().Err(err).Msg("Translation export failed")
			}
			trSeq.Complete(res.Seq, model.PipelineEvent{Type: model.EventTranslation, Translation: &res})
		}
	}()

	synthAdapter := synth.NewAdapter(synthesizer, s.cfg.Synthesis)
	synthResults := synthAdapter.Run(ctx, synthIn, s.TargetLang)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for res := range synthResults {
			synthSeq.Complete(res.Seq, model.PipelineEvent{Type: model.EventSynthesis, Synthesis: &res})
		}
	}()

	// A fatal recognition or capture error ends the session.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range recErrs {
			if err != nil {
				s.metrics.RecordRecognitionError(fault.KindOf(err).String())
				s.fail(err)
			}
		}
	}()

	wg.Wait()
}

// limitFrames forwards capture frames until the session's audio byte cap is
// reached, then stops capture and discards the tail so the pipeline drains
// as if the session ended naturally.
func (s *Session) limitFrames(ctx context.Context, frames <-chan model.AudioFrame) <-chan model.AudioFrame {
	if s.cfg.MaxAudioBytes <= 0 {
		return frames
	}

	out := make(chan model.AudioFrame, 16)
	go func() {
		defer close(out)
		var captured int64
		exceeded := false
		for frame := range frames {
			if exceeded {
				continue
			}
			captured += int64(len(frame.Samples)) * 2
			if captured > s.cfg.MaxAudioBytes {
				exceeded = true
				s.logger.Warn().Int64("maxAudioBytes", s.cfg.MaxAudioBytes).
					Msg("Audio cap reached, stopping capture")
				s.source.Close()
				continue
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// terminate drives the terminal transitions exactly once and publishes the
// closing state events before the subscriber feed is shut down.
func (s *Session) terminate() {
	s.termOnce.Do(func() {
		s.mu.Lock()
		failure := s.failure
		ended := s.endRequested
		s.mu.Unlock()

		outcome := "completed"
		switch {
		case failure != nil:
			outcome = "failed"
			if s.machine.Fail() {
				s.publishState(failure.Error())
			}
		case ended:
			outcome = "stopped"
		}

		if s.machine.Disconnect() {
			s.publishState("")
		}

		s.metrics.RecordSessionEnd(outcome, time.Since(s.StartedAt).Seconds())
		s.source.Close()
		s.cancel()

		s.logger.Info().Str("outcome", outcome).
			Dur("duration", time.Since(s.StartedAt)).Msg("Session terminated")

		if s.onTerminate != nil {
			s.onTerminate(s)
		}
		s.hub.CloseSession(s.ID)
	})
}
