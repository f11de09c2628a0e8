package recognizer

import (
	"context"
	"sync"

	"live-interpreter-service/internal/fault"
)

// ScriptedUtterance is a canned utterance with progressive partials.
type ScriptedUtterance struct {
	Partials   []string
	Final      string
	Confidence float64
}

// DefaultUtterances provides sample utterances for the demo binary.
var DefaultUtterances = []ScriptedUtterance{
	{
		Partials:   []string{"hello", "hello world"},
		Final:      "hello world",
		Confidence: 0.95,
	},
	{
		Partials:   []string{"where is", "where is the", "where is the station"},
		Final:      "where is the station",
		Confidence: 0.92,
	},
	{
		Partials:   []string{"thank", "thank you"},
		Final:      "thank you very much",
		Confidence: 0.97,
	},
}

// Scripted is an Engine that replays canned utterances: one partial per
// audio frame, the final once a script is exhausted. It exists for tests
// and the demo binary, where no cloud recognizer is available.
type Scripted struct {
	// FailStarts makes the first N Start calls fail with a transient error,
	// for exercising the adapter's stream retry.
	FailStarts int

	utterances []ScriptedUtterance

	mu           sync.Mutex
	cb           Callback
	startCount   int
	utterance    int
	partialIndex int
	closed       bool
}

// NewScripted creates a scripted engine over the given utterances.
func NewScripted(utterances []ScriptedUtterance) *Scripted {
	return &Scripted{utterances: utterances}
}

// Start begins a scripted session.
func (s *Scripted) Start(ctx context.Context, cb Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCount++
	if s.startCount <= s.FailStarts {
		return fault.New(fault.KindTransient, "scripted.start", "simulated stream failure")
	}
	s.cb = cb
	s.closed = false
	return nil
}

// SendAudio advances the script by one step: the next partial, or the final
// once all partials for the current utterance have been emitted.
func (s *Scripted) SendAudio(ctx context.Context, samples []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.cb == nil || s.utterance >= len(s.utterances) {
		return nil
	}

	utt := s.utterances[s.utterance]
	if s.partialIndex < len(utt.Partials) {
		text := utt.Partials[s.partialIndex]
		s.partialIndex++
		s.cb.OnPartial(text, utt.Confidence)
		return nil
	}

	s.utterance++
	s.partialIndex = 0
	s.cb.OnFinal(utt.Final, utt.Confidence)
	return nil
}

// Close ends the session. A partially delivered utterance is flushed as a
// final, mirroring engines that finalize on stream close.
func (s *Scripted) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.cb != nil && s.utterance < len(s.utterances) && s.partialIndex > 0 {
		utt := s.utterances[s.utterance]
		s.utterance++
		s.partialIndex = 0
		s.cb.OnFinal(utt.Final, utt.Confidence)
	}
	return nil
}
