// Package model defines the data structures flowing through the
// interpretation pipeline.
package model

import "time"

// AudioFrame is a fixed-size slice of PCM samples captured from the device.
// Frames are transient: they are consumed by the recognizer and not retained.
type AudioFrame struct {
	Samples  []int16
	Seq      uint64
	Captured time.Time
}

// AudioLevelSample is a normalized RMS energy reading for one frame.
type AudioLevelSample struct {
	Level     float64   `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptEvent is a recognition result, partial or final.
// Seq values for a session are strictly increasing and never repeat.
type TranscriptEvent struct {
	Seq        uint64    `json:"seq"`
	Text       string    `json:"text"`
	IsFinal    bool      `json:"isFinal"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// ResultStatus tracks the outcome of a translation or synthesis request.
type ResultStatus string

const (
	StatusPending   ResultStatus = "pending"
	StatusSucceeded ResultStatus = "succeeded"
	StatusFailed    ResultStatus = "failed"
)

// TranslationResult corresponds 1:1 with a finalized transcript segment.
type TranslationResult struct {
	Seq            uint64       `json:"seq"`
	SourceText     string       `json:"sourceText"`
	TranslatedText string       `json:"translatedText,omitempty"`
	SourceLang     string       `json:"sourceLang"`
	TargetLang     string       `json:"targetLang"`
	Status         ResultStatus `json:"status"`
	Error          string       `json:"error,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
}

// SynthesisResult corresponds 1:1 with a succeeded TranslationResult.
type SynthesisResult struct {
	Seq       uint64        `json:"seq"`
	Text      string        `json:"text"`
	Audio     []byte        `json:"-"`
	Duration  time.Duration `json:"durationMs"`
	Status    ResultStatus  `json:"status"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// StateChange notifies subscribers of a session state transition.
type StateChange struct {
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

// SegmentFailure is a segment-scoped failure that did not end the session.
type SegmentFailure struct {
	Seq    uint64 `json:"seq"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// EventType discriminates the PipelineEvent union.
type EventType string

const (
	EventTranscript   EventType = "transcript"
	EventTranslation  EventType = "translation"
	EventSynthesis    EventType = "synthesis"
	EventAudioLevel   EventType = "audioLevel"
	EventStateChanged EventType = "stateChanged"
	EventFailed       EventType = "failed"
)

// PipelineEvent is the tagged union delivered to session subscribers.
// Exactly one of the payload fields is set, matching Type.
type PipelineEvent struct {
	Type        EventType          `json:"type"`
	SessionID   string             `json:"sessionId"`
	Timestamp   time.Time          `json:"timestamp"`
	Transcript  *TranscriptEvent   `json:"transcript,omitempty"`
	Translation *TranslationResult `json:"translation,omitempty"`
	Synthesis   *SynthesisResult   `json:"synthesis,omitempty"`
	AudioLevel  *AudioLevelSample  `json:"audioLevel,omitempty"`
	State       *StateChange       `json:"state,omitempty"`
	Failure     *SegmentFailure    `json:"failure,omitempty"`
}
