// Package recognizer wraps an external speech recognition engine behind the
// pipeline's own transcript-event boundary.
package recognizer

import "context"

// Callback receives transcript results from the recognition engine.
type Callback interface {
	// OnPartial is called for each interim transcript.
	OnPartial(text string, confidence float64)

	// OnFinal is called when the engine marks a transcript final.
	OnFinal(text string, confidence float64)

	// OnError is called when the recognition stream fails. The error should
	// carry a fault classification so the adapter can decide whether to
	// retry the stream or end the session.
	OnError(err error)
}

// Engine is the external recognition boundary (Google, Azure, scripted, ...).
// Start may be called again after a stream error to open a fresh stream.
type Engine interface {
	// Start begins a streaming recognition session.
	Start(ctx context.Context, cb Callback) error

	// SendAudio forwards one frame of PCM samples to the engine.
	SendAudio(ctx context.Context, samples []int16) error

	// Close ends the session, flushing any pending final transcript.
	Close() error
}
