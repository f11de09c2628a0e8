package recognizer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"live-interpreter-service/internal/fault"
	"live-interpreter-service/internal/model"
	"live-interpreter-service/internal/observability/metrics"
)

// Config holds the adapter's stream retry policy.
type Config struct {
	// MaxAttempts is the total number of stream attempts (first try included).
	MaxAttempts int
	// InitialBackoff is the delay before the first retry; it doubles per retry.
	InitialBackoff time.Duration
	// FlushGrace is how long to wait after closing the engine for a trailing
	// final transcript before the event channel is closed.
	FlushGrace time.Duration
}

// DefaultConfig returns the default retry policy: 3 attempts, exponential
// backoff starting at 500ms.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		FlushGrace:     250 * time.Millisecond,
	}
}

// Adapter owns one recognition stream per session. It forwards audio frames
// to the engine, stamps transcript events with strictly increasing sequence
// numbers, forwards the engine's finality flag verbatim, and retries
// transient stream failures within the configured budget. Fatal errors are
// reported on the error channel for the session controller to act on.
type Adapter struct {
	engine Engine
	cfg    Config

	seq atomic.Uint64

	mu     sync.Mutex
	events chan model.TranscriptEvent
	runCtx context.Context
	closed bool
}

// NewAdapter creates a recognition adapter over the given engine.
func NewAdapter(engine Engine, cfg Config) *Adapter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.FlushGrace <= 0 {
		cfg.FlushGrace = 250 * time.Millisecond
	}
	return &Adapter{engine: engine, cfg: cfg}
}

// Run starts the recognition stream and consumes the frame channel until it
// closes or ctx is cancelled. Transcript events are delivered on the first
// returned channel; a non-nil value on the second means the stream failed
// beyond recovery and the session must end. Both channels close when the
// adapter is done.
func (a *Adapter) Run(ctx context.Context, frames <-chan model.AudioFrame) (<-chan model.TranscriptEvent, <-chan error) {
	events := make(chan model.TranscriptEvent, 32)
	errs := make(chan error, 1)

	a.mu.Lock()
	a.events = events
	a.runCtx = ctx
	a.mu.Unlock()

	go func() {
		defer close(errs)
		defer a.closeEvents()

		if err := a.startWithRetry(ctx); err != nil {
			errs <- err
			return
		}

		for {
			select {
			case <-ctx.Done():
				a.engine.Close()
				return
			case frame, ok := <-frames:
				if !ok {
					// Let the engine flush a trailing final before the
					// event channel closes.
					a.engine.Close()
					select {
					case <-time.After(a.cfg.FlushGrace):
					case <-ctx.Done():
					}
					return
				}
				if err := a.engine.SendAudio(ctx, frame.Samples); err != nil {
					if err := a.recover(ctx, err); err != nil {
						errs <- err
						return
					}
				}
			}
		}
	}()

	return events, errs
}

// OnPartial implements Callback.
func (a *Adapter) OnPartial(text string, confidence float64) {
	a.emit(text, false, confidence)
}

// OnFinal implements Callback.
func (a *Adapter) OnFinal(text string, confidence float64) {
	a.emit(text, true, confidence)
}

// OnError implements Callback. Stream errors reported out-of-band by the
// engine surface on the next SendAudio; here they are only logged.
func (a *Adapter) OnError(err error) {
	log.Warn().Err(err).Str("component", "recognizer").Msg("Recognition stream reported error")
}

func (a *Adapter) emit(text string, isFinal bool, confidence float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.events == nil {
		return
	}
	ev := model.TranscriptEvent{
		Seq:        a.seq.Add(1),
		Text:       text,
		IsFinal:    isFinal,
		Confidence: confidence,
		Timestamp:  time.Now(),
	}
	if !isFinal {
		// Partials are advisory; a later partial or the final supersedes them.
		select {
		case a.events <- ev:
		default:
			log.Warn().Uint64("seq", ev.Seq).Str("component", "recognizer").
				Msg("Partial transcript dropped: consumer not keeping up")
		}
		return
	}
	// A final opens a segment downstream. It must reach the aggregator, so
	// block until the consumer takes it or the session is torn down.
	select {
	case a.events <- ev:
	case <-a.runCtx.Done():
		log.Warn().Uint64("seq", ev.Seq).Str("component", "recognizer").
			Msg("Final transcript dropped: session ending")
	}
}

func (a *Adapter) closeEvents() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
}

// startWithRetry opens the recognition stream, retrying transient failures
// with exponential backoff up to the attempt budget.
func (a *Adapter) startWithRetry(ctx context.Context) error {
	backoff := a.cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		err := a.engine.Start(ctx, a)
		if err == nil {
			return nil
		}
		lastErr = err

		if !fault.IsTransient(err) || attempt == a.cfg.MaxAttempts {
			break
		}

		log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", backoff).
			Str("component", "recognizer").Msg("Recognition stream failed, retrying")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	return lastErr
}

// recover handles a mid-stream failure: transient errors re-open the stream
// within the remaining budget, anything else is returned to end the session.
func (a *Adapter) recover(ctx context.Context, cause error) error {
	if !fault.IsTransient(cause) {
		return cause
	}
	a.engine.Close()
	metrics.DefaultMetrics.RecordRecognitionRestart()
	return a.startWithRetry(ctx)
}
