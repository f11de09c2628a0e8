// Package aggregate turns a stream of partial transcript events into stable
// finalized segments ready for translation.
package aggregate

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"live-interpreter-service/internal/model"
	"live-interpreter-service/internal/observability/metrics"
)

// Segment is a finalized span of transcribed speech, the unit handed to the
// translation stage. Seq is the sequence number of the transcript event that
// finalized it, so downstream results can be re-ordered against transcripts.
type Segment struct {
	Seq        uint64
	Text       string
	Confidence float64
	Finalized  time.Time
}

// Config holds the finalization policy.
type Config struct {
	// Debounce is the quiet period after the last partial before the pending
	// text is treated as stable even without an engine final.
	Debounce time.Duration
	// MaxPartials force-finalizes a segment that keeps updating without a
	// final, bounding memory for a runaway stream. Zero disables the cap.
	MaxPartials int
}

// DefaultConfig returns the default finalization policy.
func DefaultConfig() Config {
	return Config{
		Debounce:    400 * time.Millisecond,
		MaxPartials: 500,
	}
}

// Aggregator applies the finalization policy: an engine final finalizes
// immediately, a debounce timeout finalizes the last partial, later partials
// replace (never append to) the pending text, and empty or whitespace-only
// text is dropped without producing a segment.
type Aggregator struct {
	cfg Config
}

// New creates an aggregator with the given policy.
func New(cfg Config) *Aggregator {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 400 * time.Millisecond
	}
	return &Aggregator{cfg: cfg}
}

// Run consumes transcript events until the channel closes or ctx is
// cancelled, delivering finalized segments in order on the returned channel.
// A pending partial left when the input closes is finalized: no more
// partials can supersede it.
func (a *Aggregator) Run(ctx context.Context, events <-chan model.TranscriptEvent) <-chan Segment {
	out := make(chan Segment, 16)

	go func() {
		defer close(out)

		var pending *model.TranscriptEvent
		var timer *time.Timer
		var timerC <-chan time.Time
		partialCount := 0

		stopTimer := func() {
			if timer != nil {
				timer.Stop()
				timer = nil
				timerC = nil
			}
		}

		finalize := func(ev model.TranscriptEvent) {
			stopTimer()
			pending = nil
			partialCount = 0

			if strings.TrimSpace(ev.Text) == "" {
				log.Debug().Uint64("seq", ev.Seq).Str("component", "aggregator").
					Msg("Empty segment dropped")
				metrics.DefaultMetrics.RecordSegmentDropped("empty_text")
				return
			}

			seg := Segment{
				Seq:        ev.Seq,
				Text:       ev.Text,
				Confidence: ev.Confidence,
				Finalized:  time.Now(),
			}
			select {
			case out <- seg:
			case <-ctx.Done():
			}
		}

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-events:
				if !ok {
					if pending != nil {
						finalize(*pending)
					}
					return
				}

				if ev.IsFinal {
					finalize(ev)
					continue
				}

				// A later partial supersedes the pending one.
				pending = &ev
				partialCount++
				if a.cfg.MaxPartials > 0 && partialCount >= a.cfg.MaxPartials {
					log.Warn().Uint64("seq", ev.Seq).Int("partials", partialCount).
						Str("component", "aggregator").
						Msg("Partial cap reached, force-finalizing segment")
					finalize(ev)
					continue
				}
				stopTimer()
				timer = time.NewTimer(a.cfg.Debounce)
				timerC = timer.C

			case <-timerC:
				if pending != nil {
					finalize(*pending)
				}
			}
		}
	}()

	return out
}
