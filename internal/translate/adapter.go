package translate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"live-interpreter-service/internal/aggregate"
	"live-interpreter-service/internal/fault"
	"live-interpreter-service/internal/model"
	"live-interpreter-service/internal/observability/metrics"
)

// Config holds the translation adapter policy.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// BackoffFactor multiplies the delay between successive retries.
	BackoffFactor int
	// Timeout bounds each translation call.
	Timeout time.Duration
	// MaxInFlight bounds concurrent translations for one session.
	MaxInFlight int
}

// DefaultConfig returns the default policy: 2 retries at 300ms and 900ms,
// 10s per call, 3 segments in flight.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     2,
		InitialBackoff: 300 * time.Millisecond,
		BackoffFactor:  3,
		Timeout:        10 * time.Second,
		MaxInFlight:    3,
	}
}

// Adapter translates finalized segments. Segments are processed with bounded
// concurrency, so results may complete out of segment order; every segment
// produces exactly one result, failed ones included, and the session's
// sequencer restores delivery order.
type Adapter struct {
	translator Translator
	cfg        Config
}

// NewAdapter creates a translation adapter.
func NewAdapter(translator Translator, cfg Config) *Adapter {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 2
	}
	return &Adapter{translator: translator, cfg: cfg}
}

// Run consumes segments until the channel closes or ctx is cancelled. The
// returned channel carries one TranslationResult per segment, in completion
// order, and closes once all in-flight work has finished.
func (a *Adapter) Run(ctx context.Context, segments <-chan aggregate.Segment, sourceLang, targetLang string) <-chan model.TranslationResult {
	results := make(chan model.TranslationResult, 16)
	sem := make(chan struct{}, a.cfg.MaxInFlight)
	var wg sync.WaitGroup

	go func() {
		defer func() {
			wg.Wait()
			close(results)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case seg, ok := <-segments:
				if !ok {
					return
				}
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				wg.Add(1)
				go func(seg aggregate.Segment) {
					defer wg.Done()
					defer func() { <-sem }()
					res := a.translateSegment(ctx, seg, sourceLang, targetLang)
					select {
					case results <- res:
					case <-ctx.Done():
					}
				}(seg)
			}
		}
	}()

	return results
}

// translateSegment runs one segment through the retry policy and always
// produces a result: a failed segment is reported, never dropped.
func (a *Adapter) translateSegment(ctx context.Context, seg aggregate.Segment, sourceLang, targetLang string) model.TranslationResult {
	res := model.TranslationResult{
		Seq:        seg.Seq,
		SourceText: seg.Text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Status:     model.StatusPending,
	}

	start := time.Now()
	text, err := a.translateWithRetry(ctx, seg.Text, sourceLang, targetLang)
	res.Timestamp = time.Now()
	defer func() {
		metrics.DefaultMetrics.RecordTranslation(string(res.Status), time.Since(start).Seconds())
	}()
	if err != nil {
		log.Warn().Err(err).Uint64("seq", seg.Seq).Str("component", "translate").
			Msg("Segment translation failed")
		res.Status = model.StatusFailed
		res.Error = err.Error()
		return res
	}

	res.Status = model.StatusSucceeded
	res.TranslatedText = text
	return res
}

func (a *Adapter) translateWithRetry(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	backoff := a.cfg.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.DefaultMetrics.RecordTranslationRetry()
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			backoff *= time.Duration(a.cfg.BackoffFactor)
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if a.cfg.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		}
		translated, err := a.translator.Translate(callCtx, text, sourceLang, targetLang)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return translated, nil
		}
		// An exceeded per-call deadline counts as transient.
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = fault.Wrap(fault.KindTransient, "translate", err)
		}
		lastErr = err

		if !fault.IsTransient(err) {
			break
		}
	}

	return "", lastErr
}
