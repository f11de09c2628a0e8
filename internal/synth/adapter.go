package synth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"live-interpreter-service/internal/model"
	"live-interpreter-service/internal/observability/metrics"
)

// Config holds the synthesis adapter policy.
type Config struct {
	// ChunkThreshold is the text length (in runes) above which a segment is
	// split into sentence-boundary chunks before synthesis.
	ChunkThreshold int
	// ChunkTimeout bounds each chunk's synthesis call.
	ChunkTimeout time.Duration
	// MaxInFlight bounds concurrent segment syntheses for one session.
	MaxInFlight int
}

// DefaultConfig returns the default policy: 500-rune chunks, 15s per chunk,
// 3 segments in flight.
func DefaultConfig() Config {
	return Config{
		ChunkThreshold: 500,
		ChunkTimeout:   15 * time.Second,
		MaxInFlight:    3,
	}
}

// Adapter synthesizes succeeded translations into audio. Long text is split
// at sentence boundaries, chunks are synthesized in order and concatenated;
// any chunk failure fails the whole segment and prior chunk audio is
// discarded, so a broken utterance is never partially played.
type Adapter struct {
	synthesizer Synthesizer
	cfg         Config
}

// NewAdapter creates a synthesis adapter.
func NewAdapter(synthesizer Synthesizer, cfg Config) *Adapter {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}
	return &Adapter{synthesizer: synthesizer, cfg: cfg}
}

// Run consumes succeeded translation results until the channel closes or
// ctx is cancelled, delivering one SynthesisResult per input in completion
// order. The channel closes when all in-flight work has finished.
func (a *Adapter) Run(ctx context.Context, translations <-chan model.TranslationResult, lang string) <-chan model.SynthesisResult {
	results := make(chan model.SynthesisResult, 16)
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
			case tr, ok := <-translations:
				if !ok {
					return
				}
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				wg.Add(1)
				go func(tr model.TranslationResult) {
					defer wg.Done()
					defer func() { <-sem }()
					res := a.synthesizeSegment(ctx, tr, lang)
					select {
					case results <- res:
					case <-ctx.Done():
					}
				}(tr)
			}
		}
	}()

	return results
}

func (a *Adapter) synthesizeSegment(ctx context.Context, tr model.TranslationResult, lang string) model.SynthesisResult {
	res := model.SynthesisResult{
		Seq:    tr.Seq,
		Text:   tr.TranslatedText,
		Status: model.StatusPending,
	}

	chunks := chunkText(tr.TranslatedText, a.cfg.ChunkThreshold)

	start := time.Now()
	defer func() {
		metrics.DefaultMetrics.RecordSynthesis(string(res.Status), time.Since(start).Seconds(), len(chunks))
	}()

	var audio []byte
	var duration time.Duration
	for i, chunk := range chunks {
		clip, err := a.synthesizeChunk(ctx, chunk, lang)
		if err != nil {
			log.Warn().Err(err).Uint64("seq", tr.Seq).Int("chunk", i).
				Str("component", "synth").Msg("Chunk synthesis failed, segment discarded")
			res.Status = model.StatusFailed
			res.Error = err.Error()
			res.Timestamp = time.Now()
			// Prior chunks are discarded with the segment.
			return res
		}
		audio = append(audio, clip.Audio...)
		duration += clip.Duration
	}

	res.Status = model.StatusSucceeded
	res.Audio = audio
	res.Duration = duration
	res.Timestamp = time.Now()
	return res
}

func (a *Adapter) synthesizeChunk(ctx context.Context, text, lang string) (Clip, error) {
	if a.cfg.ChunkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.ChunkTimeout)
		defer cancel()
	}
	return a.synthesizer.Synthesize(ctx, text, lang)
}
