// Package synth wraps an external text-to-speech endpoint behind the
// pipeline's audio-result boundary.
package synth

import (
	"context"
	"strings"
	"time"
)

// Clip is one synthesized piece of audio.
type Clip struct {
	Audio    []byte
	Duration time.Duration
}

// Synthesizer is the external text-to-speech boundary.
type Synthesizer interface {
	// Synthesize renders text in the given language to audio.
	Synthesize(ctx context.Context, text, lang string) (Clip, error)
}

// SynthesizerFunc adapts a plain function to the Synthesizer interface.
type SynthesizerFunc func(ctx context.Context, text, lang string) (Clip, error)

// Synthesize implements Synthesizer.
func (f SynthesizerFunc) Synthesize(ctx context.Context, text, lang string) (Clip, error) {
	return f(ctx, text, lang)
}

// splitSentences splits text into sentence-like pieces on '.', '!', '?' and
// newlines, retaining punctuation.
func splitSentences(text string) []string {
	txt := strings.TrimSpace(text)
	if txt == "" {
		return nil
	}
	var sentences []string
	var b strings.Builder
	for _, r := range txt {
		switch r {
		case '.', '!', '?':
			b.WriteRune(r)
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		case '\n', '\r':
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// chunkText splits text into chunks of at most threshold runes without
// breaking sentences: consecutive sentences are packed greedily, and a
// single sentence longer than the threshold stays whole rather than being
// cut mid-word.
func chunkText(text string, threshold int) []string {
	if threshold <= 0 || len([]rune(text)) <= threshold {
		return []string{text}
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return []string{text}
	}

	var chunks []string
	var b strings.Builder
	size := 0
	for _, s := range sentences {
		n := len([]rune(s))
		if size > 0 && size+1+n > threshold {
			chunks = append(chunks, b.String())
			b.Reset()
			size = 0
		}
		if size > 0 {
			b.WriteByte(' ')
			size++
		}
		b.WriteString(s)
		size += n
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}
