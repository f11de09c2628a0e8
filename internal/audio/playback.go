package audio

import (
	"context"
	"sync"
	"time"
)

// Playback is a Device that replays a fixed set of PCM frames at a
// configured cadence, then emits silence frames of the same size.
// It backs the demo binary and tests; real deployments wire a device
// backed by the platform capture API.
type Playback struct {
	frames   [][]int16
	interval time.Duration
	// Silence frames emitted after the script is exhausted. Zero means
	// the channel closes when the script ends.
	silenceFrames int

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
}

// NewPlayback creates a playback device over the given frames.
func NewPlayback(frames [][]int16, interval time.Duration, silenceFrames int) *Playback {
	return &Playback{frames: frames, interval: interval, silenceFrames: silenceFrames}
}

// Frames starts replay and returns the raw frame channel.
func (p *Playback) Frames(ctx context.Context) (<-chan []int16, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrDeviceUnavailable
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	out := make(chan []int16)
	go func() {
		defer close(out)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		frameSize := 320
		if len(p.frames) > 0 {
			frameSize = len(p.frames[0])
		}

		total := len(p.frames) + p.silenceFrames
		for i := 0; i < total; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			var frame []int16
			if i < len(p.frames) {
				frame = p.frames[i]
			} else {
				frame = make([]int16, frameSize)
			}

			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close stops replay. Subsequent Frames calls fail with ErrDeviceUnavailable.
func (p *Playback) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}
