// Package audio provides the capture device boundary and the frame source
// that feeds the recognition pipeline.
package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"live-interpreter-service/internal/model"
)

var (
	// ErrSourceStarted is returned when Start is called twice.
	ErrSourceStarted = errors.New("audio source already started")
	// ErrDeviceUnavailable is returned by devices that cannot begin capture.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
)

// Device is the capture boundary. Frames returns a channel of raw PCM
// frames emitted at the device's capture cadence; the channel is closed
// when the device stops or the context is cancelled.
type Device interface {
	Frames(ctx context.Context) (<-chan []int16, error)
	Close() error
}

// Source wraps a capture device, stamping frames with a monotonic sequence
// number and capture time and computing one level sample per frame.
// Mute suppresses frames without tearing down the device; the sequence
// continues unbroken when unmuted.
type Source struct {
	device  Device
	ceiling float64

	muted atomic.Bool
	seq   atomic.Uint64

	mu      sync.Mutex
	started bool
}

// NewSource creates a frame source over the given device.
// ceiling is the RMS value mapped to 1.0 on the normalized level scale.
func NewSource(device Device, ceiling float64) *Source {
	return &Source{device: device, ceiling: ceiling}
}

// Start begins consuming the device and returns the frame and level
// channels. Both channels close when the device stream ends or ctx is
// cancelled. Start may only be called once per Source.
func (s *Source) Start(ctx context.Context) (<-chan model.AudioFrame, <-chan model.AudioLevelSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, nil, ErrSourceStarted
	}

	raw, err := s.device.Frames(ctx)
	if err != nil {
		return nil, nil, err
	}
	s.started = true

	frames := make(chan model.AudioFrame, 16)
	levels := make(chan model.AudioLevelSample, 16)

	go func() {
		defer close(frames)
		defer close(levels)
		for {
			select {
			case <-ctx.Done():
				return
			case samples, ok := <-raw:
				if !ok {
					return
				}
				if s.muted.Load() {
					continue
				}
				now := time.Now()
				frame := model.AudioFrame{
					Samples:  samples,
					Seq:      s.seq.Add(1),
					Captured: now,
				}
				sample := model.AudioLevelSample{
					Level:     NormalizedLevel(samples, s.ceiling),
					Timestamp: now,
				}
				select {
				case frames <- frame:
				case <-ctx.Done():
					return
				}
				// Level samples are observational; drop rather than stall
				// the capture path behind a slow consumer.
				select {
				case levels <- sample:
				default:
				}
			}
		}
	}()

	return frames, levels, nil
}

// Mute suppresses or resumes frame emission. Idempotent.
func (s *Source) Mute(muted bool) {
	s.muted.Store(muted)
}

// Muted reports whether the source is currently muted.
func (s *Source) Muted() bool {
	return s.muted.Load()
}

// Close tears down the underlying device.
func (s *Source) Close() error {
	return s.device.Close()
}
