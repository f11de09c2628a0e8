package audio

import (
	"context"
	"testing"
	"time"
)

func loudFrame(n int, amplitude int16) []int16 {
	frame := make([]int16, n)
	for i := range frame {
		frame[i] = amplitude
	}
	return frame
}

func TestSource_SequenceNumbersIncrease(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	device := NewPlayback([][]int16{
		loudFrame(160, 100),
		loudFrame(160, 200),
		loudFrame(160, 300),
	}, time.Millisecond, 0)
	source := NewSource(device, 12000)

	frames, _, err := source.Start(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var last uint64
	count := 0
	for frame := range frames {
		if frame.Seq <= last {
			t.Errorf("sequence not strictly increasing: %d after %d", frame.Seq, last)
		}
		last = frame.Seq
		count++
	}
	if count != 3 {
		t.Errorf("expected 3 frames, got %d", count)
	}
}

func TestSource_StartTwiceFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	device := NewPlayback(nil, time.Millisecond, 1)
	source := NewSource(device, 12000)

	if _, _, err := source.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := source.Start(ctx); err != ErrSourceStarted {
		t.Errorf("expected ErrSourceStarted, got %v", err)
	}
}

func TestSource_MuteSuppressesFrames_SequenceContinues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	script := make([][]int16, 6)
	for i := range script {
		script[i] = loudFrame(160, 100)
	}
	device := NewPlayback(script, time.Millisecond, 0)
	source := NewSource(device, 12000)

	frames, _, err := source.Start(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// First frame flows, then mute, then unmute after the muted frames
	// have been consumed.
	first, ok := <-frames
	if !ok {
		t.Fatal("expected a first frame")
	}

	source.Mute(true)
	source.Mute(true) // idempotent
	if !source.Muted() {
		t.Error("expected source to report muted")
	}
	time.Sleep(3 * time.Millisecond)
	source.Mute(false)

	var seqs []uint64
	for frame := range frames {
		seqs = append(seqs, frame.Seq)
	}

	// Muted frames are suppressed entirely, not renumbered: every emitted
	// frame continues the same strictly increasing sequence.
	last := first.Seq
	for _, s := range seqs {
		if s <= last {
			t.Errorf("sequence broke across mute: %d after %d", s, last)
		}
		last = s
	}
	if len(seqs) >= 5 {
		t.Errorf("expected some frames suppressed while muted, got %d of 5 remaining", len(seqs))
	}
}

func TestSource_LevelsMatchFrameEnergy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	device := NewPlayback([][]int16{loudFrame(160, 6000)}, time.Millisecond, 0)
	source := NewSource(device, 12000)

	_, levels, err := source.Start(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case sample := <-levels:
		if sample.Level < 0.49 || sample.Level > 0.51 {
			t.Errorf("expected level ~0.5, got %f", sample.Level)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a level sample")
	}
}

func TestPlayback_ClosedDeviceUnavailable(t *testing.T) {
	device := NewPlayback(nil, time.Millisecond, 0)
	if err := device.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	if _, err := device.Frames(context.Background()); err != ErrDeviceUnavailable {
		t.Errorf("expected ErrDeviceUnavailable, got %v", err)
	}
}
