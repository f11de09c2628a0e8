package audio

import (
	"math"
	"testing"
)

func TestRMS_EmptyFrame(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("expected 0 for empty frame, got %f", got)
	}
}

func TestRMS_Silence(t *testing.T) {
	if got := RMS(make([]int16, 320)); got != 0 {
		t.Errorf("expected 0 for silence, got %f", got)
	}
}

func TestRMS_ConstantSignal(t *testing.T) {
	samples := make([]int16, 160)
	for i := range samples {
		samples[i] = 1000
	}

	got := RMS(samples)
	if math.Abs(got-1000) > 0.001 {
		t.Errorf("expected RMS 1000 for constant signal, got %f", got)
	}
}

func TestRMS_AlternatingSign(t *testing.T) {
	// RMS is magnitude only; sign must not matter.
	samples := make([]int16, 160)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 500
		} else {
			samples[i] = -500
		}
	}

	got := RMS(samples)
	if math.Abs(got-500) > 0.001 {
		t.Errorf("expected RMS 500, got %f", got)
	}
}

func TestNormalizedLevel(t *testing.T) {
	loud := make([]int16, 160)
	for i := range loud {
		loud[i] = 30000
	}
	quiet := make([]int16, 160)
	for i := range quiet {
		quiet[i] = 600
	}

	tests := []struct {
		name     string
		samples  []int16
		ceiling  float64
		expected float64
	}{
		{"silence", make([]int16, 160), 12000, 0},
		{"half ceiling", quiet, 1200, 0.5},
		{"clamped above ceiling", loud, 12000, 1},
		{"zero ceiling", quiet, 0, 0},
		{"negative ceiling", quiet, -5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizedLevel(tt.samples, tt.ceiling)
			if math.Abs(got-tt.expected) > 0.001 {
				t.Errorf("NormalizedLevel = %f, want %f", got, tt.expected)
			}
		})
	}
}
