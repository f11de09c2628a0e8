package audio

import "math"

// RMS computes the root mean square energy of a frame of PCM samples.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// NormalizedLevel maps a frame's RMS energy onto a 0.0-1.0 scale against a
// fixed reference ceiling. Out-of-range values are clamped, never an error.
func NormalizedLevel(samples []int16, ceiling float64) float64 {
	if ceiling <= 0 {
		return 0
	}
	level := RMS(samples) / ceiling
	if level < 0 {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}
