// Package utils holds shared test helpers: deterministic signal
// generators and spectrum inspection utilities.
package utils

import "math"

// GenerateSineWave returns size samples of a pure sine at the given
// frequency, normalized to [-1, 1].
func GenerateSineWave(size int, sampleRate, frequency float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2 * math.Pi * frequency * t))
	}
	return buffer
}

// GenerateComplexWave returns a 440Hz fundamental with two harmonics,
// useful for exercising analysis paths with non-trivial spectra.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal)
	}
	return buffer
}

// StereoSineWave returns left/right channels carrying the same sine.
func StereoSineWave(size int, sampleRate, frequency float64) ([]float32, []float32) {
	left := GenerateSineWave(size, sampleRate, frequency)
	right := make([]float32, size)
	copy(right, left)
	return left, right
}

// FindPeakIndex returns the index of the largest value in values
// within [start, end] (clamped to the slice bounds).
func FindPeakIndex(values []float32, start, end int) int {
	if len(values) == 0 {
		return 0
	}
	if start < 0 {
		start = 0
	}
	if end >= len(values) {
		end = len(values) - 1
	}

	peak := start
	for i := start + 1; i <= end; i++ {
		if values[i] > values[peak] {
			peak = i
		}
	}
	return peak
}
