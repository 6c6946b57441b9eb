package dsp

import "math"

// Semitone range of the reference note table relative to A4. -50..67
// spans roughly 24.5Hz to 21.1kHz, covering the audible spectrum.
const (
	noteTableLow  = -50
	noteTableHigh = 68
)

// NoteFrequency returns the equal-tempered frequency of the key n
// semitones away from A4 (440 Hz).
//
//	NoteFrequency(-12) = 220 Hz
//	NoteFrequency(0)   = 440 Hz
//	NoteFrequency(12)  = 880 Hz
func NoteFrequency(n int) float64 {
	return 440 * math.Pow(2, float64(n)/12)
}

// NoteFrequencies returns the canonical reference table of musical
// note frequencies, rounded to 2 decimal places. The table is the
// frequency grid that banded FFT magnitudes are matched against, so
// it must be identical on every call.
func NoteFrequencies() []float64 {
	freqs := make([]float64, 0, noteTableHigh-noteTableLow)
	for n := noteTableLow; n < noteTableHigh; n++ {
		freqs = append(freqs, math.Round(NoteFrequency(n)*100)/100)
	}
	return freqs
}

// FrequenciesBetween filters freqs down to the values inside
// [start, end], preserving order.
func FrequenciesBetween(freqs []float64, start, end float64) []float64 {
	var matched []float64
	for _, f := range freqs {
		if f >= start && f <= end {
			matched = append(matched, f)
		}
	}
	return matched
}
