package dsp

import (
	"fmt"
	"math"
)

// Half-width of the windowed-sinc kernel in input samples. 32 taps per
// side keeps aliasing below the visual noise floor of an FFT bar
// display while staying cheap enough for per-band per-step resampling.
const sincTaps = 32

// Resample converts data from originalRate to targetRate.
//
// When the rates match this is the identity function and the input
// slice is returned unchanged. Otherwise a band-limited windowed-sinc
// kernel is convolved at each output position, with the cutoff pulled
// down to the output Nyquist when downsampling. Lower target rates
// concentrate FFT bins on the low end of the spectrum, which is the
// whole point of per-band resampling.
func Resample(data []float32, originalRate, targetRate int) ([]float32, error) {
	if originalRate <= 0 || targetRate <= 0 {
		return nil, fmt.Errorf("resample: invalid rates %d -> %d", originalRate, targetRate)
	}
	if originalRate == targetRate {
		return data, nil
	}

	ratio := float64(targetRate) / float64(originalRate)
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return nil, fmt.Errorf("resample: non-finite ratio %f", ratio)
	}

	outLen := ResampledLength(len(data), originalRate, targetRate)
	out := make([]float32, outLen)

	// Anti-aliasing cutoff relative to the input Nyquist.
	cutoff := 1.0
	if ratio < 1 {
		cutoff = ratio
	}

	for i := range out {
		center := float64(i) / ratio
		lo := int(math.Floor(center)) - sincTaps
		hi := int(math.Ceil(center)) + sincTaps
		if lo < 0 {
			lo = 0
		}
		if hi >= len(data) {
			hi = len(data) - 1
		}

		var acc float64
		for j := lo; j <= hi; j++ {
			x := center - float64(j)
			acc += float64(data[j]) * cutoff * sinc(cutoff*x) * hannTap(x)
		}
		out[i] = float32(acc)
	}

	return out, nil
}

// ResampledLength returns the output length Resample produces for an
// input of length n, so FFT plans can be sized ahead of time.
func ResampledLength(n, originalRate, targetRate int) int {
	if originalRate == targetRate {
		return n
	}
	return int(math.Round(float64(n) * float64(targetRate) / float64(originalRate)))
}

// sinc is the normalized sinc function sin(pi x)/(pi x).
func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// hannTap evaluates a Hann window over the kernel support [-taps, taps].
func hannTap(x float64) float64 {
	if x < -sincTaps || x > sincTaps {
		return 0
	}
	return 0.5 + 0.5*math.Cos(math.Pi*x/sincTaps)
}
