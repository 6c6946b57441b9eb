package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"mmv/pkg/bitint"
)

// SpectrumPlan holds the pre-allocated buffers for computing the
// magnitude spectrum of fixed-length real input. Input is Hann
// windowed, zero-padded to the next power of 2 and transformed with a
// reusable gonum FFT instance.
//
// A plan is not safe for concurrent use; each extractor owns its own
// plans, one per (band, batch length) pair.
type SpectrumPlan struct {
	dataLen    int
	fftSize    int
	sampleRate float64

	fftObj *fourier.FFT
	coeffs []float64 // window coefficients over dataLen
	input  []float64
	output []complex128
	mags   []float64
}

// NewSpectrumPlan creates a plan for inputs of exactly dataLen samples
// at the given rate.
func NewSpectrumPlan(dataLen int, sampleRate float64) *SpectrumPlan {
	fftSize := bitint.NextPowerOfTwo(dataLen)

	coeffs := make([]float64, dataLen)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	window.Hann(coeffs)

	outputSize := fftSize/2 + 1

	return &SpectrumPlan{
		dataLen:    dataLen,
		fftSize:    fftSize,
		sampleRate: sampleRate,
		fftObj:     fourier.NewFFT(fftSize),
		coeffs:     coeffs,
		input:      make([]float64, fftSize),
		output:     make([]complex128, outputSize),
		mags:       make([]float64, outputSize),
	}
}

// Magnitudes computes the magnitude spectrum of data. The returned
// slice is the plan's internal buffer, valid until the next call.
// Inputs shorter than the plan length are zero-padded; longer inputs
// are truncated.
func (p *SpectrumPlan) Magnitudes(data []float32) []float64 {
	for i := range p.input {
		if i < len(data) && i < p.dataLen {
			p.input[i] = float64(data[i]) * p.coeffs[i]
		} else {
			p.input[i] = 0
		}
	}

	p.fftObj.Coefficients(p.output, p.input)
	for i, c := range p.output {
		p.mags[i] = cmplx.Abs(c)
	}
	return p.mags
}

// Bins returns the number of magnitude bins (fftSize/2 + 1).
func (p *SpectrumPlan) Bins() int {
	return len(p.mags)
}

// BinFrequency returns the center frequency in Hz of bin i.
func (p *SpectrumPlan) BinFrequency(i int) float64 {
	if i < 0 || i >= len(p.mags) {
		return 0
	}
	return float64(i) * p.sampleRate / float64(p.fftSize)
}

// NearestBin returns the index of the bin whose center frequency is
// closest to freq.
func (p *SpectrumPlan) NearestBin(freq float64) int {
	resolution := p.sampleRate / float64(p.fftSize)
	bin := int(math.Round(freq / resolution))
	if bin < 0 {
		bin = 0
	}
	if bin >= len(p.mags) {
		bin = len(p.mags) - 1
	}
	return bin
}
