// Package analysis turns stereo sample batches into the per-step
// feature frames that drive the visuals: banded note-matched FFT
// magnitudes plus simple amplitude statistics.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"mmv/internal/dsp"
	applog "mmv/internal/log"
)

// Errors surfaced by the extractor. Configuration errors are fatal and
// caught before any processing starts; invalid audio data degrades the
// current step only.
var (
	ErrConfig           = errors.New("invalid band configuration")
	ErrInvalidAudioData = errors.New("invalid audio data")
)

// FrequencyBand selects one slice of the analyzed spectrum: the batch
// is resampled to TargetSampleRate and only note frequencies inside
// [StartFreq, EndFreq] contribute magnitudes. Lower target rates give
// the FFT more resolution on the low end, so a bass band resampled to
// 1kHz resolves individual bass notes that a full-rate FFT would smear
// into a couple of bins.
type FrequencyBand struct {
	TargetSampleRate int     `yaml:"target_sample_rate"`
	StartFreq        float64 `yaml:"start_freq"`
	EndFreq          float64 `yaml:"end_freq"`
}

// Spectral flattening line: magnitudes are scaled by the value of the
// line through (20Hz, 0.2) and (20kHz, 62) at the note frequency,
// compensating the natural 1/f rolloff of audio spectra so bass and
// treble bars sit in a comparable visual range.
const (
	flattenLowFreq   = 20.0
	flattenLowValue  = 0.2
	flattenHighFreq  = 20000.0
	flattenHighValue = 62.0
	flattenGain      = 6.0
)

type planKey struct {
	length int
	rate   int
}

// Extractor computes FeatureFrames from audio batches. Configure must
// be called before Analyze; after that the configuration is immutable
// and Analyze may be called repeatedly. An Extractor is owned by a
// single source and is not safe for concurrent use (its FFT plans
// share scratch buffers).
type Extractor struct {
	bands     []FrequencyBand
	bandNotes [][]float64
	fftLength int

	noteFreqs []float64
	plans     map[planKey]*dsp.SpectrumPlan
}

// NewExtractor returns an unconfigured extractor holding the canonical
// note frequency table.
func NewExtractor() *Extractor {
	return &Extractor{
		noteFreqs: dsp.NoteFrequencies(),
		plans:     make(map[planKey]*dsp.SpectrumPlan),
	}
}

// Configure validates and installs the band list, replacing any prior
// configuration. The FFT output length becomes fixed here: it depends
// only on how many note frequencies fall inside each band.
func (e *Extractor) Configure(bands []FrequencyBand) error {
	if len(bands) == 0 {
		return fmt.Errorf("%w: no bands", ErrConfig)
	}

	notes := make([][]float64, 0, len(bands))
	total := 0
	for i, band := range bands {
		if band.TargetSampleRate <= 0 {
			return fmt.Errorf("%w: band %d: target_sample_rate %d must be positive",
				ErrConfig, i, band.TargetSampleRate)
		}
		if band.StartFreq >= band.EndFreq {
			return fmt.Errorf("%w: band %d: start_freq %.1f must be below end_freq %.1f",
				ErrConfig, i, band.StartFreq, band.EndFreq)
		}
		matched := dsp.FrequenciesBetween(e.noteFreqs, band.StartFreq, band.EndFreq)
		notes = append(notes, matched)
		total += len(matched)
	}

	e.bands = append([]FrequencyBand(nil), bands...)
	e.bandNotes = notes
	e.fftLength = total * 2 // left + right
	e.plans = make(map[planKey]*dsp.SpectrumPlan)

	applog.Debugf("analysis: configured %d bands, fft length %d", len(bands), e.fftLength)
	return nil
}

// FFTLength returns the length of the FFT slice Analyze produces. It
// is constant for a fixed band configuration.
func (e *Extractor) FFTLength() int {
	return e.fftLength
}

// ZeroFrame returns an all-zero frame with the configured FFT length,
// used as the substitute value when a step degrades.
func (e *Extractor) ZeroFrame() FeatureFrame {
	return FeatureFrame{FFT: make([]float32, e.fftLength)}
}

// Analyze computes the feature frame for one batch sampled at
// sourceRate. An empty or non-finite batch yields ErrInvalidAudioData;
// callers substitute ZeroFrame and keep going.
func (e *Extractor) Analyze(batch *Batch, sourceRate int) (FeatureFrame, error) {
	if batch == nil || batch.Size() == 0 || len(batch.Right) != batch.Size() {
		return FeatureFrame{}, fmt.Errorf("%w: empty or mismatched batch", ErrInvalidAudioData)
	}
	if sourceRate <= 0 {
		return FeatureFrame{}, fmt.Errorf("%w: source sample rate %d", ErrInvalidAudioData, sourceRate)
	}

	size := batch.Size()
	mono := make([]float64, size)
	left := make([]float64, size)
	right := make([]float64, size)
	for i := 0; i < size; i++ {
		l := float64(batch.Left[i])
		r := float64(batch.Right[i])
		if !isFinite(l) || !isFinite(r) {
			return FeatureFrame{}, fmt.Errorf("%w: non-finite sample at %d", ErrInvalidAudioData, i)
		}
		left[i] = l
		right[i] = r
		mono[i] = (l + r) / 2
	}

	medLeft := medianAbs(left)
	medRight := medianAbs(right)

	frame := FeatureFrame{
		AverageAmplitude: Triple{
			Left:  medLeft,
			Right: medRight,
			Mono:  (medLeft + medRight) / 2,
		},
		StandardDeviation: Triple{
			Left:  stat.PopStdDev(left, nil),
			Right: stat.PopStdDev(right, nil),
			Mono:  stat.PopStdDev(mono, nil),
		},
		FFT: make([]float32, 0, e.fftLength),
	}

	for _, channel := range [][]float32{batch.Left, batch.Right} {
		for bandIndex, band := range e.bands {
			resampled, err := dsp.Resample(channel, sourceRate, band.TargetSampleRate)
			if err != nil {
				return FeatureFrame{}, fmt.Errorf("%w: %v", ErrInvalidAudioData, err)
			}

			plan := e.plan(len(resampled), band.TargetSampleRate)
			mags := plan.Magnitudes(resampled)

			for _, note := range e.bandNotes[bandIndex] {
				bin := plan.NearestBin(note)
				scaled := math.Abs(mags[bin]) * flattenScalar(note) * flattenGain
				frame.FFT = append(frame.FFT, float32(scaled))
			}
		}
	}

	return frame, nil
}

// plan returns the cached spectrum plan for a (length, rate) pair,
// creating it on first use. Batch sizes are fixed per source, so the
// cache stabilizes after the first step.
func (e *Extractor) plan(length, rate int) *dsp.SpectrumPlan {
	key := planKey{length: length, rate: rate}
	if p, ok := e.plans[key]; ok {
		return p
	}
	p := dsp.NewSpectrumPlan(length, float64(rate))
	e.plans[key] = p
	return p
}

// flattenScalar evaluates the flattening line at freq.
func flattenScalar(freq float64) float64 {
	slope := (flattenHighValue - flattenLowValue) / (flattenHighFreq - flattenLowFreq)
	return flattenLowValue + slope*(freq-flattenLowFreq)
}

// medianAbs returns the median of the absolute values.
func medianAbs(data []float64) float64 {
	abs := make([]float64, len(data))
	for i, v := range data {
		abs[i] = math.Abs(v)
	}
	sort.Float64s(abs)

	mid := len(abs) / 2
	if len(abs)%2 == 1 {
		return abs[mid]
	}
	return (abs[mid-1] + abs[mid]) / 2
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
