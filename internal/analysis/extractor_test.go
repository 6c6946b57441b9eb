package analysis

import (
	"errors"
	"math"
	"testing"

	"mmv/pkg/utils"
)

const testBatchSize = 2048

func testBands() []FrequencyBand {
	return []FrequencyBand{
		{TargetSampleRate: 1000, StartFreq: 80, EndFreq: 500},
		{TargetSampleRate: 48000, StartFreq: 500, EndFreq: 20000},
	}
}

func stereoBatch(left, right []float32) *Batch {
	return &Batch{Left: left, Right: right}
}

func TestConfigureRejectsBadBands(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		bands []FrequencyBand
	}{
		{"empty", nil},
		{"inverted range", []FrequencyBand{{TargetSampleRate: 1000, StartFreq: 500, EndFreq: 80}}},
		{"equal range", []FrequencyBand{{TargetSampleRate: 1000, StartFreq: 100, EndFreq: 100}}},
		{"zero rate", []FrequencyBand{{TargetSampleRate: 0, StartFreq: 80, EndFreq: 500}}},
	}
	for _, c := range cases {
		e := NewExtractor()
		if err := e.Configure(c.bands); !errors.Is(err, ErrConfig) {
			t.Errorf("%s: expected ErrConfig, got %v", c.name, err)
		}
	}
}

func TestAnalyzeFFTLengthConstant(t *testing.T) {
	t.Parallel()
	e := NewExtractor()
	if err := e.Configure(testBands()); err != nil {
		t.Fatal(err)
	}

	want := e.FFTLength()
	if want == 0 {
		t.Fatal("expected non-zero fft length")
	}

	for _, freq := range []float64{60, 220, 1000, 5000} {
		left, right := utils.StereoSineWave(testBatchSize, 48000, freq)
		frame, err := e.Analyze(stereoBatch(left, right), 48000)
		if err != nil {
			t.Fatalf("analyze %fHz: %v", freq, err)
		}
		if len(frame.FFT) != want {
			t.Errorf("analyze %fHz: fft length %d, want %d", freq, len(frame.FFT), want)
		}
	}
}

func TestAnalyzeSinePeakNearTone(t *testing.T) {
	t.Parallel()
	e := NewExtractor()
	bands := []FrequencyBand{{TargetSampleRate: 1000, StartFreq: 80, EndFreq: 500}}
	if err := e.Configure(bands); err != nil {
		t.Fatal(err)
	}

	// Pure 220Hz tone: the left-channel section of the output must
	// peak at the note entry nearest 220Hz.
	left, right := utils.StereoSineWave(testBatchSize, 48000, 220)
	frame, err := e.Analyze(stereoBatch(left, right), 48000)
	if err != nil {
		t.Fatal(err)
	}

	notes := e.bandNotes[0]
	peak := utils.FindPeakIndex(frame.FFT, 0, len(notes)-1)
	if math.Abs(notes[peak]-220) > 1 {
		t.Errorf("peak at note %.2fHz, want 220Hz", notes[peak])
	}

	// Both channels carry the same signal, so the right-channel
	// section must peak at the same note.
	rightPeak := utils.FindPeakIndex(frame.FFT, len(notes), 2*len(notes)-1)
	if rightPeak-len(notes) != peak {
		t.Errorf("right channel peak at note index %d, left at %d", rightPeak-len(notes), peak)
	}
}

func TestAnalyzeAmplitudeStats(t *testing.T) {
	t.Parallel()
	e := NewExtractor()
	if err := e.Configure(testBands()); err != nil {
		t.Fatal(err)
	}

	// DC batch: |median| and stddev are exact.
	left := make([]float32, testBatchSize)
	right := make([]float32, testBatchSize)
	for i := range left {
		left[i] = 0.5
		right[i] = -0.25
	}
	frame, err := e.Analyze(stereoBatch(left, right), 48000)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(frame.AverageAmplitude.Left-0.5) > 1e-9 {
		t.Errorf("left amplitude %f, want 0.5", frame.AverageAmplitude.Left)
	}
	if math.Abs(frame.AverageAmplitude.Right-0.25) > 1e-9 {
		t.Errorf("right amplitude %f, want 0.25", frame.AverageAmplitude.Right)
	}
	if math.Abs(frame.AverageAmplitude.Mono-0.375) > 1e-9 {
		t.Errorf("mono amplitude %f, want 0.375", frame.AverageAmplitude.Mono)
	}
	if frame.StandardDeviation.Left > 1e-9 {
		t.Errorf("constant signal should have zero stddev, got %f", frame.StandardDeviation.Left)
	}
}

func TestAnalyzeRejectsInvalidData(t *testing.T) {
	t.Parallel()
	e := NewExtractor()
	if err := e.Configure(testBands()); err != nil {
		t.Fatal(err)
	}

	if _, err := e.Analyze(&Batch{}, 48000); !errors.Is(err, ErrInvalidAudioData) {
		t.Errorf("empty batch: expected ErrInvalidAudioData, got %v", err)
	}

	left, right := utils.StereoSineWave(testBatchSize, 48000, 220)
	left[100] = float32(math.NaN())
	if _, err := e.Analyze(stereoBatch(left, right), 48000); !errors.Is(err, ErrInvalidAudioData) {
		t.Errorf("NaN batch: expected ErrInvalidAudioData, got %v", err)
	}

	left, right = utils.StereoSineWave(testBatchSize, 48000, 220)
	if _, err := e.Analyze(stereoBatch(left, right), 0); !errors.Is(err, ErrInvalidAudioData) {
		t.Errorf("zero rate: expected ErrInvalidAudioData, got %v", err)
	}
}

func TestZeroFrameMatchesFFTLength(t *testing.T) {
	t.Parallel()
	e := NewExtractor()
	if err := e.Configure(testBands()); err != nil {
		t.Fatal(err)
	}
	zero := e.ZeroFrame()
	if len(zero.FFT) != e.FFTLength() {
		t.Errorf("zero frame fft length %d, want %d", len(zero.FFT), e.FFTLength())
	}
	for i, v := range zero.FFT {
		if v != 0 {
			t.Fatalf("zero frame has non-zero value at %d", i)
		}
	}
}
