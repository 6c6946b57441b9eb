package dsp

import (
	"math"
	"testing"

	"mmv/pkg/utils"
)

func TestResampleIdentity(t *testing.T) {
	t.Parallel()
	input := utils.GenerateSineWave(2048, 48000, 440)
	output, err := Resample(input, 48000, 48000)
	if err != nil {
		t.Fatalf("identity resample failed: %v", err)
	}
	if len(output) != len(input) {
		t.Fatalf("identity changed length: %d != %d", len(output), len(input))
	}
	for i := range input {
		if output[i] != input[i] {
			t.Fatalf("identity modified sample %d: %f != %f", i, output[i], input[i])
		}
	}
}

func TestResampleInvalidRates(t *testing.T) {
	t.Parallel()
	input := make([]float32, 128)
	if _, err := Resample(input, 0, 1000); err == nil {
		t.Error("expected error for zero original rate")
	}
	if _, err := Resample(input, 48000, -1); err == nil {
		t.Error("expected error for negative target rate")
	}
}

func TestResampleDownLength(t *testing.T) {
	t.Parallel()
	input := utils.GenerateSineWave(2048, 48000, 220)
	output, err := Resample(input, 48000, 1000)
	if err != nil {
		t.Fatalf("downsample failed: %v", err)
	}
	want := ResampledLength(2048, 48000, 1000)
	if len(output) != want {
		t.Errorf("expected %d output samples, got %d", want, len(output))
	}
	if want != int(math.Round(2048.0*1000/48000)) {
		t.Errorf("ResampledLength disagrees with ratio math: %d", want)
	}
}

func TestResamplePreservesTone(t *testing.T) {
	t.Parallel()
	// A 100Hz tone at 48kHz downsampled to 1kHz still has to be a
	// 100Hz tone: the dominant period must be ~10 output samples.
	input := utils.GenerateSineWave(4800, 48000, 100)
	output, err := Resample(input, 48000, 1000)
	if err != nil {
		t.Fatalf("downsample failed: %v", err)
	}

	// Count zero crossings away from the kernel edges.
	crossings := 0
	for i := sincTaps; i < len(output)-sincTaps-1; i++ {
		if (output[i] < 0) != (output[i+1] < 0) {
			crossings++
		}
	}
	// ~0.1s of usable signal at 100Hz gives ~2 crossings per cycle.
	span := float64(len(output)-2*sincTaps-1) / 1000.0
	wantCrossings := 2 * 100 * span
	if math.Abs(float64(crossings)-wantCrossings) > wantCrossings*0.2 {
		t.Errorf("expected ~%.0f zero crossings, got %d", wantCrossings, crossings)
	}
}

func TestResampleAmplitudeStable(t *testing.T) {
	t.Parallel()
	input := utils.GenerateSineWave(4800, 48000, 100)
	output, err := Resample(input, 48000, 2000)
	if err != nil {
		t.Fatalf("downsample failed: %v", err)
	}
	var peak float64
	for _, s := range output[sincTaps : len(output)-sincTaps] {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	if peak < 0.7 || peak > 1.3 {
		t.Errorf("resampled peak amplitude %f not near unity", peak)
	}
}
