package transport

import (
	"encoding/json"
	"testing"

	"mmv/internal/analysis"
)

func TestFramePayloadShape(t *testing.T) {
	t.Parallel()
	frame := analysis.FeatureFrame{
		AverageAmplitude:  analysis.Triple{Left: 0.1, Right: 0.2, Mono: 0.15},
		StandardDeviation: analysis.Triple{Left: 0.3, Right: 0.4, Mono: 0.35},
		FFT:               []float32{1, 2, 3},
	}

	data, err := json.Marshal(newFramePayload(frame))
	if err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Amplitude struct {
			Left, Right, Mono float64
		}
		StdDev struct {
			Mono float64
		} `json:"std_dev"`
		FFT []float32 `json:"fft"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	if decoded.Amplitude.Mono != 0.15 {
		t.Errorf("amplitude mono %f, want 0.15", decoded.Amplitude.Mono)
	}
	if decoded.StdDev.Mono != 0.35 {
		t.Errorf("std_dev mono %f, want 0.35", decoded.StdDev.Mono)
	}
	if len(decoded.FFT) != 3 || decoded.FFT[2] != 3 {
		t.Errorf("fft %v, want [1 2 3]", decoded.FFT)
	}
}

func TestSendNeverBlocks(t *testing.T) {
	t.Parallel()
	// No broadcast goroutine draining: Send must drop, not block.
	tr := &WebSocketTransport{broadcast: make(chan framePayload, 1)}
	frame := analysis.FeatureFrame{FFT: []float32{1}}
	for i := 0; i < 10; i++ {
		if err := tr.Send(frame); err != nil {
			t.Fatal(err)
		}
	}
}
