package engine

import (
	"fmt"
	"math"
)

// BarRenderer is the built-in visualizer: one vertical bar per FFT
// element over a background whose brightness follows the mono
// amplitude. Output is rgb24, matching the encoder's default pixel
// format.
type BarRenderer struct {
	width  int
	height int
}

// NewBarRenderer validates the geometry.
func NewBarRenderer(width, height int) (*BarRenderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("renderer: invalid geometry %dx%d", width, height)
	}
	return &BarRenderer{width: width, height: height}, nil
}

// RenderFrame draws one frame. A fresh payload is allocated per call
// because the frame pipe owns submitted payloads until written.
func (r *BarRenderer) RenderFrame(step int, values map[string][]float32) ([]byte, error) {
	bars := values[ChannelFFT]
	if len(bars) == 0 {
		return nil, fmt.Errorf("renderer: missing %q channel", ChannelFFT)
	}

	frame := make([]byte, r.width*r.height*3)

	// Background pulse from the most responsive end of the rms ramp.
	var pulse float32
	if rms := values[ChannelRMSMono]; len(rms) > 0 {
		pulse = rms[len(rms)-1]
	}
	bg := clampByte(pulse * 40)
	for i := 0; i < len(frame); i += 3 {
		frame[i+2] = bg // dark blue floor
	}

	barWidth := r.width / len(bars)
	if barWidth < 1 {
		barWidth = 1
	}

	for i, v := range bars {
		x0 := i * barWidth
		if x0 >= r.width {
			break
		}
		x1 := x0 + barWidth
		if x1 > r.width {
			x1 = r.width
		}

		barHeight := int(v * float32(r.height) / 4)
		if barHeight > r.height {
			barHeight = r.height
		}
		if barHeight < 0 {
			barHeight = 0
		}

		// Hue shifts across the spectrum, low bars red, high bars
		// violet.
		hue := float64(i) / float64(len(bars))
		red := clampByte(float32(255 * (1 - hue)))
		blue := clampByte(float32(255 * hue))

		for y := r.height - barHeight; y < r.height; y++ {
			for x := x0; x < x1; x++ {
				idx := (y*r.width + x) * 3
				frame[idx] = red
				frame[idx+1] = 64
				frame[idx+2] = blue
			}
		}
	}
	return frame, nil
}

func clampByte(v float32) byte {
	if v <= 0 || math.IsNaN(float64(v)) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v)
}
