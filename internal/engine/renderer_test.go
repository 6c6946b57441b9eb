package engine

import "testing"

func TestBarRendererFrameSize(t *testing.T) {
	t.Parallel()
	r, err := NewBarRenderer(64, 32)
	if err != nil {
		t.Fatal(err)
	}
	values := map[string][]float32{
		ChannelFFT:     {0, 1, 2, 3},
		ChannelRMSMono: {0.5},
	}
	frame, err := r.RenderFrame(0, values)
	if err != nil {
		t.Fatal(err)
	}
	if len(frame) != 64*32*3 {
		t.Fatalf("frame is %d bytes, want %d", len(frame), 64*32*3)
	}
}

func TestBarRendererDrawsBars(t *testing.T) {
	t.Parallel()
	r, err := NewBarRenderer(8, 8)
	if err != nil {
		t.Fatal(err)
	}
	// One loud bar; bottom-left pixels must be lit.
	values := map[string][]float32{
		ChannelFFT:     {100, 0},
		ChannelRMSMono: {0},
	}
	frame, err := r.RenderFrame(0, values)
	if err != nil {
		t.Fatal(err)
	}

	bottomLeft := ((8-1)*8 + 0) * 3
	if frame[bottomLeft] == 0 {
		t.Error("loud bar did not light its column")
	}
	bottomRight := ((8-1)*8 + 7) * 3
	if frame[bottomRight] != 0 {
		t.Error("silent bar lit a pixel")
	}
}

func TestBarRendererMissingChannel(t *testing.T) {
	t.Parallel()
	r, err := NewBarRenderer(8, 8)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.RenderFrame(0, map[string][]float32{}); err == nil {
		t.Error("expected error without fft channel")
	}
}

func TestBarRendererValidation(t *testing.T) {
	t.Parallel()
	if _, err := NewBarRenderer(0, 10); err == nil {
		t.Error("expected error for zero width")
	}
}
