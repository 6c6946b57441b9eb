package encoder

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"
)

func argAfter(t *testing.T, args []string, flag string) string {
	t.Helper()
	for i, a := range args {
		if a == flag {
			if i+1 >= len(args) {
				t.Fatalf("flag %s has no value", flag)
			}
			return args[i+1]
		}
	}
	t.Fatalf("flag %s not found in %v", flag, args)
	return ""
}

func TestCommandDefaults(t *testing.T) {
	t.Parallel()
	e := New(Settings{
		Width:     1280,
		Height:    720,
		Framerate: 60,
		Output:    "out.mkv",
	})
	args := e.Command()

	if args[0] != "ffmpeg" {
		t.Errorf("binary %q, want ffmpeg default", args[0])
	}
	if got := argAfter(t, args, "-s"); got != "1280x720" {
		t.Errorf("-s %q, want 1280x720", got)
	}
	if got := argAfter(t, args, "-pix_fmt"); got != "rgb24" {
		t.Errorf("-pix_fmt %q, want rgb24 default", got)
	}
	if got := argAfter(t, args, "-c:v"); got != "libx264" {
		t.Errorf("-c:v %q, want libx264 default", got)
	}
	if got := argAfter(t, args, "-crf"); got != "17" {
		t.Errorf("-crf %q, want 17 default", got)
	}
	if got := argAfter(t, args, "-vf"); got != "format=yuv420p" {
		t.Errorf("-vf %q, want format=yuv420p without vflip", got)
	}

	// Raw frames come in on stdin; output must be last before -y.
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-f rawvideo -i -") {
		t.Errorf("missing rawvideo stdin input in %q", joined)
	}
	if args[len(args)-1] != "-y" || args[len(args)-2] != "out.mkv" {
		t.Errorf("command must end with output and -y, got %v", args[len(args)-2:])
	}
}

func TestCommandAudioMuxAndVFlip(t *testing.T) {
	t.Parallel()
	e := New(Settings{
		Width:     640,
		Height:    360,
		Framerate: 30,
		AudioPath: "track.wav",
		Output:    "out.mkv",
		VFlip:     true,
	})
	args := e.Command()
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-i track.wav -c:a copy") {
		t.Errorf("audio track not muxed: %q", joined)
	}
	if !strings.Contains(joined, "-shortest") {
		t.Errorf("missing -shortest with muxed audio: %q", joined)
	}
	if got := argAfter(t, args, "-vf"); got != "vflip,format=yuv420p" {
		t.Errorf("-vf %q, want vflip,format=yuv420p", got)
	}
}

func TestDeinterleaveF32LE(t *testing.T) {
	t.Parallel()
	samples := []float32{0.5, -0.5, 0.25, -0.25, 1, -1}
	raw := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(s))
	}
	// Append a partial frame that must be dropped.
	raw = append(raw, 0xde, 0xad)

	left, right := DeinterleaveF32LE(raw)
	if len(left) != 3 || len(right) != 3 {
		t.Fatalf("got %d/%d frames, want 3/3", len(left), len(right))
	}
	wantLeft := []float32{0.5, 0.25, 1}
	wantRight := []float32{-0.5, -0.25, -1}
	for i := range wantLeft {
		if left[i] != wantLeft[i] {
			t.Errorf("left[%d] = %f, want %f", i, left[i], wantLeft[i])
		}
		if right[i] != wantRight[i] {
			t.Errorf("right[%d] = %f, want %f", i, right[i], wantRight[i])
		}
	}
}
