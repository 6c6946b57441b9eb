// Package encoder wraps the external ffmpeg process on both sides of
// the pipeline: building the encode command that consumes raw frames
// on stdin, and decoding arbitrary audio files to normalized f32
// stereo samples. The subprocess owns all codec work; this package
// only constructs command lines and moves bytes.
package encoder

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"

	applog "mmv/internal/log"
)

// Settings describes one video encode. Zero values fall back to the
// defaults applied by New.
type Settings struct {
	Binary      string // ffmpeg binary path
	Width       int
	Height      int
	Framerate   int
	PixelFormat string // rawvideo input pixel format: rgb24, rgba, bgra
	AudioPath   string // audio file muxed into the output, "" for none
	Output      string

	Vcodec string // libx264 or libx265
	Preset string
	Tune   string
	CRF    int
	VFlip  bool // rendered frames are usually bottom-up
}

// Encoder manages the ffmpeg encode subprocess. Frames are piped to
// Stdin strictly in order by the frame pipe writer; nothing else may
// touch the stream once Start returns.
type Encoder struct {
	settings Settings
	cmd      *exec.Cmd
	stdin    io.WriteCloser
}

// New returns an encoder with defaults filled in.
func New(settings Settings) *Encoder {
	if settings.Binary == "" {
		settings.Binary = "ffmpeg"
	}
	if settings.PixelFormat == "" {
		settings.PixelFormat = "rgb24"
	}
	if settings.Vcodec == "" {
		settings.Vcodec = "libx264"
	}
	if settings.Preset == "" {
		settings.Preset = "slow"
	}
	if settings.Tune == "" {
		settings.Tune = "film"
	}
	if settings.CRF == 0 {
		settings.CRF = 17
	}
	return &Encoder{settings: settings}
}

// Command returns the full argument vector, binary included. Piping
// raw video means loglevel must stay at panic or ffmpeg's own stderr
// chatter can stall the pipe.
func (e *Encoder) Command() []string {
	s := e.settings
	args := []string{
		s.Binary,
		"-hwaccel", "auto",
		"-loglevel", "panic",
		"-nostats",
		"-hide_banner",
		"-pix_fmt", s.PixelFormat,
		"-r", strconv.Itoa(s.Framerate),
		"-s", fmt.Sprintf("%dx%d", s.Width, s.Height),
		"-f", "rawvideo",
		"-i", "-",
	}

	if s.AudioPath != "" {
		args = append(args, "-i", s.AudioPath, "-c:a", "copy")
	}

	args = append(args,
		"-c:v", s.Vcodec,
		"-preset", s.Preset,
		"-r", strconv.Itoa(s.Framerate),
		"-crf", strconv.Itoa(s.CRF),
		"-tune", s.Tune,
		"-shortest",
		"-profile:v", "baseline",
		"-level", "3.0",
	)

	var filters []string
	if s.VFlip {
		filters = append(filters, "vflip")
	}
	filters = append(filters, "format=yuv420p")
	args = append(args, "-vf", strings.Join(filters, ","))

	args = append(args, s.Output, "-y")
	return args
}

// Start launches the subprocess and returns its stdin, ready to be
// handed to the frame pipe writer.
func (e *Encoder) Start() (io.WriteCloser, error) {
	argv := e.Command()
	applog.Infof("encoder: starting %s", strings.Join(argv, " "))

	e.cmd = exec.Command(argv[0], argv[1:]...)
	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder: stdin pipe: %w", err)
	}
	if err := e.cmd.Start(); err != nil {
		return nil, fmt.Errorf("encoder: starting ffmpeg: %w", err)
	}
	e.stdin = stdin
	return stdin, nil
}

// Wait blocks until the subprocess exits. Call after the frame pipe
// has closed stdin, or ffmpeg will never finish.
func (e *Encoder) Wait() error {
	if e.cmd == nil {
		return fmt.Errorf("encoder: not started")
	}
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("encoder: ffmpeg exited: %w", err)
	}
	return nil
}

// DecodeRawAudio decodes any audio file ffmpeg understands into
// normalized stereo float32 samples at the requested rate, by piping
// pcm_f32le through stdout. Used for every input format the native
// WAV reader does not handle.
func DecodeRawAudio(binary, input string, sampleRate int) (left, right []float32, err error) {
	if binary == "" {
		binary = "ffmpeg"
	}
	args := []string{
		"-loglevel", "panic", "-hide_banner",
		"-i", input,
		"-acodec", "pcm_f32le",
		"-f", "f32le",
		"-ac", "2",
		"-ar", strconv.Itoa(sampleRate),
		"-",
	}
	applog.Infof("encoder: decoding audio %s at %dHz", input, sampleRate)

	cmd := exec.Command(binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("encoder: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("encoder: starting ffmpeg decode: %w", err)
	}

	raw, err := io.ReadAll(stdout)
	if err != nil {
		return nil, nil, fmt.Errorf("encoder: reading decoded audio: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		return nil, nil, fmt.Errorf("encoder: ffmpeg decode exited: %w", err)
	}

	left, right = DeinterleaveF32LE(raw)
	if len(left) == 0 {
		return nil, nil, fmt.Errorf("encoder: no audio decoded from %s", input)
	}
	return left, right, nil
}

// DeinterleaveF32LE splits little-endian interleaved stereo f32 PCM
// into channel slices. Trailing partial frames are dropped.
func DeinterleaveF32LE(raw []byte) (left, right []float32) {
	frames := len(raw) / 8 // 2 channels x 4 bytes
	left = make([]float32, frames)
	right = make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8:]))
		right[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8+4:]))
	}
	return left, right
}
