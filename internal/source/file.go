package source

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"

	"mmv/internal/analysis"
	"mmv/internal/dsp"
	"mmv/internal/encoder"
	applog "mmv/internal/log"
)

// FileSource slices a fully decoded audio track into per-step batches.
// Step N covers samples starting at N*sampleRate/fps, so the batch
// window advances exactly one frame of video per step regardless of
// batch size. Slicing is pure: calling Next with the same step always
// yields the same frame, which is what makes renders reproducible.
type FileSource struct {
	extractor *analysis.Extractor

	batchSize  int
	sampleRate int
	fps        int

	left  []float32
	right []float32

	batch analysis.Batch
	info  analysis.FeatureFrame

	configured bool
	loaded     bool
}

// NewFileSource returns a file source producing one batch per video
// frame at the given fps.
func NewFileSource(fps int) *FileSource {
	return &FileSource{
		extractor: analysis.NewExtractor(),
		fps:       fps,
	}
}

// Configure sets the batch geometry and analysis bands.
func (s *FileSource) Configure(batchSize, sampleRate int, bands []analysis.FrequencyBand) error {
	if batchSize <= 0 {
		return fmt.Errorf("source: batch size must be positive, got %d", batchSize)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("source: sample rate must be positive, got %d", sampleRate)
	}
	if s.fps <= 0 {
		return fmt.Errorf("source: fps must be positive, got %d", s.fps)
	}
	if err := s.extractor.Configure(bands); err != nil {
		return err
	}

	s.batchSize = batchSize
	s.sampleRate = sampleRate
	s.batch = analysis.Batch{
		Left:  make([]float32, batchSize),
		Right: make([]float32, batchSize),
	}
	s.info = s.extractor.ZeroFrame()
	s.configured = true
	return nil
}

// Load decodes the audio file into memory at the configured sample
// rate. WAV files are decoded natively; everything else goes through
// ffmpeg.
func (s *FileSource) Load(path string) error {
	if !s.configured {
		return fmt.Errorf("%w: configure before loading", ErrNotReady)
	}

	var left, right []float32
	var err error
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		left, right, err = s.decodeWAV(path)
	} else {
		left, right, err = encoder.DecodeRawAudio("", path, s.sampleRate)
	}
	if err != nil {
		return err
	}
	return s.LoadSamples(left, right)
}

// LoadSamples installs already-decoded stereo samples at the
// configured sample rate. Both channels must match in length.
func (s *FileSource) LoadSamples(left, right []float32) error {
	if !s.configured {
		return fmt.Errorf("%w: configure before loading", ErrNotReady)
	}
	if len(left) == 0 || len(left) != len(right) {
		return fmt.Errorf("source: bad channel lengths %d/%d", len(left), len(right))
	}
	s.left = left
	s.right = right
	s.loaded = true
	applog.Infof("source: loaded %d samples (%.2fs at %dHz)",
		len(left), s.Duration(), s.sampleRate)
	return nil
}

// decodeWAV reads a WAV file natively and resamples it to the
// configured rate if needed.
func (s *FileSource) decodeWAV(path string) (left, right []float32, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("source: opening %s: %w", path, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, nil, fmt.Errorf("source: %s is not a valid WAV file", path)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("source: decoding %s: %w", path, err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 || channels > 2 {
		return nil, nil, fmt.Errorf("source: %s has %d channels, want 1 or 2", path, channels)
	}
	scale := float32(int64(1) << (decoder.BitDepth - 1))

	frames := len(buf.Data) / channels
	left = make([]float32, frames)
	right = make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = float32(buf.Data[i*channels]) / scale
		if channels == 2 {
			right[i] = float32(buf.Data[i*channels+1]) / scale
		} else {
			right[i] = left[i]
		}
	}

	if rate := buf.Format.SampleRate; rate != s.sampleRate {
		applog.Infof("source: resampling %s from %dHz to %dHz", path, rate, s.sampleRate)
		if left, err = dsp.Resample(left, rate, s.sampleRate); err != nil {
			return nil, nil, err
		}
		if right, err = dsp.Resample(right, rate, s.sampleRate); err != nil {
			return nil, nil, err
		}
	}
	return left, right, nil
}

// Duration returns the track length in seconds.
func (s *FileSource) Duration() float64 {
	if s.sampleRate == 0 {
		return 0
	}
	return float64(len(s.left)) / float64(s.sampleRate)
}

// TotalSteps returns how many video frames cover the whole track.
func (s *FileSource) TotalSteps() int {
	return int(math.Ceil(s.Duration() * float64(s.fps)))
}

// Start verifies the source is ready; the file source has no stream to
// open.
func (s *FileSource) Start() error {
	if !s.loaded {
		return fmt.Errorf("%w: no audio loaded", ErrNotReady)
	}
	return nil
}

// Next analyzes the batch for one step. Steps with invalid audio
// degrade to a zero frame and log instead of failing the render.
func (s *FileSource) Next(step int) error {
	if !s.loaded {
		return fmt.Errorf("%w: no audio loaded", ErrNotReady)
	}
	if step < 0 {
		return fmt.Errorf("source: negative step %d", step)
	}

	s.fillBatch(step)

	frame, err := s.extractor.Analyze(&s.batch, s.sampleRate)
	if err != nil {
		applog.Warnf("source: step %d degraded: %v", step, err)
		s.info = s.extractor.ZeroFrame()
		return nil
	}
	s.info = frame
	return nil
}

// fillBatch copies the step's sample window into the batch,
// zero-padding past end of track.
func (s *FileSource) fillBatch(step int) {
	start := int(int64(step) * int64(s.sampleRate) / int64(s.fps))

	for i := 0; i < s.batchSize; i++ {
		pos := start + i
		if pos < len(s.left) {
			s.batch.Left[i] = s.left[pos]
			s.batch.Right[i] = s.right[pos]
		} else {
			s.batch.Left[i] = 0
			s.batch.Right[i] = 0
		}
	}
}

// Info returns the frame produced by the latest Next call.
func (s *FileSource) Info() analysis.FeatureFrame {
	return s.info
}

// FFTLength returns the configured FFT output length.
func (s *FileSource) FFTLength() int {
	return s.extractor.FFTLength()
}

// Close releases the decoded track.
func (s *FileSource) Close() error {
	s.left = nil
	s.right = nil
	s.loaded = false
	return nil
}

var _ BatchSource = (*FileSource)(nil)
