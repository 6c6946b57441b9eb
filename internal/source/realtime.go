package source

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"mmv/internal/analysis"
	applog "mmv/internal/log"
)

const (
	// captureFrames is the PortAudio callback granularity. Small enough
	// that the rolling batch updates many times per video frame.
	captureFrames = 512

	// fadePerChunk decays the existing batch contents each time a new
	// chunk arrives, so stale audio bleeds out instead of cutting off.
	fadePerChunk = 0.95

	captureChannels = 2
	startTimeout    = 5 * time.Second
)

// RealtimeSource captures from an input device and keeps a rolling
// batch of the most recent samples. The PortAudio callback only copies
// samples into a channel; a dedicated goroutine owns the batch, runs
// the extractor and publishes each frame through an atomic pointer, so
// Info never blocks the render loop and Next is a no-op.
type RealtimeSource struct {
	extractor *analysis.Extractor

	deviceID   int
	batchSize  int
	sampleRate int

	stream *portaudio.Stream
	chunks chan []float32
	pool   sync.Pool

	stop      chan struct{}
	ready     chan struct{} // closed on the first published frame
	readyOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup

	batch    analysis.Batch
	snapshot atomic.Pointer[analysis.FeatureFrame]

	// Recording state, written only by the process goroutine.
	recording  atomic.Bool
	recMu      sync.Mutex
	recFile    *os.File
	recEncoder *wav.Encoder
	recBuf     *audio.IntBuffer

	configured bool
}

// NewRealtimeSource returns a source capturing from the given device
// ID; DefaultDeviceID selects the system default input.
func NewRealtimeSource(deviceID int) *RealtimeSource {
	return &RealtimeSource{
		extractor: analysis.NewExtractor(),
		deviceID:  deviceID,
	}
}

// Configure sets the batch geometry and analysis bands.
func (s *RealtimeSource) Configure(batchSize, sampleRate int, bands []analysis.FrequencyBand) error {
	if batchSize <= 0 {
		return fmt.Errorf("source: batch size must be positive, got %d", batchSize)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("source: sample rate must be positive, got %d", sampleRate)
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
	s.chunks = make(chan []float32, 8)
	s.pool = sync.Pool{New: func() any {
		return make([]float32, 0, captureFrames*captureChannels)
	}}
	s.stop = make(chan struct{})
	s.ready = make(chan struct{})
	s.readyOnce = sync.Once{}
	s.configured = true
	return nil
}

// Start opens the capture stream and blocks until the first feature
// frame is available, so callers never observe an all-zero warmup.
func (s *RealtimeSource) Start() error {
	if !s.configured {
		return fmt.Errorf("%w: configure before starting", ErrNotReady)
	}

	device, err := InputDevice(s.deviceID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	applog.Infof("source: capturing from %q at %dHz", device.Name, s.sampleRate)

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: captureChannels,
			Device:   device,
			Latency:  device.DefaultLowInputLatency,
		},
		FramesPerBuffer: captureFrames,
		SampleRate:      float64(s.sampleRate),
	}

	stream, err := portaudio.OpenStream(params, s.capture)
	if err != nil {
		return fmt.Errorf("%w: opening stream: %v", ErrDeviceUnavailable, err)
	}
	s.stream = stream

	s.wg.Add(1)
	go s.processLoop()

	if err := stream.Start(); err != nil {
		s.Close()
		return fmt.Errorf("%w: starting stream: %v", ErrDeviceUnavailable, err)
	}

	select {
	case <-s.ready:
	case <-time.After(startTimeout):
		s.Close()
		return fmt.Errorf("%w: no audio within %s", ErrDeviceUnavailable, startTimeout)
	}
	return nil
}

// capture runs on the PortAudio callback thread. It must not block and
// must not touch the batch: it copies the interleaved samples out of
// the driver buffer and hands them to the process goroutine, dropping
// the chunk if the queue is full.
func (s *RealtimeSource) capture(in []float32) {
	buf := s.pool.Get().([]float32)
	if cap(buf) < len(in) {
		buf = make([]float32, len(in))
	}
	buf = buf[:len(in)]
	copy(buf, in)

	select {
	case s.chunks <- buf:
	default:
		s.pool.Put(buf[:0])
	}
}

// processLoop owns the rolling batch: it folds each chunk in, runs the
// extractor and publishes the resulting frame.
func (s *RealtimeSource) processLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case chunk := <-s.chunks:
			s.roll(chunk)
			s.writeRecording(chunk)
			s.pool.Put(chunk[:0])

			frame, err := s.extractor.Analyze(&s.batch, s.sampleRate)
			if err != nil {
				applog.Warnf("source: realtime analysis degraded: %v", err)
				frame = s.extractor.ZeroFrame()
			}
			s.snapshot.Store(&frame)
			s.readyOnce.Do(func() { close(s.ready) })
		}
	}
}

// roll folds one interleaved stereo chunk into the batch: existing
// content shifts left and fades by fadePerChunk, new samples land
// unfaded at the tail. Oversized chunks keep only their newest
// batchSize frames.
func (s *RealtimeSource) roll(chunk []float32) {
	frames := len(chunk) / captureChannels
	offset := 0
	if frames > s.batchSize {
		offset = (frames - s.batchSize) * captureChannels
		frames = s.batchSize
	}

	keep := s.batchSize - frames
	copy(s.batch.Left, s.batch.Left[frames:])
	copy(s.batch.Right, s.batch.Right[frames:])
	for i := 0; i < keep; i++ {
		s.batch.Left[i] *= fadePerChunk
		s.batch.Right[i] *= fadePerChunk
	}

	for i := 0; i < frames; i++ {
		s.batch.Left[keep+i] = chunk[offset+i*captureChannels]
		s.batch.Right[keep+i] = chunk[offset+i*captureChannels+1]
	}
}

// Next is a no-op: the rolling batch is advanced by the capture
// stream, not by step index, and repeated calls are idempotent.
func (s *RealtimeSource) Next(step int) error {
	return nil
}

// Info returns the most recently published frame without blocking. A
// zero frame comes back if nothing has been captured yet.
func (s *RealtimeSource) Info() analysis.FeatureFrame {
	if frame := s.snapshot.Load(); frame != nil {
		return *frame
	}
	return s.extractor.ZeroFrame()
}

// FFTLength returns the configured FFT output length.
func (s *RealtimeSource) FFTLength() int {
	return s.extractor.FFTLength()
}

// Close stops capture, waits for the process goroutine and finalizes
// any active recording. Safe to call more than once.
func (s *RealtimeSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		if s.stream != nil {
			if stopErr := s.stream.Stop(); stopErr != nil {
				err = stopErr
			}
			if closeErr := s.stream.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
			s.stream = nil
		}
		s.wg.Wait()
		if recErr := s.StopRecording(); recErr != nil && err == nil {
			err = recErr
		}
	})
	return err
}

var _ BatchSource = (*RealtimeSource)(nil)
