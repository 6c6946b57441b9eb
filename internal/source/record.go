package source

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "mmv/internal/log"
)

const recordBitDepth = 32

// StartRecording begins mirroring captured audio to a 32-bit stereo
// WAV file. Recording can start and stop at any time while the stream
// runs.
func (s *RealtimeSource) StartRecording(path string) error {
	if s.recording.Load() {
		return fmt.Errorf("source: already recording")
	}
	if !s.configured {
		return fmt.Errorf("%w: configure before recording", ErrNotReady)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("source: creating recording %s: %w", path, err)
	}

	s.recMu.Lock()
	s.recFile = file
	s.recEncoder = wav.NewEncoder(file, s.sampleRate, recordBitDepth, captureChannels, 1)
	s.recBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: captureChannels,
			SampleRate:  s.sampleRate,
		},
		SourceBitDepth: recordBitDepth,
		Data:           make([]int, captureFrames*captureChannels),
	}
	s.recMu.Unlock()

	s.recording.Store(true)
	applog.Infof("source: recording to %s", path)
	return nil
}

// StopRecording finalizes the WAV file. Calling it while not recording
// is a no-op.
func (s *RealtimeSource) StopRecording() error {
	if !s.recording.Swap(false) {
		return nil
	}

	s.recMu.Lock()
	defer s.recMu.Unlock()

	if s.recEncoder != nil {
		if err := s.recEncoder.Close(); err != nil {
			return fmt.Errorf("source: finalizing recording: %w", err)
		}
		s.recEncoder = nil
	}
	if s.recFile != nil {
		if err := s.recFile.Close(); err != nil {
			return fmt.Errorf("source: closing recording: %w", err)
		}
		s.recFile = nil
	}
	return nil
}

// writeRecording appends one interleaved chunk to the active
// recording. Called only from the process goroutine, so the encoder
// sees samples in capture order.
func (s *RealtimeSource) writeRecording(chunk []float32) {
	if !s.recording.Load() {
		return
	}

	s.recMu.Lock()
	defer s.recMu.Unlock()
	if s.recEncoder == nil {
		return
	}

	if cap(s.recBuf.Data) < len(chunk) {
		s.recBuf.Data = make([]int, len(chunk))
	}
	s.recBuf.Data = s.recBuf.Data[:len(chunk)]

	const scale = 1<<(recordBitDepth-1) - 1
	for i, sample := range chunk {
		s.recBuf.Data[i] = int(sample * scale)
	}

	if err := s.recEncoder.Write(s.recBuf); err != nil {
		applog.Errorf("source: recording write failed: %v", err)
	}
}
