// Package source produces the per-step audio batches and feature
// frames the render loop consumes. Two implementations exist: a file
// source that slices a fully decoded track deterministically by step
// index, and a realtime source that maintains a rolling batch from a
// capture device.
package source

import (
	"errors"

	"mmv/internal/analysis"
)

var (
	// ErrDeviceUnavailable wraps every capture device failure: missing
	// device, bad ID, stream open errors.
	ErrDeviceUnavailable = errors.New("audio capture device unavailable")

	// ErrNotReady is returned when Next or Start is called before the
	// source has been configured and given audio.
	ErrNotReady = errors.New("source is not ready")
)

// BatchSource is the render loop's view of an audio source. Configure
// then Start, then call Next once per step followed by Info; Close
// releases the underlying resources. Implementations degrade bad
// steps internally: Next only fails on unrecoverable errors, and Info
// always returns a frame of the configured FFT length.
type BatchSource interface {
	Configure(batchSize, sampleRate int, bands []analysis.FrequencyBand) error
	Start() error
	Next(step int) error
	Info() analysis.FeatureFrame
	FFTLength() int
	Close() error
}
