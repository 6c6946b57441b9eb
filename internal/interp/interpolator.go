// Package interp maintains named smoothing channels that turn raw
// per-step feature values into temporally smooth animation values.
// Each channel applies first-order exponential smoothing:
//
//	current += (target - current) * ratio
//
// so ratio=1 jumps immediately, ratio=0 freezes, and values between
// trade responsiveness for smoothness. Step is called exactly once per
// rendered frame to keep every channel frame-synchronized.
package interp

import (
	"errors"
	"fmt"
)

// FeedMode selects how Feed applies a value to a channel's target.
type FeedMode int

const (
	// Replace sets the target elementwise; the value must match the
	// channel size.
	Replace FeedMode = iota
	// Fill broadcasts a scalar to every target element.
	Fill
	// Accumulate adds the value into the existing target. Used for
	// progressive channels that never reset, e.g. total energy.
	Accumulate
)

var (
	ErrUnknownChannel = errors.New("unknown interpolation channel")
	ErrSizeMismatch   = errors.New("value size does not match channel size")
)

// Channel is one named smoothing state. Current lags Target by the
// per-element Ratio each step. All three slices share one fixed length
// set at creation.
type Channel struct {
	current []float32
	target  []float32
	ratio   []float32
}

// Interpolator owns a set of named channels. It is driven by the
// single render loop goroutine and is not internally synchronized;
// channel configuration is immutable once added.
type Interpolator struct {
	channels map[string]*Channel
}

// New returns an empty interpolator.
func New() *Interpolator {
	return &Interpolator{channels: make(map[string]*Channel)}
}

// AddChannel creates a channel of the given size with a uniform
// smoothing ratio, the usual choice for FFT bar arrays where every bar
// should react identically.
func (it *Interpolator) AddChannel(name string, size int, ratio float32) error {
	ratios := make([]float32, size)
	for i := range ratios {
		ratios[i] = ratio
	}
	return it.AddChannelRatios(name, ratios)
}

// AddChannelRatios creates a channel whose per-element ratios are
// given directly, e.g. a Ramp for a scalar feature exposed at many
// smoothness levels at once.
func (it *Interpolator) AddChannelRatios(name string, ratios []float32) error {
	if len(ratios) == 0 {
		return fmt.Errorf("interp: channel %q must have at least one element", name)
	}
	for i, r := range ratios {
		if r < 0 || r > 1 {
			return fmt.Errorf("interp: channel %q ratio[%d] = %f outside [0, 1]", name, i, r)
		}
	}
	if _, exists := it.channels[name]; exists {
		return fmt.Errorf("interp: channel %q already exists", name)
	}
	it.channels[name] = &Channel{
		current: make([]float32, len(ratios)),
		target:  make([]float32, len(ratios)),
		ratio:   append([]float32(nil), ratios...),
	}
	return nil
}

// Ramp returns size ratios spaced evenly from 0 to 1, so element 0 is
// frozen, the last element tracks instantly, and everything between
// is progressively smoother.
func Ramp(size int) []float32 {
	ratios := make([]float32, size)
	if size == 1 {
		ratios[0] = 1
		return ratios
	}
	for i := range ratios {
		ratios[i] = float32(i) / float32(size-1)
	}
	return ratios
}

// Feed applies values to the named channel's target. Within one frame,
// Replace and Fill are last-write-wins; Accumulate adds on top of
// whatever the target holds. Accumulate accepts either a single scalar
// (broadcast-added) or a full-size slice.
func (it *Interpolator) Feed(name string, mode FeedMode, values ...float32) error {
	ch, ok := it.channels[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}

	switch mode {
	case Replace:
		if len(values) != len(ch.target) {
			return fmt.Errorf("%w: channel %q: got %d, want %d",
				ErrSizeMismatch, name, len(values), len(ch.target))
		}
		copy(ch.target, values)

	case Fill:
		if len(values) != 1 {
			return fmt.Errorf("%w: channel %q: fill takes one scalar, got %d",
				ErrSizeMismatch, name, len(values))
		}
		for i := range ch.target {
			ch.target[i] = values[0]
		}

	case Accumulate:
		switch len(values) {
		case 1:
			for i := range ch.target {
				ch.target[i] += values[0]
			}
		case len(ch.target):
			for i := range ch.target {
				ch.target[i] += values[i]
			}
		default:
			return fmt.Errorf("%w: channel %q: got %d, want 1 or %d",
				ErrSizeMismatch, name, len(values), len(ch.target))
		}

	default:
		return fmt.Errorf("interp: unknown feed mode %d", mode)
	}
	return nil
}

// Step advances every channel one frame.
func (it *Interpolator) Step() {
	for _, ch := range it.channels {
		for i := range ch.current {
			ch.current[i] += (ch.target[i] - ch.current[i]) * ch.ratio[i]
		}
	}
}

// Read returns a copy of the channel's current smoothed values. It is
// idempotent: reading never changes state.
func (it *Interpolator) Read(name string) ([]float32, error) {
	ch, ok := it.channels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	out := make([]float32, len(ch.current))
	copy(out, ch.current)
	return out, nil
}

// ReadInto copies the channel's current values into dst without
// allocating. dst must match the channel size.
func (it *Interpolator) ReadInto(name string, dst []float32) error {
	ch, ok := it.channels[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	if len(dst) != len(ch.current) {
		return fmt.Errorf("%w: channel %q: got %d, want %d",
			ErrSizeMismatch, name, len(dst), len(ch.current))
	}
	copy(dst, ch.current)
	return nil
}

// Channels returns the channel names, for building the render
// pipeline value map.
func (it *Interpolator) Channels() []string {
	names := make([]string, 0, len(it.channels))
	for name := range it.channels {
		names = append(names, name)
	}
	return names
}
