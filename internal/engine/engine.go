// Package engine drives the pipeline: it pulls batches from the audio
// source, feeds the extracted features through the temporal
// interpolator, renders each step and hands the frame to the encoder
// pipe, while mirroring features to any attached live transports.
package engine

import (
	"context"
	"fmt"
	"time"

	"mmv/internal/analysis"
	"mmv/internal/config"
	"mmv/internal/interp"
	applog "mmv/internal/log"
	"mmv/internal/pipe"
	"mmv/internal/session"
	"mmv/internal/source"
	"mmv/internal/transport"
)

// Channel names exposed to renderers. Scalar features come as ramps:
// element 0 is frozen, the last element tracks instantly, so a
// renderer picks its own smoothness per visual element.
const (
	ChannelRMSLeft  = "rms_l"
	ChannelRMSRight = "rms_r"
	ChannelRMSMono  = "rms_m"
	ChannelStdLeft  = "std_l"
	ChannelStdRight = "std_r"
	ChannelStdMono  = "std_m"

	// ChannelProgressive accumulates mono amplitude forever, a
	// monotonic "energy so far" value for scrolling effects.
	ChannelProgressive = "progressive"

	ChannelFFT = "fft"
)

// Renderer turns one step's smoothed channel values into a raw frame
// payload matching the encoder's pixel format.
type Renderer interface {
	RenderFrame(step int, values map[string][]float32) ([]byte, error)
}

// Engine owns the per-step loop. Build with New, attach the optional
// outputs, then call RunRender or RunLive exactly once.
type Engine struct {
	cfg      *config.Config
	src      source.BatchSource
	renderer Renderer
	interp   *interp.Interpolator

	writer     *pipe.Writer
	transports []transport.Transport
	record     *session.Record

	values map[string][]float32
}

// New configures the source and builds the interpolation channels.
func New(cfg *config.Config, src source.BatchSource, renderer Renderer) (*Engine, error) {
	if err := src.Configure(cfg.Audio.BatchSize, cfg.Audio.SampleRate, cfg.Bands); err != nil {
		return nil, fmt.Errorf("engine: configuring source: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		src:      src,
		renderer: renderer,
		interp:   interp.New(),
		values:   make(map[string][]float32),
	}
	if err := e.setupChannels(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) setupChannels() error {
	ramp := interp.Ramp(e.cfg.Smoothing.FeatureSteps)
	for _, name := range []string{
		ChannelRMSLeft, ChannelRMSRight, ChannelRMSMono,
		ChannelStdLeft, ChannelStdRight, ChannelStdMono,
	} {
		if err := e.interp.AddChannelRatios(name, ramp); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
	}
	if err := e.interp.AddChannel(ChannelProgressive, 1, 1); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := e.interp.AddChannel(ChannelFFT, e.src.FFTLength(), e.cfg.Smoothing.FFTRatio); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	for _, name := range e.interp.Channels() {
		current, err := e.interp.Read(name)
		if err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		e.values[name] = current
	}
	return nil
}

// AttachPipe sets the frame pipe used by RunRender.
func (e *Engine) AttachPipe(w *pipe.Writer) {
	e.writer = w
}

// AttachTransport adds a live output fed every step.
func (e *Engine) AttachTransport(t transport.Transport) {
	e.transports = append(e.transports, t)
}

// AttachSession records per-frame amplitudes during RunRender.
func (e *Engine) AttachSession(r *session.Record) {
	e.record = r
}

// Provider exposes the source's current frame for pull-based
// transports.
func (e *Engine) Provider() transport.FrameProvider {
	return e.src.Info
}

// step advances the pipeline once: pull, feed, smooth, snapshot.
func (e *Engine) step(index int) (analysis.FeatureFrame, error) {
	if err := e.src.Next(index); err != nil {
		return analysis.FeatureFrame{}, fmt.Errorf("engine: step %d: %w", index, err)
	}
	frame := e.src.Info()

	if err := e.feed(frame); err != nil {
		return analysis.FeatureFrame{}, fmt.Errorf("engine: step %d: %w", index, err)
	}
	e.interp.Step()

	for name, dst := range e.values {
		if err := e.interp.ReadInto(name, dst); err != nil {
			return analysis.FeatureFrame{}, fmt.Errorf("engine: step %d: %w", index, err)
		}
	}

	for _, t := range e.transports {
		if err := t.Send(frame); err != nil {
			applog.Warnf("engine: transport send failed: %v", err)
		}
	}
	return frame, nil
}

func (e *Engine) feed(frame analysis.FeatureFrame) error {
	mult := e.cfg.Smoothing.Multiplier
	feeds := []struct {
		name  string
		value float32
	}{
		{ChannelRMSLeft, float32(frame.AverageAmplitude.Left) * mult},
		{ChannelRMSRight, float32(frame.AverageAmplitude.Right) * mult},
		{ChannelRMSMono, float32(frame.AverageAmplitude.Mono) * mult},
		{ChannelStdLeft, float32(frame.StandardDeviation.Left)},
		{ChannelStdRight, float32(frame.StandardDeviation.Right)},
		{ChannelStdMono, float32(frame.StandardDeviation.Mono)},
	}
	for _, f := range feeds {
		if err := e.interp.Feed(f.name, interp.Fill, f.value); err != nil {
			return err
		}
	}
	if err := e.interp.Feed(ChannelProgressive, interp.Accumulate,
		float32(frame.AverageAmplitude.Mono)); err != nil {
		return err
	}
	return e.interp.Feed(ChannelFFT, interp.Replace, frame.FFT...)
}

// RunRender renders totalSteps frames through the attached pipe and
// blocks until the encoder stream is fully drained. Cancelling the
// context aborts the pipe, discarding unsent frames.
func (e *Engine) RunRender(ctx context.Context, totalSteps int) error {
	if e.writer == nil {
		return fmt.Errorf("engine: no frame pipe attached")
	}
	if totalSteps <= 0 {
		return fmt.Errorf("engine: total steps must be positive, got %d", totalSteps)
	}

	if err := e.src.Start(); err != nil {
		return fmt.Errorf("engine: starting source: %w", err)
	}
	defer e.src.Close()

	if err := e.writer.Open(totalSteps, e.cfg.Video.MaxBufferedFrames); err != nil {
		return fmt.Errorf("engine: opening frame pipe: %w", err)
	}

	applog.Infof("engine: rendering %d frames at %dfps", totalSteps, e.cfg.Video.FPS)
	started := time.Now()
	lastLog := started

	for index := 0; index < totalSteps; index++ {
		if ctx.Err() != nil {
			e.writer.Abort()
			return ctx.Err()
		}

		frame, err := e.step(index)
		if err != nil {
			e.writer.Abort()
			return err
		}

		payload, err := e.renderer.RenderFrame(index, e.values)
		if err != nil {
			e.writer.Abort()
			return fmt.Errorf("engine: rendering frame %d: %w", index, err)
		}
		if err := e.writer.Submit(index, payload); err != nil {
			e.writer.Abort()
			return fmt.Errorf("engine: submitting frame %d: %w", index, err)
		}

		if e.record != nil {
			e.record.AddFrame(float32(frame.AverageAmplitude.Mono))
		}

		if now := time.Now(); now.Sub(lastLog) >= time.Second {
			lastLog = now
			done := index + 1
			elapsed := now.Sub(started)
			eta := time.Duration(float64(elapsed) / float64(done) * float64(totalSteps-done))
			applog.Infof("engine: frame %d/%d (%.1f%%), eta %s",
				done, totalSteps, float64(done)/float64(totalSteps)*100,
				eta.Round(time.Second))
		}
	}

	if err := e.writer.Close(); err != nil {
		return fmt.Errorf("engine: draining frame pipe: %w", err)
	}
	applog.Infof("engine: rendered %d frames in %s",
		totalSteps, time.Since(started).Round(time.Millisecond))
	return nil
}

// RunLive streams features to the attached transports at the video
// frame rate until the context is cancelled. No pipe is involved.
func (e *Engine) RunLive(ctx context.Context) error {
	if err := e.src.Start(); err != nil {
		return fmt.Errorf("engine: starting source: %w", err)
	}
	defer e.src.Close()

	interval := time.Second / time.Duration(e.cfg.Video.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	applog.Infof("engine: live mode at %dfps", e.cfg.Video.FPS)
	for index := 0; ; index++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := e.step(index); err != nil {
				return err
			}
		}
	}
}
