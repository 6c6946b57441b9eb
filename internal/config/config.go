// Package config loads and validates the application configuration
// from YAML, with environment variable overrides applied on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"mmv/internal/analysis"
	applog "mmv/internal/log"
)

// Limits and defaults for the audio pipeline.
const (
	DefaultBatchSize  = 2048
	DefaultSampleRate = 48000
	DefaultFPS        = 60

	MinSampleRate = 8000
	MaxSampleRate = 192000
	MaxBatchSize  = 1 << 16
)

// Config is the root configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Audio     AudioConfig              `yaml:"audio"`
	Bands     []analysis.FrequencyBand `yaml:"bands"`
	Video     VideoConfig              `yaml:"video"`
	Smoothing SmoothingConfig          `yaml:"smoothing"`
	Encoder   EncoderConfig            `yaml:"encoder"`
	Transport TransportConfig          `yaml:"transport"`
	Session   SessionConfig            `yaml:"session"`
}

// AudioConfig controls batch geometry and capture.
type AudioConfig struct {
	BatchSize   int `yaml:"batch_size"`
	SampleRate  int `yaml:"sample_rate"`
	InputDevice int `yaml:"input_device"` // -1 for system default
}

// VideoConfig controls the rendered output geometry.
type VideoConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`

	// MaxBufferedFrames bounds the out-of-order frame backlog between
	// the renderer and the encoder.
	MaxBufferedFrames int `yaml:"max_buffered_frames"`
}

// SmoothingConfig controls the temporal interpolator.
type SmoothingConfig struct {
	// FFTRatio is the per-step smoothing ratio for the FFT channel.
	FFTRatio float32 `yaml:"fft_ratio"`
	// FeatureSteps is the element count of each scalar feature ramp.
	FeatureSteps int `yaml:"feature_steps"`
	// Multiplier scales amplitude features before feeding.
	Multiplier float32 `yaml:"multiplier"`
}

// EncoderConfig is passed through to ffmpeg.
type EncoderConfig struct {
	Binary string `yaml:"binary"`
	Preset string `yaml:"preset"`
	Tune   string `yaml:"tune"`
	CRF    int    `yaml:"crf"`
	VFlip  bool   `yaml:"vflip"`
}

// TransportConfig enables the live outputs.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddr    string        `yaml:"websocket_addr"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// SessionConfig controls the render record written next to the output.
type SessionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // empty derives <output>.yaml
}

// DefaultBands covers bass with a low-rate high-resolution band and
// everything else at full rate.
func DefaultBands() []analysis.FrequencyBand {
	return []analysis.FrequencyBand{
		{TargetSampleRate: 1000, StartFreq: 80, EndFreq: 500},
		{TargetSampleRate: 48000, StartFreq: 500, EndFreq: 20000},
	}
}

func defaults() Config {
	return Config{
		LogLevel: "info",
		Audio: AudioConfig{
			BatchSize:   DefaultBatchSize,
			SampleRate:  DefaultSampleRate,
			InputDevice: -1,
		},
		Bands: DefaultBands(),
		Video: VideoConfig{
			Width:             1280,
			Height:            720,
			FPS:               DefaultFPS,
			MaxBufferedFrames: 16,
		},
		Smoothing: SmoothingConfig{
			FFTRatio:     0.2,
			FeatureSteps: 100,
			Multiplier:   3.0,
		},
		Encoder: EncoderConfig{
			Binary: "ffmpeg",
			Preset: "slow",
			Tune:   "film",
			CRF:    17,
			VFlip:  true,
		},
		Transport: TransportConfig{
			WebSocketEnabled: false,
			WebSocketAddr:    ":8080",
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  16 * time.Millisecond,
		},
		Session: SessionConfig{Enabled: true},
	}
}

// LoadConfig reads YAML from path, or searches for config.yaml when
// path is empty, falling back to built-in defaults. Environment
// overrides apply after the file, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Validate checks every field the pipeline depends on.
func (c *Config) Validate() error {
	if c.Audio.BatchSize <= 0 || c.Audio.BatchSize > MaxBatchSize {
		return fmt.Errorf("audio.batch_size %d outside (0, %d]", c.Audio.BatchSize, MaxBatchSize)
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %d outside [%d, %d]",
			c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if len(c.Bands) == 0 {
		return fmt.Errorf("at least one frequency band is required")
	}
	for i, band := range c.Bands {
		if band.TargetSampleRate <= 0 {
			return fmt.Errorf("bands[%d].target_sample_rate must be positive", i)
		}
		if band.StartFreq >= band.EndFreq {
			return fmt.Errorf("bands[%d]: start_freq %.1f not below end_freq %.1f",
				i, band.StartFreq, band.EndFreq)
		}
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return fmt.Errorf("video geometry %dx%d invalid", c.Video.Width, c.Video.Height)
	}
	if c.Video.FPS <= 0 {
		return fmt.Errorf("video.fps must be positive, got %d", c.Video.FPS)
	}
	if c.Video.MaxBufferedFrames <= 0 {
		return fmt.Errorf("video.max_buffered_frames must be positive, got %d",
			c.Video.MaxBufferedFrames)
	}
	if c.Smoothing.FFTRatio < 0 || c.Smoothing.FFTRatio > 1 {
		return fmt.Errorf("smoothing.fft_ratio %.2f outside [0, 1]", c.Smoothing.FFTRatio)
	}
	if c.Smoothing.FeatureSteps <= 0 {
		return fmt.Errorf("smoothing.feature_steps must be positive, got %d",
			c.Smoothing.FeatureSteps)
	}
	if c.Smoothing.Multiplier <= 0 {
		return fmt.Errorf("smoothing.multiplier must be positive, got %.2f",
			c.Smoothing.Multiplier)
	}
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return fmt.Errorf("transport.udp_target_address required when UDP is enabled")
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive")
		}
	}
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddr == "" {
		return fmt.Errorf("transport.websocket_addr required when websocket is enabled")
	}
	return nil
}

// applyEnvOverrides applies MMV_* environment variables on top of the
// loaded configuration.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("MMV_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("MMV_SAMPLE_RATE"); ok {
		if rate, err := strconv.Atoi(val); err == nil {
			c.Audio.SampleRate = rate
			applog.Debugf("config: audio.sample_rate overridden from env: %d", rate)
		}
	}
	if val, ok := os.LookupEnv("MMV_WS_ADDR"); ok {
		c.Transport.WebSocketEnabled = true
		c.Transport.WebSocketAddr = val
		applog.Debugf("config: transport.websocket_addr overridden from env: %s", val)
	}
	if val, ok := os.LookupEnv("MMV_UDP_TARGET"); ok {
		c.Transport.UDPEnabled = true
		c.Transport.UDPTargetAddress = val
		applog.Debugf("config: transport.udp_target_address overridden from env: %s", val)
	}
	if val, ok := os.LookupEnv("MMV_UDP_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
		}
	}
}
