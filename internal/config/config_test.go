package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Audio.BatchSize != DefaultBatchSize {
		t.Errorf("batch size %d, want %d", cfg.Audio.BatchSize, DefaultBatchSize)
	}
	if cfg.Audio.SampleRate != DefaultSampleRate {
		t.Errorf("sample rate %d, want %d", cfg.Audio.SampleRate, DefaultSampleRate)
	}
	if len(cfg.Bands) != 2 {
		t.Fatalf("got %d default bands, want 2", len(cfg.Bands))
	}
	if cfg.Bands[0].TargetSampleRate != 1000 || cfg.Bands[0].StartFreq != 80 {
		t.Errorf("unexpected bass band: %+v", cfg.Bands[0])
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log_level: debug
audio:
  batch_size: 4096
  sample_rate: 44100
video:
  width: 1920
  height: 1080
  fps: 30
bands:
  - target_sample_rate: 2000
    start_freq: 60
    end_freq: 400
transport:
  udp_enabled: true
  udp_target_address: "127.0.0.1:9999"
  udp_send_interval: 33ms
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Audio.BatchSize != 4096 || cfg.Audio.SampleRate != 44100 {
		t.Errorf("audio config not applied: %+v", cfg.Audio)
	}
	if cfg.Video.Width != 1920 || cfg.Video.FPS != 30 {
		t.Errorf("video config not applied: %+v", cfg.Video)
	}
	if len(cfg.Bands) != 1 || cfg.Bands[0].EndFreq != 400 {
		t.Errorf("bands not applied: %+v", cfg.Bands)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPSendInterval != 33*time.Millisecond {
		t.Errorf("transport config not applied: %+v", cfg.Transport)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Smoothing.FFTRatio != 0.2 {
		t.Errorf("smoothing default lost: %+v", cfg.Smoothing)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.Audio.BatchSize = 0 }},
		{"sample rate too low", func(c *Config) { c.Audio.SampleRate = 4000 }},
		{"no bands", func(c *Config) { c.Bands = nil }},
		{"inverted band", func(c *Config) { c.Bands[0].StartFreq = 600 }},
		{"zero fps", func(c *Config) { c.Video.FPS = 0 }},
		{"zero backlog", func(c *Config) { c.Video.MaxBufferedFrames = 0 }},
		{"fft ratio above one", func(c *Config) { c.Smoothing.FFTRatio = 1.5 }},
		{"zero multiplier", func(c *Config) { c.Smoothing.Multiplier = 0 }},
		{"udp without target", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = ""
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation failure")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MMV_SAMPLE_RATE", "96000")
	t.Setenv("MMV_UDP_TARGET", "10.0.0.5:7000")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Audio.SampleRate != 96000 {
		t.Errorf("sample rate %d, want env override 96000", cfg.Audio.SampleRate)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "10.0.0.5:7000" {
		t.Errorf("udp target not overridden: %+v", cfg.Transport)
	}
}
