// Package session records what a render produced: the output file,
// its geometry, and the per-frame amplitude series. The record is
// written as YAML next to the output so later tooling (thumbnailing,
// chapter detection) can find the loud parts without re-analyzing the
// audio.
package session

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Record describes one completed render.
type Record struct {
	Output    string    `yaml:"output"`
	AudioFile string    `yaml:"audio_file,omitempty"`
	Width     int       `yaml:"width"`
	Height    int       `yaml:"height"`
	FPS       int       `yaml:"fps"`
	Frames    int       `yaml:"frames"`
	StartedAt time.Time `yaml:"started_at"`
	Duration  string    `yaml:"duration"`

	// Amplitude holds the mono average amplitude per rendered frame.
	Amplitude []float32 `yaml:"amplitude,flow"`
}

// New returns a record stamped with the current time.
func New(output string, width, height, fps int) *Record {
	return &Record{
		Output:    output,
		Width:     width,
		Height:    height,
		FPS:       fps,
		StartedAt: time.Now().UTC(),
	}
}

// AddFrame appends one frame's amplitude and bumps the frame count.
func (r *Record) AddFrame(amplitude float32) {
	r.Amplitude = append(r.Amplitude, amplitude)
	r.Frames = len(r.Amplitude)
}

// Save finalizes the duration and writes the record to path.
func (r *Record) Save(path string) error {
	r.Duration = time.Since(r.StartedAt).Round(time.Millisecond).String()

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("session: marshaling record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("session: writing %s: %w", path, err)
	}
	return nil
}

// Load reads a record back from path.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: reading %s: %w", path, err)
	}
	var r Record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("session: parsing %s: %w", path, err)
	}
	return &r, nil
}
