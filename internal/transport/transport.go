// Package transport publishes feature frames to external consumers:
// WebSocket for browser visualizers, UDP for local low-latency
// clients. Transports never block the render loop; slow consumers
// drop frames.
package transport

import "mmv/internal/analysis"

// Transport delivers feature frames to one kind of consumer.
// Implementations are safe for concurrent use.
type Transport interface {
	Send(frame analysis.FeatureFrame) error
	Close() error
}

// FrameProvider returns the current feature frame. Pull-style
// transports (the UDP publisher) sample it on their own schedule
// instead of receiving every frame.
type FrameProvider func() analysis.FeatureFrame
