package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	applog "mmv/internal/log"
	"mmv/internal/transport"
)

// Publisher samples the current feature frame on a fixed interval,
// packs the FFT magnitudes into a binary packet and sends it through
// a Sender. Pull-based: it reads whatever frame is current at tick
// time instead of being fed every rendered frame.
//
// Packet layout, big-endian:
//
//	uint32  sequence number
//	int64   timestamp, nanoseconds since epoch
//	uint16  magnitude count N
//	N x f32 magnitudes
type Publisher struct {
	sender   *Sender
	provider transport.FrameProvider
	interval time.Duration

	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex

	sequence uint32
	packet   *bytes.Buffer
}

// NewPublisher wires a sender to a frame provider. An interval <= 0
// defaults to ~60Hz.
func NewPublisher(interval time.Duration, sender *Sender, provider transport.FrameProvider) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp: sender cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("udp: frame provider cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("udp: invalid publish interval, defaulting to %s", interval)
	}
	return &Publisher{
		sender:   sender,
		provider: provider,
		interval: interval,
		packet:   new(bytes.Buffer),
	}, nil
}

// Start launches the publishing goroutine. Calling Start while running
// is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.done = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	done := p.done
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("udp: publisher started, interval %s", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-done:
				return
			}
		}
	}()
}

// Stop terminates the publishing goroutine and waits for it.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.done)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// publish builds and sends one packet from the current frame.
func (p *Publisher) publish() {
	frame := p.provider()
	data, err := p.buildPacket(frame.FFT)
	if err != nil {
		applog.Errorf("udp: packing frame: %v", err)
		return
	}
	if err := p.sender.Send(data); err != nil {
		applog.Debugf("udp: send failed: %v", err)
		return
	}
	applog.Debugf("udp: sent packet %d (%d bytes)", p.sequence, len(data))
}

// buildPacket packs the magnitudes into the reusable packet buffer.
// The returned slice is only valid until the next call.
func (p *Publisher) buildPacket(magnitudes []float32) ([]byte, error) {
	p.sequence++
	p.packet.Reset()

	if err := binary.Write(p.packet, binary.BigEndian, p.sequence); err != nil {
		return nil, err
	}
	if err := binary.Write(p.packet, binary.BigEndian, time.Now().UnixNano()); err != nil {
		return nil, err
	}
	if err := binary.Write(p.packet, binary.BigEndian, uint16(len(magnitudes))); err != nil {
		return nil, err
	}
	if err := binary.Write(p.packet, binary.BigEndian, magnitudes); err != nil {
		return nil, err
	}
	return p.packet.Bytes(), nil
}

// Close stops the publisher; it does not close the sender, which the
// caller owns.
func (p *Publisher) Close() error {
	return p.Stop()
}
