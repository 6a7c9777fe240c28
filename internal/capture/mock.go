package capture

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mooncitizen/beatphobia-sub003/internal/types"
)

// MockSource provides a synthetic camera for tests and hardware-free
// runs. With Available=false it behaves like a host with no rear
// camera: Open fails with ErrNoDevice.
type MockSource struct {
	Width     int
	Height    int
	FPS       int
	Available bool
}

// Open implements DeviceSource.
func (s *MockSource) Open() (Device, error) {
	if !s.Available {
		return nil, ErrNoDevice
	}
	return NewMockDevice(s.Width, s.Height, s.FPS), nil
}

// MockDevice generates synthetic frames at a fixed cadence.
type MockDevice struct {
	width  int
	height int
	fps    int

	mu            sync.Mutex
	sink          types.FrameSink
	stopCh        chan struct{}
	wg            sync.WaitGroup
	seq           uint64
	framesEmitted uint64
	running       bool
}

// NewMockDevice creates a synthetic camera device.
func NewMockDevice(width, height, fps int) *MockDevice {
	return &MockDevice{width: width, height: height, fps: fps}
}

// Configure implements Device.
func (m *MockDevice) Configure(sink types.FrameSink) error {
	if sink == nil {
		return fmt.Errorf("capture: nil frame sink")
	}
	m.mu.Lock()
	m.sink = sink
	m.mu.Unlock()
	return nil
}

// Start implements Device. Idempotent.
func (m *MockDevice) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	if m.sink == nil {
		return fmt.Errorf("capture: device not configured")
	}

	m.stopCh = make(chan struct{})
	m.running = true

	slog.Info("capture: mock device starting",
		"width", m.width,
		"height", m.height,
		"fps", m.fps,
	)

	m.wg.Add(1)
	go m.generateFrames(m.sink, m.stopCh)

	return nil
}

// Stop implements Device. Blocks until the delivery goroutine has
// exited, so no frame reaches the sink after Stop returns. Idempotent.
func (m *MockDevice) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	stopCh := m.stopCh
	m.mu.Unlock()

	close(stopCh)
	m.wg.Wait()

	slog.Info("capture: mock device stopped",
		"frames_emitted", m.framesEmitted,
	)

	return nil
}

// Stats returns delivery counters.
func (m *MockDevice) Stats() DeviceStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return DeviceStats{
		FramesDelivered: m.framesEmitted,
		BytesDelivered:  m.framesEmitted * uint64(m.width*m.height*3),
	}
}

// generateFrames pushes frames to the sink at the target FPS.
func (m *MockDevice) generateFrames(sink types.FrameSink, stopCh chan struct{}) {
	defer m.wg.Done()

	frameDuration := time.Second / time.Duration(m.fps)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			sink.OnFrame(m.createFrame())
			m.mu.Lock()
			m.framesEmitted++
			m.mu.Unlock()
		}
	}
}

// createFrame allocates a black RGB frame.
func (m *MockDevice) createFrame() types.Frame {
	m.mu.Lock()
	seq := m.seq
	m.seq++
	m.mu.Unlock()

	data := make([]byte, m.width*m.height*3)

	return types.Frame{
		Seq:       seq,
		Timestamp: time.Now(),
		Width:     m.width,
		Height:    m.height,
		Data:      data,
		TraceID:   uuid.New().String(),
	}
}
