package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mooncitizen/beatphobia-sub003/internal/types"
)

// countingSink records delivered frames.
type countingSink struct {
	mu     sync.Mutex
	frames int
}

func (s *countingSink) OnFrame(frame types.Frame) {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func testSource() *MockSource {
	return &MockSource{Width: 64, Height: 48, FPS: 100, Available: true}
}

// TestConfigureStartStop verifies the happy-path lifecycle and state
// transitions.
func TestConfigureStartStop(t *testing.T) {
	c := NewController(testSource())
	defer c.Close()

	sink := &countingSink{}

	if err := c.Configure(context.Background(), sink); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if got := c.State(); got != types.SessionStopped {
		t.Errorf("Expected Stopped after Configure, got %v", got)
	}

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := c.State(); got != types.SessionRunning {
		t.Errorf("Expected Running after Start, got %v", got)
	}

	// Frames should flow
	deadline := time.Now().Add(2 * time.Second)
	for sink.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Timeout waiting for first frame")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := c.State(); got != types.SessionStopped {
		t.Errorf("Expected Stopped after Stop, got %v", got)
	}

	stats := c.Stats()
	if stats.State != types.SessionStopped {
		t.Errorf("Expected Stopped in stats, got %v", stats.State)
	}
	if stats.Device.FramesDelivered == 0 {
		t.Error("Expected delivery counters in stats")
	}
}

// TestStopHaltsDeliverySynchronously verifies the core guarantee: no
// frame reaches the sink after Stop returns.
func TestStopHaltsDeliverySynchronously(t *testing.T) {
	c := NewController(testSource())
	defer c.Close()

	sink := &countingSink{}
	if err := c.Configure(context.Background(), sink); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	after := sink.count()

	// Several frame periods later the count must be unchanged
	time.Sleep(100 * time.Millisecond)
	if got := sink.count(); got != after {
		t.Errorf("Frames delivered after Stop: %d -> %d", after, got)
	}
}

// TestStartWithoutConfigure verifies ErrNotConfigured.
func TestStartWithoutConfigure(t *testing.T) {
	c := NewController(testSource())
	defer c.Close()

	if err := c.Start(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

// TestConfigureNoDevice verifies a missing camera surfaces as a
// persistent configuration failure wrapping the device error.
func TestConfigureNoDevice(t *testing.T) {
	c := NewController(&MockSource{Available: false})
	defer c.Close()

	err := c.Configure(context.Background(), &countingSink{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
	if !errors.Is(err, ErrNoDevice) {
		t.Errorf("Expected wrapped ErrNoDevice, got %v", err)
	}
	if got := c.State(); got != types.SessionIdle {
		t.Errorf("Expected Idle after failed configure, got %v", got)
	}

	// No automatic retry: Start must still refuse
	if err := c.Start(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured from Start, got %v", err)
	}
}

// TestIdempotentStartStop verifies repeated calls are no-ops.
func TestIdempotentStartStop(t *testing.T) {
	c := NewController(testSource())
	defer c.Close()

	if err := c.Configure(context.Background(), &countingSink{}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := c.Start(); err != nil {
			t.Fatalf("Start %d failed: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		if err := c.Stop(); err != nil {
			t.Fatalf("Stop %d failed: %v", i, err)
		}
	}
	if err := c.Stop(); err != nil {
		t.Errorf("Stop on stopped session should be a no-op, got %v", err)
	}
}

// TestReconfigureAfterStop verifies Configure reopens a stopped session.
func TestReconfigureAfterStop(t *testing.T) {
	c := NewController(testSource())
	defer c.Close()

	sink := &countingSink{}
	if err := c.Configure(context.Background(), sink); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if err := c.Configure(context.Background(), sink); err != nil {
		t.Fatalf("Re-configure failed: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start after re-configure failed: %v", err)
	}
}

// TestCloseRejectsOperations verifies the controller refuses work after
// Close, and that Close is idempotent.
func TestCloseRejectsOperations(t *testing.T) {
	c := NewController(testSource())

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}

	if err := c.Configure(context.Background(), &countingSink{}); !errors.Is(err, ErrControllerClosed) {
		t.Errorf("Expected ErrControllerClosed, got %v", err)
	}
}
