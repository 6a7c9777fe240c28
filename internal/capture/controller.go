package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mooncitizen/beatphobia-sub003/internal/types"
)

// Controller owns the capture session lifecycle.
//
// All operations (Configure/Start/Stop) are funneled through a single
// background goroutine, so there is never more than one mutator of the
// device or session state. Callers await completion through the
// returned error; Stop always awaits so that "no frames after Stop"
// holds for the caller, not just internally.
type Controller struct {
	source DeviceSource

	ops       chan func()
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu     sync.RWMutex
	state  types.SessionState
	device Device
}

// NewController creates a controller and starts its configuration
// goroutine. Call Close when the controller is no longer needed.
func NewController(source DeviceSource) *Controller {
	c := &Controller{
		source: source,
		ops:    make(chan func(), 4),
		done:   make(chan struct{}),
		state:  types.SessionIdle,
	}

	c.wg.Add(1)
	go c.run()

	return c
}

// run executes queued operations one at a time (configuration context).
func (c *Controller) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case op := <-c.ops:
			op()
		}
	}
}

// do enqueues an operation and awaits its result. The context bounds
// only the caller's wait: an enqueued operation always runs.
func (c *Controller) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)

	select {
	case c.ops <- func() { reply <- fn() }:
	case <-c.done:
		return ErrControllerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Configure selects a capture device and binds the frame sink.
//
// On failure the session remains unconfigured (ErrNotConfigured wraps
// the cause); there is no automatic retry — an explicit re-Configure
// is required. Configure after Stop reopens the session.
func (c *Controller) Configure(ctx context.Context, sink types.FrameSink) error {
	return c.do(ctx, func() error {
		c.setState(types.SessionConfiguring)

		// A re-configure while running halts the old device first
		if old := c.getDevice(); old != nil {
			if err := old.Stop(); err != nil {
				slog.Warn("capture: failed to stop previous device", "error", err)
			}
		}

		device, err := c.source.Open()
		if err != nil {
			c.setDevice(nil)
			c.setState(types.SessionIdle)
			slog.Warn("capture: device open failed", "error", err)
			return fmt.Errorf("%w: %w", ErrNotConfigured, err)
		}

		if err := device.Configure(sink); err != nil {
			c.setDevice(nil)
			c.setState(types.SessionIdle)
			slog.Warn("capture: device configure failed", "error", err)
			return fmt.Errorf("%w: %w", ErrNotConfigured, err)
		}

		c.setDevice(device)
		c.setState(types.SessionStopped) // configured, not yet delivering

		slog.Info("capture: session configured")
		return nil
	})
}

// Start begins frame delivery. No-op if already running; returns
// ErrNotConfigured if Configure has not succeeded.
func (c *Controller) Start() error {
	return c.do(context.Background(), func() error {
		if c.State() == types.SessionRunning {
			return nil // idempotent
		}

		device := c.getDevice()
		if device == nil {
			return ErrNotConfigured
		}

		if err := device.Start(); err != nil {
			return fmt.Errorf("capture: failed to start device: %w", err)
		}

		c.setState(types.SessionRunning)
		slog.Info("capture: session running")
		return nil
	})
}

// Stop halts frame delivery. Synchronous: once Stop returns, the sink
// receives no further frames. No-op if not running.
func (c *Controller) Stop() error {
	return c.do(context.Background(), func() error {
		if c.State() != types.SessionRunning {
			return nil // idempotent
		}

		device := c.getDevice()
		if device != nil {
			if err := device.Stop(); err != nil {
				return fmt.Errorf("capture: failed to stop device: %w", err)
			}
		}

		c.setState(types.SessionStopped)
		slog.Info("capture: session stopped")
		return nil
	})
}

// State returns the current session lifecycle state.
func (c *Controller) State() types.SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Stats contains a session statistics snapshot.
type Stats struct {
	State  types.SessionState
	Device DeviceStats
}

// Stats returns the session state and, when the device tracks them,
// delivery counters.
func (c *Controller) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{State: c.state}
	if s, ok := c.device.(statser); ok {
		stats.Device = s.Stats()
	}
	return stats
}

// Close stops the device if running and shuts the configuration
// goroutine down. The controller accepts no operations afterwards.
// Idempotent.
func (c *Controller) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.Stop()
		close(c.done)
		c.wg.Wait()
	})
	return err
}

func (c *Controller) setState(s types.SessionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) getDevice() Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.device
}

func (c *Controller) setDevice(d Device) {
	c.mu.Lock()
	c.device = d
	c.mu.Unlock()
}
