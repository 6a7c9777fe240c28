// Package capture owns the camera lifecycle for the focus game.
//
// A single Controller serializes all mutation of the capture device on
// one configuration goroutine, satisfying the capture subsystem's
// single-writer requirement. Frame delivery happens on a separate
// goroutine owned by the Device; Stop is synchronous with respect to
// delivery so downstream state can never be written into after
// teardown.
package capture

import (
	"errors"

	"github.com/mooncitizen/beatphobia-sub003/internal/types"
)

var (
	// ErrNoDevice means the source found no usable rear-facing device.
	// The session stays unconfigured; callers map this to a hardware
	// error surface and must re-Configure explicitly to retry.
	ErrNoDevice = errors.New("capture: no rear-facing device available")

	// ErrNotConfigured means Start was requested before a successful
	// Configure, or Configure previously failed.
	ErrNotConfigured = errors.New("capture: session not configured")

	// ErrControllerClosed means the controller was closed and accepts
	// no further operations.
	ErrControllerClosed = errors.New("capture: controller closed")
)

// Device is a configured capture device.
//
// Contract:
//   - Configure binds the frame sink; must complete before Start
//   - Start begins pushing frames to the sink at sensor cadence on a
//     delivery goroutine owned by the device
//   - Stop blocks until delivery has halted: once it returns, the sink
//     receives no further frames
//   - Start and Stop are idempotent
type Device interface {
	Configure(sink types.FrameSink) error
	Start() error
	Stop() error
}

// DeviceSource discovers and opens the capture device. It models the
// host's camera discovery: Open fails with ErrNoDevice when no
// rear-facing camera exists.
type DeviceSource interface {
	Open() (Device, error)
}

// DeviceStats reports delivery counters from a device.
type DeviceStats struct {
	FramesDelivered uint64
	BytesDelivered  uint64
}

// statser is implemented by devices that track delivery counters.
type statser interface {
	Stats() DeviceStats
}
