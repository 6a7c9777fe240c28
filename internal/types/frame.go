package types

import "time"

// Frame represents a single video frame with metadata.
//
// IMMUTABILITY CONTRACT:
//   - Producer MUST NOT modify Data after handing the frame to a sink
//   - Consumers MUST NOT modify Data (read-only access)
//
// Frames are shared by reference through the pipeline; the only copy
// happens when the capture layer pulls bytes out of the device buffer.
type Frame struct {
	// Seq is the monotonic sequence number assigned by the device
	Seq uint64
	// Timestamp is when the frame was captured (source time)
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Data contains the raw frame bytes (opaque to everything but the predictor)
	Data []byte
	// TraceID is a unique identifier for correlating a frame across stages
	TraceID string
}

// FrameSink receives frames from a capture device.
//
// OnFrame is invoked synchronously on the frame-delivery goroutine at
// sensor cadence. Implementations must never block on I/O; expensive
// work is expected to throttle and drop, not queue.
type FrameSink interface {
	OnFrame(frame Frame)
}

// FrameSinkFunc adapts a function to the FrameSink interface.
type FrameSinkFunc func(frame Frame)

// OnFrame implements FrameSink.
func (f FrameSinkFunc) OnFrame(frame Frame) { f(frame) }
