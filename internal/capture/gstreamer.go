package capture

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/mooncitizen/beatphobia-sub003/internal/types"
)

// GStreamerSource opens the local camera through a GStreamer v4l2
// pipeline. Open fails softly (ErrNoDevice) when GStreamer or the
// video device is unavailable.
type GStreamerSource struct {
	Device string // e.g. /dev/video0; empty uses the v4l2 default
	Width  int
	Height int
	FPS    int
}

// Open implements DeviceSource.
func (s *GStreamerSource) Open() (Device, error) {
	gst.Init(nil)

	// Probe plugin availability before committing to a pipeline
	probe, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("%w: v4l2src unavailable: %w", ErrNoDevice, err)
	}
	_ = probe.SetState(gst.StateNull)

	return &gstDevice{
		device: s.Device,
		width:  s.Width,
		height: s.Height,
		fps:    s.FPS,
	}, nil
}

// gstDevice is a camera device backed by a GStreamer pipeline:
//
//	v4l2src → videoconvert → videoscale → videorate → capsfilter → appsink
//
// The appsink callback copies buffer bytes (GStreamer reuses buffers)
// and hands the frame to the sink on GStreamer's streaming thread,
// which is the frame-delivery context.
type gstDevice struct {
	device string
	width  int
	height int
	fps    int

	mu       sync.Mutex
	pipeline *gst.Pipeline
	sink     types.FrameSink
	running  bool

	// halted gates the appsink callback so no frame reaches the sink
	// after Stop returns, even if a buffer is already in flight
	halted atomic.Bool

	seq       uint64
	bytesRead uint64
}

// Configure implements Device by building the pipeline and binding the
// appsink callback to the frame sink.
func (d *gstDevice) Configure(sink types.FrameSink) error {
	if sink == nil {
		return fmt.Errorf("capture: nil frame sink")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return fmt.Errorf("capture: failed to create pipeline: %w", err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return fmt.Errorf("capture: failed to create v4l2src: %w", err)
	}
	if d.device != "" {
		src.SetProperty("device", d.device)
	}

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return fmt.Errorf("capture: failed to create videoconvert: %w", err)
	}

	scale, err := gst.NewElement("videoscale")
	if err != nil {
		return fmt.Errorf("capture: failed to create videoscale: %w", err)
	}

	rate, err := gst.NewElement("videorate")
	if err != nil {
		return fmt.Errorf("capture: failed to create videorate: %w", err)
	}
	rate.SetProperty("drop-only", true) // never duplicate frames

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return fmt.Errorf("capture: failed to create capsfilter: %w", err)
	}
	caps := gst.NewCapsFromString(fmt.Sprintf(
		"video/x-raw,format=RGB,width=%d,height=%d,framerate=%d/1",
		d.width, d.height, d.fps,
	))
	capsfilter.SetProperty("caps", caps)

	appSink, err := app.NewAppSink()
	if err != nil {
		return fmt.Errorf("capture: failed to create appsink: %w", err)
	}
	appSink.SetProperty("sync", false)    // no clock sync (real-time)
	appSink.SetProperty("max-buffers", 1) // keep only latest frame
	appSink.SetProperty("drop", true)     // drop, never queue

	elements := []*gst.Element{src, convert, scale, rate, capsfilter, appSink.Element}
	if err := pipeline.AddMany(elements...); err != nil {
		return fmt.Errorf("capture: failed to add elements: %w", err)
	}
	if err := gst.ElementLinkMany(elements...); err != nil {
		return fmt.Errorf("capture: failed to link elements: %w", err)
	}

	appSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: d.onNewSample,
	})

	d.pipeline = pipeline
	d.sink = sink
	d.halted.Store(true) // delivery gated until Start

	slog.Info("capture: camera pipeline configured",
		"device", d.device,
		"resolution", fmt.Sprintf("%dx%d", d.width, d.height),
		"fps", d.fps,
	)

	return nil
}

// Start implements Device. Idempotent.
func (d *gstDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}
	if d.pipeline == nil {
		return fmt.Errorf("capture: device not configured")
	}

	if err := d.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("capture: failed to start pipeline: %w", err)
	}

	d.halted.Store(false)
	d.running = true

	slog.Info("capture: camera pipeline playing")
	return nil
}

// Stop implements Device. The halted gate closes before the pipeline
// winds down, so the sink sees no frames after Stop returns. Idempotent.
func (d *gstDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.halted.Store(true)

	if err := d.pipeline.SetState(gst.StateNull); err != nil {
		slog.Error("capture: failed to stop pipeline", "error", err)
	}
	d.running = false

	slog.Info("capture: camera pipeline stopped")
	return nil
}

// Stats returns delivery counters.
func (d *gstDevice) Stats() DeviceStats {
	return DeviceStats{
		FramesDelivered: atomic.LoadUint64(&d.seq),
		BytesDelivered:  atomic.LoadUint64(&d.bytesRead),
	}
}

// onNewSample pulls a sample from the appsink, copies its bytes and
// delivers the frame. Corrupt samples skip the frame rather than
// terminating the stream.
func (d *gstDevice) onNewSample(sink *app.Sink) gst.FlowReturn {
	if d.halted.Load() {
		return gst.FlowOK
	}

	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("capture: failed to pull sample, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("capture: failed to get buffer, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("capture: empty buffer received")
		return gst.FlowOK
	}

	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	seq := atomic.AddUint64(&d.seq, 1)
	atomic.AddUint64(&d.bytesRead, uint64(len(frameData)))

	// Re-check after the copy: Stop may have raced the pull
	if d.halted.Load() {
		return gst.FlowOK
	}

	d.sink.OnFrame(types.Frame{
		Seq:       seq,
		Timestamp: time.Now(),
		Width:     d.width,
		Height:    d.height,
		Data:      frameData,
		TraceID:   uuid.New().String(),
	})

	return gst.FlowOK
}
