// Package classify turns the raw frame stream into ranked label
// observations.
//
// Philosophy, inherited from the capture side: drop frames, never
// queue. Classification is latency- and staleness-tolerant, so the
// classifier samples at most one frame per throttle interval and
// silently discards the rest. Predictor failures cost one sample and
// nothing else.
package classify

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mooncitizen/beatphobia-sub003/internal/predict"
	"github.com/mooncitizen/beatphobia-sub003/internal/types"
)

const (
	// DefaultInterval is the throttle window between accepted frames.
	DefaultInterval = 300 * time.Millisecond
	// DefaultMinConfidence rejects predictions below this score.
	DefaultMinConfidence = 0.10

	displayCount  = 3  // labels surfaced for display
	extendedCount = 20 // labels feeding the availability pool
)

var titleCaser = cases.Title(language.English)

// Config tunes a Classifier. Zero values select the defaults above.
type Config struct {
	Interval      time.Duration
	MinConfidence float64
	ExtraStoplist []string
}

// Stats is a snapshot of classifier counters.
type Stats struct {
	FramesSeen      uint64
	FramesAccepted  uint64
	FramesThrottled uint64
	PredictorErrors uint64
	EmptyResults    uint64
}

// Classifier throttles frames and runs the predictor on the survivors.
//
// OnFrame executes synchronously on the frame-delivery goroutine; the
// emit callback fires on the same goroutine and must marshal onto the
// game state loop itself (it does — see the game package).
type Classifier struct {
	predictor     predict.Predictor
	interval      time.Duration
	minConfidence float64
	extraStoplist []string
	emit          func(types.Observation)

	mu           sync.Mutex
	lastAccepted time.Time

	framesSeen      uint64
	framesAccepted  uint64
	framesThrottled uint64
	predictorErrors uint64
	emptyResults    uint64
}

// New creates a Classifier. emit receives one Observation per accepted
// frame that produced at least one surviving label.
func New(predictor predict.Predictor, cfg Config, emit func(types.Observation)) *Classifier {
	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	minConfidence := cfg.MinConfidence
	if minConfidence == 0 {
		minConfidence = DefaultMinConfidence
	}

	return &Classifier{
		predictor:     predictor,
		interval:      interval,
		minConfidence: minConfidence,
		extraStoplist: cfg.ExtraStoplist,
		emit:          emit,
	}
}

// OnFrame implements types.FrameSink.
//
// At most one frame per interval reaches the predictor; the rest are
// dropped immediately (sampling backpressure, not buffering).
func (c *Classifier) OnFrame(frame types.Frame) {
	atomic.AddUint64(&c.framesSeen, 1)

	if !c.acceptFrame(frame.Timestamp) {
		atomic.AddUint64(&c.framesThrottled, 1)
		return
	}
	atomic.AddUint64(&c.framesAccepted, 1)

	predictions, err := c.predictor.Classify(frame)
	if err != nil {
		// Deliberate silent failure: drop the frame, no retry, no
		// propagation. The next throttle tick gets a fresh chance.
		atomic.AddUint64(&c.predictorErrors, 1)
		slog.Debug("classify: predictor failed, skipping frame",
			"seq", frame.Seq,
			"trace_id", frame.TraceID,
			"error", err,
		)
		return
	}

	labels := c.filterAndRank(predictions)
	if len(labels) == 0 {
		atomic.AddUint64(&c.emptyResults, 1)
		return
	}

	top := labels
	if len(top) > displayCount {
		top = top[:displayCount]
	}
	extended := labels
	if len(extended) > extendedCount {
		extended = extended[:extendedCount]
	}

	c.emit(types.Observation{
		FrameSeq: frame.Seq,
		TraceID:  frame.TraceID,
		Top:      top,
		Extended: extended,
	})
}

// acceptFrame is the throttle gate: one atomic check-and-stamp per
// frame, no blocking.
func (c *Classifier) acceptFrame(ts time.Time) bool {
	if ts.IsZero() {
		ts = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastAccepted.IsZero() && ts.Sub(c.lastAccepted) < c.interval {
		return false
	}
	c.lastAccepted = ts
	return true
}

// filterAndRank applies the confidence floor, the stoplist and
// normalization, then sorts by confidence descending.
func (c *Classifier) filterAndRank(predictions []types.Prediction) []types.DetectedLabel {
	labels := make([]types.DetectedLabel, 0, len(predictions))

	for _, p := range predictions {
		if p.Confidence < c.minConfidence {
			continue
		}
		text := Normalize(p.Label)
		if text == "" || stoplisted(text, c.extraStoplist) {
			continue
		}
		labels = append(labels, types.DetectedLabel{
			Text:       text,
			Confidence: p.Confidence,
		})
	}

	sort.SliceStable(labels, func(i, j int) bool {
		return labels[i].Confidence > labels[j].Confidence
	})

	return labels
}

// Stats returns a snapshot of the classifier counters.
func (c *Classifier) Stats() Stats {
	return Stats{
		FramesSeen:      atomic.LoadUint64(&c.framesSeen),
		FramesAccepted:  atomic.LoadUint64(&c.framesAccepted),
		FramesThrottled: atomic.LoadUint64(&c.framesThrottled),
		PredictorErrors: atomic.LoadUint64(&c.predictorErrors),
		EmptyResults:    atomic.LoadUint64(&c.emptyResults),
	}
}

// Normalize converts a raw predictor label to display form: `_` and
// `-` become spaces, runs of whitespace collapse, words are
// title-cased ("coffee_cup" → "Coffee Cup").
func Normalize(label string) string {
	replaced := strings.NewReplacer("_", " ", "-", " ").Replace(label)
	fields := strings.Fields(replaced)
	if len(fields) == 0 {
		return ""
	}
	return titleCaser.String(strings.Join(fields, " "))
}
