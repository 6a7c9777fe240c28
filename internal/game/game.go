// Package game orchestrates the focus mini-game pipeline:
// permission → capture configuration → session start → settle delay →
// challenge engine.
//
// Concurrency model (three logical contexts):
//   - configuration: the capture.Controller's serialized goroutine
//   - frame delivery: the device's goroutine, running the classifier
//     synchronously per frame
//   - observation/state: the single stateLoop goroutine below, the
//     only mutator of the availability tracker and challenge engine
//
// Classifier output and user actions are marshaled onto the state loop
// through buffered channels with non-blocking sends: under pressure we
// drop, never queue, and never block the frame-delivery context.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mooncitizen/beatphobia-sub003/internal/availability"
	"github.com/mooncitizen/beatphobia-sub003/internal/capture"
	"github.com/mooncitizen/beatphobia-sub003/internal/challenge"
	"github.com/mooncitizen/beatphobia-sub003/internal/classify"
	"github.com/mooncitizen/beatphobia-sub003/internal/config"
	"github.com/mooncitizen/beatphobia-sub003/internal/predict"
	"github.com/mooncitizen/beatphobia-sub003/internal/types"
)

// ErrPermissionDenied means the camera permission was not granted;
// the pipeline refuses to start.
var ErrPermissionDenied = errors.New("game: camera permission not granted")

// EventSink receives game events for telemetry. A nil sink disables
// emission.
type EventSink interface {
	Publish(event types.Event) error
}

type actionKind int

const (
	actSelect actionKind = iota
	actSkip
)

type action struct {
	kind  actionKind
	label string
}

// Quest is the focus mini-game orchestrator.
type Quest struct {
	cfg *config.Config

	controller *capture.Controller
	classifier *classify.Classifier
	tracker    *availability.Tracker
	engine     *challenge.Engine
	predictor  predict.Predictor
	perm       PermissionSource
	events     EventSink

	obsCh      chan types.Observation
	actionCh   chan action
	emitCh     chan types.Event
	notify     chan struct{}
	reconfigCh chan struct{}

	snapMu sync.RWMutex
	snap   Snapshot

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	emitWg    sync.WaitGroup

	obsDropped    uint64
	actionDropped uint64
}

// NewQuest wires the pipeline. events may be nil.
func NewQuest(cfg *config.Config, source capture.DeviceSource, predictor predict.Predictor, perm PermissionSource, events EventSink) *Quest {
	q := &Quest{
		cfg:        cfg,
		predictor:  predictor,
		perm:       perm,
		events:     events,
		obsCh:      make(chan types.Observation, 8),
		actionCh:   make(chan action, 8),
		emitCh:     make(chan types.Event, 16),
		notify:     make(chan struct{}, 1),
		reconfigCh: make(chan struct{}, 1),
	}

	q.tracker = availability.New(time.Duration(cfg.Game.AvailabilityTTLS) * time.Second)
	q.engine = challenge.New(q.tracker, cfg.Game.PointsPerFind)
	q.classifier = classify.New(predictor, classify.Config{
		Interval:      time.Duration(cfg.Classify.IntervalMS) * time.Millisecond,
		MinConfidence: cfg.Classify.MinConfidence,
		ExtraStoplist: cfg.Classify.ExtraStoplist,
	}, q.postObservation)
	q.controller = capture.NewController(source)

	return q
}

// Run starts the pipeline and blocks until ctx is cancelled.
//
// Sequence: permission check → configure → start → settle delay →
// engine start. Configuration failure leaves a persistent
// "not configured" snapshot; there is no automatic retry.
func (q *Quest) Run(ctx context.Context) error {
	q.mu.Lock()
	if q.isRunning {
		q.mu.Unlock()
		return fmt.Errorf("game: already running")
	}
	q.isRunning = true
	q.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	q.mu.Lock()
	q.cancel = cancel
	q.mu.Unlock()

	perm, err := q.perm.Request(ctx)
	if err != nil {
		return fmt.Errorf("game: permission request failed: %w", err)
	}
	if perm != types.PermissionGranted {
		slog.Warn("game: camera permission not granted", "permission", perm.String())
		q.publishSnapshot(func(s *Snapshot) {
			s.PermissionDenied = true
		})
		return ErrPermissionDenied
	}

	if err := q.predictor.Start(ctx); err != nil {
		return fmt.Errorf("game: failed to start predictor: %w", err)
	}

	// Configuration failure is persistent: no automatic retry, the
	// host surfaces an error UI and must call Reconfigure explicitly.
	for {
		err := q.controller.Configure(ctx, q.classifier)
		if err == nil {
			break
		}
		slog.Warn("game: capture configuration failed", "error", err)
		q.publishSnapshot(func(s *Snapshot) {
			s.NotConfigured = true
			s.Lifecycle = q.controller.State()
		})
		select {
		case <-q.reconfigCh:
			slog.Info("game: re-configure requested")
		case <-ctx.Done():
			return err
		}
	}

	if err := q.controller.Start(); err != nil {
		return err
	}

	q.publishSnapshot(func(s *Snapshot) {
		s.NotConfigured = false
		s.PermissionDenied = false
		s.Lifecycle = q.controller.State()
	})

	// Settle delay: let exposure/focus stabilize before the game reacts
	settle := time.Duration(q.cfg.Game.SettleMS) * time.Millisecond
	select {
	case <-time.After(settle):
	case <-ctx.Done():
		return nil
	}

	q.postEvent(types.NewSessionEvent(q.cfg.InstanceID, "session_started", q.controller.State()))

	q.emitWg.Add(1)
	go q.emitLoop()

	q.wg.Add(1)
	go q.stateLoop(ctx)

	slog.Info("game: running",
		"instance_id", q.cfg.InstanceID,
		"settle", settle,
	)

	<-ctx.Done()
	return nil
}

// Shutdown tears the pipeline down in dependency order: capture first
// (so frame delivery halts synchronously), then the state loop (so all
// timers die with it), then the predictor. No late frame or timer tick
// can mutate challenge state afterwards.
func (q *Quest) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	cancel := q.cancel
	q.mu.Unlock()

	slog.Info("game: shutting down")

	if err := q.controller.Stop(); err != nil {
		slog.Error("game: failed to stop capture", "error", err)
	}

	q.postEvent(types.NewSessionEvent(q.cfg.InstanceID, "session_stopped", types.SessionStopped))

	if cancel != nil {
		cancel()
	}
	q.wg.Wait()

	close(q.emitCh)
	q.emitWg.Wait()

	if err := q.predictor.Stop(); err != nil {
		slog.Error("game: failed to stop predictor", "error", err)
	}

	if err := q.controller.Close(); err != nil {
		slog.Error("game: failed to close capture controller", "error", err)
	}

	q.publishSnapshot(func(s *Snapshot) {
		s.Lifecycle = types.SessionStopped
	})

	slog.Info("game: shutdown complete",
		"score", q.Snapshot().Score,
		"observations_dropped", atomic.LoadUint64(&q.obsDropped),
	)

	return nil
}

// SelectObject reports the user tapping a detected label. Marshaled
// onto the state loop; non-blocking, dropped when the loop is gone.
func (q *Quest) SelectObject(label string) {
	select {
	case q.actionCh <- action{kind: actSelect, label: label}:
	default:
		atomic.AddUint64(&q.actionDropped, 1)
	}
}

// SkipChallenge abandons the current challenge and re-rolls
// immediately. Non-blocking, like SelectObject.
func (q *Quest) SkipChallenge() {
	select {
	case q.actionCh <- action{kind: actSkip}:
	default:
		atomic.AddUint64(&q.actionDropped, 1)
	}
}

// Reconfigure requests another device configuration attempt after a
// persistent "not configured" failure. Non-blocking.
func (q *Quest) Reconfigure() {
	select {
	case q.reconfigCh <- struct{}{}:
	default:
	}
}

// postObservation marshals classifier output onto the state loop.
// Runs on the frame-delivery goroutine; never blocks.
func (q *Quest) postObservation(obs types.Observation) {
	select {
	case q.obsCh <- obs:
	default:
		atomic.AddUint64(&q.obsDropped, 1)
		slog.Debug("game: observation dropped, state loop busy",
			"seq", obs.FrameSeq,
		)
	}
}

// postEvent queues a telemetry event; never blocks, drops when full
// or when emission is disabled.
func (q *Quest) postEvent(event types.Event) {
	if q.events == nil {
		return
	}
	select {
	case q.emitCh <- event:
	default:
		slog.Debug("game: event dropped, emit queue full", "type", event.Type())
	}
}

// emitLoop publishes queued events without ever blocking the state
// loop on broker I/O. Exits when emitCh closes.
func (q *Quest) emitLoop() {
	defer q.emitWg.Done()

	for event := range q.emitCh {
		if err := q.events.Publish(event); err != nil {
			slog.Debug("game: event publish failed", "type", event.Type(), "error", err)
		}
	}
}

// stateLoop is the single mutator of availability and challenge state.
// All timers live and die with this goroutine.
func (q *Quest) stateLoop(ctx context.Context) {
	defer q.wg.Done()

	elapsedTicker := time.NewTicker(time.Second)
	defer elapsedTicker.Stop()

	// advance fires once per completed challenge, after the
	// success-display delay
	advance := time.NewTimer(time.Hour)
	stopTimer(advance)
	defer advance.Stop()

	advanceDelay := time.Duration(q.cfg.Game.AdvanceDelayMS) * time.Millisecond
	elapsed := 0
	var lastTop, lastExtended []string

	for {
		select {
		case <-ctx.Done():
			return

		case obs := <-q.obsCh:
			q.tracker.Observe(obs.Extended)

			prev := q.engine.Current()
			q.engine.OnAvailabilityChanged()
			if now := q.engine.Current(); now != "" && now != prev {
				q.postEvent(types.NewChallengeEvent(q.cfg.InstanceID, "challenge_started", now, "", q.engine.Score()))
			}

			lastTop = labelTexts(obs.Top)
			lastExtended = labelTexts(obs.Extended)
			q.syncSnapshot(lastTop, lastExtended, elapsed)

		case act := <-q.actionCh:
			switch act.kind {
			case actSelect:
				prev := q.engine.Current()
				if q.engine.Select(act.label) {
					q.postEvent(types.NewChallengeEvent(q.cfg.InstanceID, "challenge_completed", prev, act.label, q.engine.Score()))
					stopTimer(advance)
					advance.Reset(advanceDelay)
				}
				// miss: silent no-op by design

			case actSkip:
				prev := q.engine.Current()
				stopTimer(advance) // a pending advance must not re-roll the skip result
				next := q.engine.Skip()
				if prev != "" {
					q.postEvent(types.NewChallengeEvent(q.cfg.InstanceID, "challenge_skipped", prev, "", q.engine.Score()))
				}
				if next != "" {
					q.postEvent(types.NewChallengeEvent(q.cfg.InstanceID, "challenge_started", next, "", q.engine.Score()))
				}
			}
			q.syncSnapshot(lastTop, lastExtended, elapsed)

		case <-advance.C:
			if next := q.engine.SelectNext(); next != "" {
				q.postEvent(types.NewChallengeEvent(q.cfg.InstanceID, "challenge_started", next, "", q.engine.Score()))
			}
			q.syncSnapshot(lastTop, lastExtended, elapsed)

		case <-elapsedTicker.C:
			elapsed++
			q.syncSnapshot(lastTop, lastExtended, elapsed)
		}
	}
}

// syncSnapshot publishes the loop's view of the game state.
func (q *Quest) syncSnapshot(top, extended []string, elapsed int) {
	current := q.engine.Current()
	completed := q.engine.Completed()
	score := q.engine.Score()
	state := q.controller.State()

	q.publishSnapshot(func(s *Snapshot) {
		s.Lifecycle = state
		s.DetectedObjects = top
		s.AllRecentDetections = extended
		s.CurrentChallenge = current
		s.CompletedChallenges = completed
		s.Score = score
		s.ElapsedFocusS = elapsed
	})
}

// stopTimer stops a timer and drains a fired-but-unread tick.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func labelTexts(labels []types.DetectedLabel) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		out = append(out, l.Text)
	}
	return out
}
