package game

import "github.com/mooncitizen/beatphobia-sub003/internal/types"

// Snapshot is the explicit state handed to the presentation layer.
//
// There is no implicit subscription graph: presentation reads the
// snapshot whenever the Updates channel signals, and everything it
// needs to render is in here.
type Snapshot struct {
	// Lifecycle is the capture session state
	Lifecycle types.SessionState
	// PermissionDenied is set when the camera permission was not granted
	PermissionDenied bool
	// NotConfigured is set when device configuration failed (persistent
	// until an explicit re-configure succeeds)
	NotConfigured bool
	// DetectedObjects holds the current top-3 display labels
	DetectedObjects []string
	// AllRecentDetections holds the extended top-20 label pool
	AllRecentDetections []string
	// CurrentChallenge is the label the player should find ("" while
	// scanning / no challenge)
	CurrentChallenge string
	// CompletedChallenges lists found labels in completion order
	CompletedChallenges []string
	// Score is the accumulated score
	Score int
	// ElapsedFocusS counts whole seconds since the engine started
	ElapsedFocusS int
}

// Snapshot returns the latest game state. Safe from any goroutine.
func (q *Quest) Snapshot() Snapshot {
	q.snapMu.RLock()
	defer q.snapMu.RUnlock()

	snap := q.snap
	snap.DetectedObjects = append([]string(nil), q.snap.DetectedObjects...)
	snap.AllRecentDetections = append([]string(nil), q.snap.AllRecentDetections...)
	snap.CompletedChallenges = append([]string(nil), q.snap.CompletedChallenges...)
	return snap
}

// Updates returns the coalescing notification channel: one token is
// pending whenever the snapshot changed since the last read. Receivers
// re-read Snapshot after each signal.
func (q *Quest) Updates() <-chan struct{} {
	return q.notify
}

// publishSnapshot stores a fresh snapshot and signals Updates.
// Called only from the state loop (and from lifecycle edges before the
// loop starts / after it stops).
func (q *Quest) publishSnapshot(mutate func(*Snapshot)) {
	q.snapMu.Lock()
	mutate(&q.snap)
	q.snapMu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default: // a signal is already pending
	}
}
