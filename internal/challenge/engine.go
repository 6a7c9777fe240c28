// Package challenge drives the "find this object" target selection and
// scoring.
//
// The engine is deliberately single-threaded: the game state loop is
// its only caller, so there is exactly one writer to challenge state
// and no locking here.
package challenge

import (
	"log/slog"
	"math/rand"
	"time"
)

// DefaultPoints is awarded per completed challenge.
const DefaultPoints = 10

// AvailabilitySource yields the labels currently inside the
// availability window.
type AvailabilitySource interface {
	Available() []string
}

// Engine is a state machine over {no challenge, active challenge}.
type Engine struct {
	avail  AvailabilitySource
	rng    *rand.Rand
	points int

	current      string // "" = no challenge
	completed    []string
	completedSet map[string]struct{}
	score        int
}

// New creates an engine reading candidates from avail. points <= 0
// selects DefaultPoints.
func New(avail AvailabilitySource, points int) *Engine {
	if points <= 0 {
		points = DefaultPoints
	}
	return &Engine{
		avail:        avail,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		points:       points,
		completedSet: make(map[string]struct{}),
	}
}

// Current returns the active challenge label, or "" when none.
func (e *Engine) Current() string { return e.current }

// Score returns the accumulated score.
func (e *Engine) Score() int { return e.score }

// Completed returns the completed challenges in insertion order.
func (e *Engine) Completed() []string {
	out := make([]string, len(e.completed))
	copy(out, e.completed)
	return out
}

// SelectNext picks the next challenge.
//
// Preference order:
//  1. uniform random over available − completed
//  2. all exhausted: uniform random over the full available set
//     (repeats permitted — deliberate fallback, keeps the game going)
//  3. empty availability: no challenge ("scanning" state)
//
// Returns the new current label ("" for no challenge).
func (e *Engine) SelectNext() string {
	available := e.avail.Available()

	candidates := make([]string, 0, len(available))
	for _, label := range available {
		if _, done := e.completedSet[label]; !done {
			candidates = append(candidates, label)
		}
	}

	switch {
	case len(candidates) > 0:
		e.current = candidates[e.rng.Intn(len(candidates))]
	case len(available) > 0:
		e.current = available[e.rng.Intn(len(available))]
	default:
		e.current = ""
	}

	if e.current != "" {
		slog.Debug("challenge: selected",
			"challenge", e.current,
			"candidates", len(candidates),
			"available", len(available),
		)
	}
	return e.current
}

// OnAvailabilityChanged reacts to a fresh observation batch: with no
// active challenge and a non-empty availability window, a challenge is
// selected immediately.
func (e *Engine) OnAvailabilityChanged() {
	if e.current != "" {
		return
	}
	if len(e.avail.Available()) == 0 {
		return
	}
	e.SelectNext()
}

// Select handles the user tapping a detected label.
//
// On a fuzzy match against the current challenge it awards points,
// records the challenge as completed and clears it; the caller is
// responsible for re-selecting after its success-display delay.
// A miss is a silent no-op: no penalty, no state change.
func (e *Engine) Select(label string) bool {
	if e.current == "" {
		return false
	}
	if !Matches(label, e.current) {
		return false
	}

	e.score += e.points
	e.completed = append(e.completed, e.current)
	e.completedSet[e.current] = struct{}{}

	slog.Info("challenge: completed",
		"challenge", e.current,
		"selected", label,
		"score", e.score,
	)

	e.current = ""
	return true
}

// Skip abandons the current challenge without scoring or marking it
// completed, then immediately selects the next one.
func (e *Engine) Skip() string {
	if e.current != "" {
		slog.Debug("challenge: skipped", "challenge", e.current)
	}
	e.current = ""
	return e.SelectNext()
}
