// Package predict defines the label predictor contract and its backends.
//
// The predictor is a black box: it maps an image buffer to ranked
// (label, confidence) pairs. Failures are expected and cheap — callers
// treat an error exactly like an empty result and move on to the next
// throttle tick.
package predict

import (
	"context"

	"github.com/mooncitizen/beatphobia-sub003/internal/types"
)

// Predictor maps an image buffer to ranked label/confidence pairs.
//
// Classify is invoked synchronously on the frame-delivery goroutine,
// never on the game state loop. Implementations own their latency
// budget; the classifier's throttle bounds the call rate.
type Predictor interface {
	// Classify returns ranked predictions for the frame, highest
	// confidence first. An empty slice and a nil error both mean
	// "nothing recognized" and are handled identically by callers.
	Classify(frame types.Frame) ([]types.Prediction, error)

	// Start prepares the backend (spawns the worker process, loads the
	// model). Must be called before Classify.
	Start(ctx context.Context) error

	// Stop releases backend resources. Idempotent.
	Stop() error
}
