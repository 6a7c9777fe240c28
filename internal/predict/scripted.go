package predict

import (
	"context"
	"sync"

	"github.com/mooncitizen/beatphobia-sub003/internal/types"
)

// defaultScript is the label rotation used when none is configured.
// Confidence values are fabricated but plausible for a vision model.
var defaultScript = [][]types.Prediction{
	{
		{Label: "coffee_cup", Confidence: 0.91},
		{Label: "table", Confidence: 0.74},
		{Label: "chair", Confidence: 0.52},
		{Label: "background", Confidence: 0.44},
	},
	{
		{Label: "laptop", Confidence: 0.88},
		{Label: "keyboard", Confidence: 0.67},
		{Label: "desk-lamp", Confidence: 0.31},
		{Label: "wood texture", Confidence: 0.29},
	},
	{
		{Label: "plant", Confidence: 0.83},
		{Label: "window", Confidence: 0.58},
		{Label: "book", Confidence: 0.41},
	},
}

// ScriptedPredictor cycles through a fixed rotation of prediction sets.
// It backs tests and the hardware-free daemon mode (camera.mock).
type ScriptedPredictor struct {
	mu     sync.Mutex
	script [][]types.Prediction
	next   int
	calls  uint64
}

// NewScriptedPredictor creates a predictor cycling through the given
// label sets. With no labels, a built-in rotation of household objects
// is used.
func NewScriptedPredictor(labels []string) *ScriptedPredictor {
	if len(labels) == 0 {
		return &ScriptedPredictor{script: defaultScript}
	}

	// One prediction set per configured label, descending confidence
	script := make([][]types.Prediction, 0, len(labels))
	for i, label := range labels {
		conf := 0.9 - 0.5*float64(i)/float64(len(labels))
		script = append(script, []types.Prediction{{Label: label, Confidence: conf}})
	}
	return &ScriptedPredictor{script: script}
}

// NewScriptedPredictorSets creates a predictor cycling through explicit
// prediction sets (test hook).
func NewScriptedPredictorSets(sets [][]types.Prediction) *ScriptedPredictor {
	return &ScriptedPredictor{script: sets}
}

// Start implements Predictor (no resources to prepare).
func (p *ScriptedPredictor) Start(ctx context.Context) error { return nil }

// Stop implements Predictor.
func (p *ScriptedPredictor) Stop() error { return nil }

// Classify implements Predictor by returning the next scripted set.
func (p *ScriptedPredictor) Classify(frame types.Frame) ([]types.Prediction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if len(p.script) == 0 {
		return nil, nil
	}

	set := p.script[p.next]
	p.next = (p.next + 1) % len(p.script)

	// Copy so callers cannot mutate the script
	out := make([]types.Prediction, len(set))
	copy(out, set)
	return out, nil
}

// Calls returns how many times Classify was invoked (test hook).
func (p *ScriptedPredictor) Calls() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
