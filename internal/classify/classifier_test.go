package classify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mooncitizen/beatphobia-sub003/internal/predict"
	"github.com/mooncitizen/beatphobia-sub003/internal/types"
)

func frameAt(seq uint64, ts time.Time) types.Frame {
	return types.Frame{Seq: seq, Timestamp: ts, Width: 4, Height: 4, Data: make([]byte, 48)}
}

// collector gathers emitted observations.
type collector struct {
	mu  sync.Mutex
	obs []types.Observation
}

func (c *collector) emit(o types.Observation) {
	c.mu.Lock()
	c.obs = append(c.obs, o)
	c.mu.Unlock()
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.obs)
}

func (c *collector) last() types.Observation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.obs[len(c.obs)-1]
}

// TestThrottleDropsIntermediateFrames verifies at most one frame per
// interval reaches the predictor: 101 frames over one second at a
// 300ms interval yield exactly 4 classifications.
func TestThrottleDropsIntermediateFrames(t *testing.T) {
	p := predict.NewScriptedPredictor([]string{"cup"})
	col := &collector{}
	c := New(p, Config{Interval: 300 * time.Millisecond}, col.emit)

	start := time.Now()
	for i := 0; i <= 100; i++ {
		c.OnFrame(frameAt(uint64(i), start.Add(time.Duration(i)*10*time.Millisecond)))
	}

	if calls := p.Calls(); calls != 4 {
		t.Errorf("Expected 4 predictor calls (t=0,300,600,900ms), got %d", calls)
	}

	stats := c.Stats()
	if stats.FramesSeen != 101 {
		t.Errorf("Expected 101 frames seen, got %d", stats.FramesSeen)
	}
	if stats.FramesAccepted != 4 {
		t.Errorf("Expected 4 frames accepted, got %d", stats.FramesAccepted)
	}
	if stats.FramesAccepted+stats.FramesThrottled != stats.FramesSeen {
		t.Errorf("Accepted %d + throttled %d != seen %d",
			stats.FramesAccepted, stats.FramesThrottled, stats.FramesSeen)
	}
}

// TestConfidenceFloorAndStoplist verifies low-confidence and generic
// labels never surface.
func TestConfidenceFloorAndStoplist(t *testing.T) {
	p := predict.NewScriptedPredictorSets([][]types.Prediction{{
		{Label: "coffee_cup", Confidence: 0.91},
		{Label: "background", Confidence: 0.80}, // stoplisted
		{Label: "wood texture", Confidence: 0.75}, // stoplisted via substring
		{Label: "chair", Confidence: 0.05}, // below floor
	}})
	col := &collector{}
	c := New(p, Config{}, col.emit)

	c.OnFrame(frameAt(1, time.Now()))

	if col.count() != 1 {
		t.Fatalf("Expected 1 observation, got %d", col.count())
	}
	obs := col.last()
	if len(obs.Extended) != 1 || obs.Extended[0].Text != "Coffee Cup" {
		t.Errorf("Expected only Coffee Cup to survive, got %v", obs.Extended)
	}
}

// TestExtraStoplist verifies configured terms extend the built-in list.
func TestExtraStoplist(t *testing.T) {
	p := predict.NewScriptedPredictorSets([][]types.Prediction{{
		{Label: "cup", Confidence: 0.9},
		{Label: "person", Confidence: 0.8},
	}})
	col := &collector{}
	c := New(p, Config{ExtraStoplist: []string{"person"}}, col.emit)

	c.OnFrame(frameAt(1, time.Now()))

	obs := col.last()
	if len(obs.Extended) != 1 || obs.Extended[0].Text != "Cup" {
		t.Errorf("Expected person filtered out, got %v", obs.Extended)
	}
}

// TestRankingAndTopSplit verifies confidence-descending order and the
// display/extended split.
func TestRankingAndTopSplit(t *testing.T) {
	set := []types.Prediction{
		{Label: "d", Confidence: 0.4},
		{Label: "a", Confidence: 0.9},
		{Label: "c", Confidence: 0.5},
		{Label: "b", Confidence: 0.7},
		{Label: "e", Confidence: 0.3},
	}
	p := predict.NewScriptedPredictorSets([][]types.Prediction{set})
	col := &collector{}
	c := New(p, Config{}, col.emit)

	c.OnFrame(frameAt(1, time.Now()))

	obs := col.last()
	if len(obs.Top) != 3 {
		t.Fatalf("Expected top-3 display labels, got %d", len(obs.Top))
	}
	want := []string{"A", "B", "C"}
	for i, w := range want {
		if obs.Top[i].Text != w {
			t.Errorf("Top[%d] = %q, want %q", i, obs.Top[i].Text, w)
		}
	}
	if len(obs.Extended) != 5 {
		t.Errorf("Expected 5 extended labels, got %d", len(obs.Extended))
	}
	for i := 1; i < len(obs.Extended); i++ {
		if obs.Extended[i].Confidence > obs.Extended[i-1].Confidence {
			t.Errorf("Extended labels not sorted descending at %d", i)
		}
	}
}

// TestEmptyResultSkipsEmit verifies a frame with no surviving labels
// produces no observation.
func TestEmptyResultSkipsEmit(t *testing.T) {
	p := predict.NewScriptedPredictorSets([][]types.Prediction{{
		{Label: "background", Confidence: 0.9},
	}})
	col := &collector{}
	c := New(p, Config{}, col.emit)

	c.OnFrame(frameAt(1, time.Now()))

	if col.count() != 0 {
		t.Errorf("Expected no observation, got %d", col.count())
	}
	if got := c.Stats().EmptyResults; got != 1 {
		t.Errorf("Expected 1 empty result, got %d", got)
	}
}

// TestPredictorErrorIsSilent verifies a failing predictor costs exactly
// one sample.
func TestPredictorErrorIsSilent(t *testing.T) {
	p := &failingPredictor{}
	col := &collector{}
	c := New(p, Config{Interval: time.Millisecond}, col.emit)

	start := time.Now()
	c.OnFrame(frameAt(1, start))
	c.OnFrame(frameAt(2, start.Add(2*time.Millisecond)))

	if col.count() != 0 {
		t.Errorf("Expected no observations from failing predictor, got %d", col.count())
	}
	if got := c.Stats().PredictorErrors; got != 2 {
		t.Errorf("Expected 2 predictor errors, got %d", got)
	}
}

// TestNormalize covers the label display transform.
func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"coffee_cup", "Coffee Cup"},
		{"desk-lamp", "Desk Lamp"},
		{"wood  texture", "Wood Texture"},
		{"PLANT", "Plant"},
		{"  ", ""},
		{"_-_", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

type failingPredictor struct{}

func (f *failingPredictor) Start(ctx context.Context) error { return nil }
func (f *failingPredictor) Stop() error                     { return nil }
func (f *failingPredictor) Classify(frame types.Frame) ([]types.Prediction, error) {
	return nil, errClassify
}

var errClassify = errors.New("model unavailable")
