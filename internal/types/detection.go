package types

// Prediction is a raw (label, confidence) pair as produced by the
// predictor, before normalization and filtering.
type Prediction struct {
	Label      string
	Confidence float64
}

// DetectedLabel is a normalized label surviving the classifier filters.
// Text has separators replaced by spaces and is title-cased.
// Confidence drives ranking only and is never persisted.
type DetectedLabel struct {
	Text       string
	Confidence float64
}

// Observation is one classifier emission for an accepted frame.
//
// Top holds the 3 highest-confidence labels for display.
// Extended holds up to 20 labels feeding the availability pool
// (fuzzy hinting works better with the wider net).
type Observation struct {
	// FrameSeq is the sequence number of the classified frame
	FrameSeq uint64
	// TraceID correlates the observation with its source frame
	TraceID string
	// Top holds the display labels (highest confidence first)
	Top []DetectedLabel
	// Extended holds the availability pool labels (highest confidence first)
	Extended []DetectedLabel
}
