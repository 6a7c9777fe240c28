package types

import (
	"encoding/json"
	"time"
)

// Event is the interface that all game events must implement.
// Events are published to the telemetry emitter when one is configured.
type Event interface {
	// Type returns the event type (challenge_started, challenge_completed, ...)
	Type() string
	// Timestamp returns when the event was generated
	Timestamp() time.Time
	// ToJSON converts the event to JSON bytes
	ToJSON() ([]byte, error)
}

// SessionEvent marks a session lifecycle transition.
type SessionEvent struct {
	InstanceID   string `json:"instance_id"`
	EventTyp     string `json:"event_type"` // session_started, session_stopped
	State        string `json:"state"`
	TimestampStr string `json:"timestamp"`
	ts           time.Time
}

// NewSessionEvent creates a session lifecycle event.
func NewSessionEvent(instanceID, eventType string, state SessionState) *SessionEvent {
	now := time.Now()
	return &SessionEvent{
		InstanceID:   instanceID,
		EventTyp:     eventType,
		State:        state.String(),
		TimestampStr: now.UTC().Format(time.RFC3339),
		ts:           now,
	}
}

// Type implements Event.
func (e *SessionEvent) Type() string { return e.EventTyp }

// Timestamp implements Event.
func (e *SessionEvent) Timestamp() time.Time { return e.ts }

// ToJSON implements Event.
func (e *SessionEvent) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ChallengeEvent describes a challenge transition (started/completed/skipped).
type ChallengeEvent struct {
	InstanceID   string `json:"instance_id"`
	EventTyp     string `json:"event_type"` // challenge_started, challenge_completed, challenge_skipped
	Challenge    string `json:"challenge"`
	Selected     string `json:"selected,omitempty"` // label the user tapped (completed only)
	Score        int    `json:"score"`
	TimestampStr string `json:"timestamp"`
	ts           time.Time
}

// NewChallengeEvent creates a challenge transition event.
func NewChallengeEvent(instanceID, eventType, challenge, selected string, score int) *ChallengeEvent {
	now := time.Now()
	return &ChallengeEvent{
		InstanceID:   instanceID,
		EventTyp:     eventType,
		Challenge:    challenge,
		Selected:     selected,
		Score:        score,
		TimestampStr: now.UTC().Format(time.RFC3339),
		ts:           now,
	}
}

// Type implements Event.
func (e *ChallengeEvent) Type() string { return e.EventTyp }

// Timestamp implements Event.
func (e *ChallengeEvent) Timestamp() time.Time { return e.ts }

// ToJSON implements Event.
func (e *ChallengeEvent) ToJSON() ([]byte, error) { return json.Marshal(e) }
