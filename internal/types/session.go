package types

// SessionState is the capture session lifecycle.
//
// Transitions are monotonic (Idle → Configuring → Running → Stopped)
// except Running→Stopped, which is reversible via re-Configure.
type SessionState int

const (
	// SessionIdle means no configuration has been attempted yet
	SessionIdle SessionState = iota
	// SessionConfiguring means device selection/binding is in progress
	SessionConfiguring
	// SessionRunning means frames are being delivered to the sink
	SessionRunning
	// SessionStopped means delivery has halted; re-Configure to restart
	SessionStopped
)

// String returns a human-readable state name.
func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionConfiguring:
		return "configuring"
	case SessionRunning:
		return "running"
	case SessionStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Permission is the camera permission status reported by the host.
type Permission int

const (
	// PermissionUnknown means the user has not been asked yet
	PermissionUnknown Permission = iota
	// PermissionGranted means capture may start
	PermissionGranted
	// PermissionDenied means capture must not start
	PermissionDenied
)

// String returns a human-readable permission name.
func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}
