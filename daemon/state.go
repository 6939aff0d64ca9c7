package daemon

// State is the daemon lifecycle state.
type State int32

const (
	// StateCreated indicates the server has been created but not started.
	StateCreated State = iota
	// StateStarting indicates the socket is being bound.
	StateStarting
	// StateRunning indicates the server is accepting connections.
	StateRunning
	// StateStopping indicates the server is shutting down.
	StateStopping
	// StateStopped indicates the server has stopped (terminal state).
	StateStopped
	// StateFailed indicates the socket could not be bound (terminal state).
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
