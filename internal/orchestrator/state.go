package orchestrator

// State is the lifecycle state of the processing loop.
type State int32

const (
	// StateIdle means Run has not been called yet.
	StateIdle State = iota
	// StateRunning means the loop is dispatching batches.
	StateRunning
	// StateDraining means Stop was called and in-flight workers are finishing.
	StateDraining
	// StateStopped is terminal.
	StateStopped
)

// String returns a human-readable representation of the State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
