package router

// Status is the aggregate operational state of a router instance.
// Values match the wire-level status codes exposed by lib/embedded.
type Status int32

const (
	// StatusStopped means the router is created but not operating.
	StatusStopped Status = iota
	// StatusStarting means subsystem bootstrap is in progress.
	StatusStarting
	// StatusRunning means all subsystems reported ready.
	StatusRunning
	// StatusStopping means shutdown is in progress.
	StatusStopping
	// StatusError means bootstrap failed; the router must be stopped
	// or destroyed before the handle can be reused.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}
