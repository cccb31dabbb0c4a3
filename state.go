package troupe

// State is the lifecycle state of a runtime run.
type State int32

const (
	// Idle means the runtime was never started.
	Idle State = iota
	// Running means workers are draining the mailbox.
	Running
	// StoppedNaturally means the run ended on idle timeout or on the stop sentinel; callback ran.
	StoppedNaturally
	// StoppedImmediately means the run was cut immediately or its context was canceled; callback did not run.
	StoppedImmediately
	// Failed means a handle function returned a fatal error; callback did not run.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case StoppedNaturally:
		return "stopped naturally"
	case StoppedImmediately:
		return "stopped immediately"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool { return s >= StoppedNaturally }
