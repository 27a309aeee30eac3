package termrun

import "fmt"

// ErrKind classifies a launcher failure.
type ErrKind int

const (
	// ErrBinaryNotFound: the executable could not be resolved on the
	// effective search path.
	ErrBinaryNotFound ErrKind = iota
	// ErrTimedOut: no completion signal arrived within the timeout.
	ErrTimedOut
	// ErrLaunchFailed: the OS refused to start the process.
	ErrLaunchFailed
)

// RunError is the launcher's error vocabulary. The probe layer translates
// it 1:1 into the domain taxonomy.
type RunError struct {
	Kind   ErrKind
	Binary string
	Msg    string
}

func (e *RunError) Error() string {
	switch e.Kind {
	case ErrBinaryNotFound:
		return fmt.Sprintf("binary %q not found", e.Binary)
	case ErrTimedOut:
		return fmt.Sprintf("%s: timed out waiting for output", e.Binary)
	case ErrLaunchFailed:
		return fmt.Sprintf("%s: launch failed: %s", e.Binary, e.Msg)
	}
	return e.Msg
}
