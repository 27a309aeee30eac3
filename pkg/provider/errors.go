package provider

import "fmt"

// ErrorKind classifies a probe failure. Exactly one kind applies to any
// failure; kinds never nest.
type ErrorKind string

const (
	// ErrCLINotFound: the provider's binary could not be resolved on the
	// effective search path. The user should install the tool.
	ErrCLINotFound ErrorKind = "cli_not_found"

	// ErrTimeout: the probe did not complete within the configured timeout.
	// Retryable on the next cycle.
	ErrTimeout ErrorKind = "timeout"

	// ErrExecutionFailed: the process could not be started, the stream
	// closed unexpectedly, or the RPC surface returned an error.
	ErrExecutionFailed ErrorKind = "execution_failed"

	// ErrParseFailed: the CLI produced output we could not extract quotas
	// from. Usually a transient "not ready yet" condition.
	ErrParseFailed ErrorKind = "parse_failed"

	// ErrUpdateRequired: the CLI reported that a newer version is available
	// and refuses to serve usage data until updated.
	ErrUpdateRequired ErrorKind = "update_required"
)

// ProbeError is the typed failure crossing the probe boundary. Callers
// outside the probe subsystem never see raw OS or process errors.
type ProbeError struct {
	Kind   ErrorKind
	Binary string // set for cli_not_found
	Reason string // free-text detail for execution_failed / parse_failed
}

func (e *ProbeError) Error() string {
	switch e.Kind {
	case ErrCLINotFound:
		return fmt.Sprintf("CLI %q not found on search path", e.Binary)
	case ErrTimeout:
		return "probe timed out"
	case ErrExecutionFailed:
		return fmt.Sprintf("execution failed: %s", e.Reason)
	case ErrParseFailed:
		return fmt.Sprintf("parse failed: %s", e.Reason)
	case ErrUpdateRequired:
		return "CLI update required"
	}
	return string(e.Kind)
}

// Retryable reports whether the next scheduled cycle may succeed without
// user action.
func (e *ProbeError) Retryable() bool {
	switch e.Kind {
	case ErrTimeout, ErrExecutionFailed, ErrParseFailed:
		return true
	}
	return false
}

func NewCLINotFound(binary string) *ProbeError {
	return &ProbeError{Kind: ErrCLINotFound, Binary: binary}
}

func NewTimeout() *ProbeError {
	return &ProbeError{Kind: ErrTimeout}
}

func NewExecutionFailed(reason string) *ProbeError {
	return &ProbeError{Kind: ErrExecutionFailed, Reason: reason}
}

func NewParseFailed(reason string) *ProbeError {
	return &ProbeError{Kind: ErrParseFailed, Reason: reason}
}

func NewUpdateRequired() *ProbeError {
	return &ProbeError{Kind: ErrUpdateRequired}
}
