package portal

import (
	"errors"
	"fmt"
)

// FailureType classifies portal failures for the orchestrator's recovery
// decision. Every FailureType is per-record recoverable except auth
// failures during initial open or recreate, which the session manager
// escalates.
type FailureType int

const (
	// FailAuth means login could not complete.
	FailAuth FailureType = iota
	// FailNavigation means the document manager view could not be reached
	// after retries and the reload fallback.
	FailNavigation
	// FailLocate means the list-view filtering or search interaction
	// itself broke (not a search miss, which is a LocateResult outcome).
	FailLocate
	// FailForm means a step of the invoice form workflow broke.
	FailForm
)

func (t FailureType) String() string {
	switch t {
	case FailAuth:
		return "auth"
	case FailNavigation:
		return "navigation"
	case FailLocate:
		return "locate"
	case FailForm:
		return "form"
	default:
		return "unknown"
	}
}

// Error is a classified portal failure. Step names the UI action that
// failed, in the words a log reader would search for.
type Error struct {
	Type FailureType
	Step string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Type, e.Step)
	}
	return fmt.Sprintf("%s: %s: %v", e.Type, e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func failure(t FailureType, step string, err error) *Error {
	return &Error{Type: t, Step: step, Err: err}
}

// IsAuth reports whether err is a portal auth failure.
func IsAuth(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Type == FailAuth
}
