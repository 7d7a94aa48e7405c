package types

import (
	"errors"
	"fmt"
)

// Failure taxonomy shared by every package. Cross-system operations wrap one
// of these sentinels so callers can branch with errors.Is regardless of which
// collaborator produced the failure.
var (
	ErrConfiguration        = errors.New("configuration error")
	ErrInsufficientBalance  = errors.New("insufficient token balance")
	ErrInsufficientCapacity = errors.New("insufficient storage capacity")
	ErrNotFound             = errors.New("not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrDecryption           = errors.New("decryption failed")
	ErrDuplicateKey         = errors.New("duplicate key")
	ErrNetwork              = errors.New("network error")
	ErrNoProvidersAvailable = errors.New("no providers available")
	ErrProviderMismatch     = errors.New("provider mismatch")
)

// StepError attributes a failure to one named step of a multi-step
// cross-system sequence. The sequence has no rollback, so the step name is
// what tells an operator which single step to re-run.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %s", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the step name a wrapped error is attributed to, or "".
func FailedStep(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}
