// Package deferral implements the suspend/resume protocol between sensors
// and the trigger event loop.
package deferral

import (
	"errors"
	"fmt"
)

// SkipError marks a failure that a soft-fail sensor converts into a skip
// outcome instead of a hard failure.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return e.Reason
}

// Skip builds a skip error with a formatted reason.
func Skip(format string, args ...any) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// IsSkip reports whether err signals a skip outcome.
func IsSkip(err error) bool {
	var skip *SkipError

	return errors.As(err, &skip)
}
