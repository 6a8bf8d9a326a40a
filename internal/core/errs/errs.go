// Package errs holds the error classes shared by every ledger, the causal
// graph, the reconstruction engine and the orchestrator. Callers classify
// failures with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports an absent scene, asset, subject or edge.
	ErrNotFound = errors.New("not found")
	// ErrValidation reports a malformed enum, an out-of-range field or a bad depth.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidArgument reports an unusable argument such as a non-finite timestamp.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTimeout reports an assembly that exceeded its deadline.
	ErrTimeout = errors.New("timeout")
)

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
