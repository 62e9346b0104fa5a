package liberrors

import (
	"errors"
	"fmt"
)

// ErrInvalidDescriptor is matched by errors.Is against every ErrDescriptorFormat.
var ErrInvalidDescriptor = errors.New("invalid session descriptor")

// ErrDescriptorFormat is returned by strict descriptor parsing when a line
// does not respect the expected shape.
type ErrDescriptorFormat struct {
	// 1-based line number. Zero means the error concerns the whole descriptor.
	Line int

	// offending line, without line terminators.
	Text string

	Err error
}

// Error implements the error interface.
func (e *ErrDescriptorFormat) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("invalid session descriptor: %v", e.Err)
	}
	return fmt.Sprintf("invalid session descriptor, line %d (%s): %v", e.Line, e.Text, e.Err)
}

// Unwrap returns the underlying error.
func (e *ErrDescriptorFormat) Unwrap() error {
	return e.Err
}

// Is implements errors.Is.
func (e *ErrDescriptorFormat) Is(target error) bool {
	return target == ErrInvalidDescriptor
}
