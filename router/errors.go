package router

import (
	"github.com/cockroachdb/errors"
)

// ErrInternal is matched by errors.Is for any InternalError
var ErrInternal = errors.New("internal error")

// InternalError is an unexpected failure inside scoring or caching.
// Transports should report it with a generic message.
type InternalError struct {
	Cause error
}

func (e *InternalError) Error() string {
	if e.Cause == nil {
		return ErrInternal.Error()
	}
	return "internal error: " + e.Cause.Error()
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is
func (e *InternalError) Is(target error) bool {
	return target == ErrInternal
}

// IsInternalError returns the InternalError from the chain
func IsInternalError(err error) (*InternalError, bool) {
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
