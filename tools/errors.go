package tools

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrValidation is matched by errors.Is for any ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateTool is matched by errors.Is for any DuplicateToolError.
	ErrDuplicateTool = errors.New("duplicate tool")
)

// ValidationError is returned for a malformed tool definition or request.
// It enumerates all violations found, not only the first one.
type ValidationError struct {
	// Subject is what was validated, for example "tool git_status" or "request".
	Subject    string
	Violations []string
}

// NewValidationError returns a ValidationError for the subject.
func NewValidationError(subject string, violations ...string) *ValidationError {
	return &ValidationError{
		Subject:    subject,
		Violations: violations,
	}
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return fmt.Sprintf("invalid %s", e.Subject)
	}
	return fmt.Sprintf("invalid %s: %s", e.Subject, strings.Join(e.Violations, "; "))
}

// Is implements errors.Is
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DuplicateToolError is returned when a tool name is already registered.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

// Is implements errors.Is
func (e *DuplicateToolError) Is(target error) bool {
	return target == ErrDuplicateTool
}

// IsValidationError returns the ValidationError from the chain, if any.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
