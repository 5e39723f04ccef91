package tools

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
			return identifierRegex.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// IsIdentifier returns true if s can be used as a tool name.
func IsIdentifier(s string) bool {
	return identifierRegex.MatchString(s)
}

// Validate checks the tool definition for structural well-formedness.
// It has no side effects, and returns *ValidationError listing all violations.
func Validate(t *Tool) error {
	if t == nil {
		return NewValidationError("tool", "tool is nil")
	}

	err := getValidator().Struct(t)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "failed to validate tool")
	}

	violations := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		violations = append(violations, describeFieldError(fe))
	}

	subject := "tool"
	if t.Name != "" {
		subject = fmt.Sprintf("tool %q", t.Name)
	}
	return NewValidationError(subject, violations...)
}

// ValidateStruct validates any struct with `validate` tags,
// and returns *ValidationError listing all violations.
func ValidateStruct(subject string, v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrapf(err, "failed to validate %s", subject)
	}
	violations := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		violations = append(violations, describeFieldError(fe))
	}
	return NewValidationError(subject, violations...)
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	// drop the root struct name
	if _, after, ok := strings.Cut(field, "."); ok {
		field = after
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: is required", field)
	case "identifier":
		return fmt.Sprintf("%s: %q is not a valid identifier", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s: %q must be one of [%s]", field, fe.Value(), fe.Param())
	case "min":
		return fmt.Sprintf("%s: must not be less than %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s: must not be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s: failed on %q", field, fe.Tag())
	}
}
