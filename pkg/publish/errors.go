package publish

import (
	"errors"
)

// DeprecatedFlagError is returned when --group or --republish is passed to
// `ota update publish`.
type DeprecatedFlagError struct{}

func (e *DeprecatedFlagError) Error() string {
	return "--group and --republish flags are deprecated, use the `ota update republish` command instead"
}

// ValidationError reports conflicting or insufficient flags.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsDeprecatedFlagError reports whether err is a *DeprecatedFlagError.
func IsDeprecatedFlagError(err error) bool {
	var deprecatedErr *DeprecatedFlagError
	return errors.As(err, &deprecatedErr)
}

var (
	errBranchAndChannel = &ValidationError{
		Message: "cannot specify both --channel and --branch; specify either --channel, --branch, or --auto",
	}
	errAutoWithTarget = &ValidationError{
		Message: "--auto cannot be combined with --branch or --channel",
	}
	errNoTarget = &ValidationError{
		Message: "--branch, --channel, or --auto must be specified in non-interactive mode",
	}
	errNoMessage = &ValidationError{
		Message: "--message must be specified in non-interactive mode unless --auto is used",
	}
)
