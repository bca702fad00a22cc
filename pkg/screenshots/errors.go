package screenshots

import (
	"errors"
	"strings"
)

// ErrPermissionRequired indicates the host refused screen recording.
var ErrPermissionRequired = errors.New("screen recording permission required for screen capture")

type permissionError struct {
	message string
}

func (e *permissionError) Error() string {
	return e.message
}

func (e *permissionError) Is(target error) bool {
	return target == ErrPermissionRequired
}

func newPermissionError(message string) error {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		trimmed = ErrPermissionRequired.Error()
	}
	return &permissionError{message: trimmed}
}
