package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/conveyance-bills/internal/application/port"
	"github.com/garyjia/conveyance-bills/pkg/utils"
)

var (
	// ErrNotEditable is returned when a bill's status does not allow the change
	ErrNotEditable = errors.New("bill is not editable")

	// ErrNotFound is returned when a bill or user does not exist. Repository
	// not-found errors match it through errors.Is.
	ErrNotFound = port.ErrNotFound
)

// ValidationError reports malformed input for a single field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// validateInput runs the struct's validate tags and returns the first failure
func validateInput(in interface{}) error {
	errs := utils.ValidateStruct(in)
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Field: errs[0].Field, Message: errs[0].Message}
}

// notFound wraps a repository lookup failure with what was being looked up
func notFound(kind, id string, err error) error {
	if errors.Is(err, port.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %s: %w", kind, id, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeEmployeeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
