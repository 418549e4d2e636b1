package academic

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("academic year not found")
	ErrDateOrder           = errors.New("end date before start date")
	ErrDuplicate           = errors.New("duplicate academic year")
	ErrDataIntegrity       = errors.New("data integrity issue")
	ErrUnrecognizedCommand = errors.New("unrecognized command")
)

const resourceName = "academic_year"

// FieldError is one violation found in a request.
type FieldError struct {
	Parameter string
	Code      string
	Message   string
	Value     any
}

// ValidationError aggregates every violation found in one request.
type ValidationError struct {
	Code    string
	Message string
	Errors  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Code)
	}
	return e.Message + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func newValidationError(errs []FieldError) *ValidationError {
	return &ValidationError{
		Code:    "validation.msg.validation.errors.exist",
		Message: "Validation errors exist.",
		Errors:  errs,
	}
}

func invalidJSON() *ValidationError {
	return &ValidationError{
		Code:    "error.msg.invalid.json",
		Message: "Request body is empty or is not a valid JSON object.",
	}
}

// stateError is raised by a lifecycle transition the entity refuses.
func stateError(reason, message string) *ValidationError {
	return newValidationError([]FieldError{{
		Code:    fmt.Sprintf("validation.msg.%s.%s", resourceName, reason),
		Message: message,
	}})
}

type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Academic year with identifier %d does not exist", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func (e *NotFoundError) Code() string { return "error.msg.academic.year.id.invalid" }

type DateOrderError struct {
	StartDate string
	EndDate   string
}

func (e *DateOrderError) Error() string {
	return "Academic year end date cannot be before the Academic year start date."
}

func (e *DateOrderError) Unwrap() error { return ErrDateOrder }

func (e *DateOrderError) Code() string {
	return "error.msg.academic.year.to.date.cannot.be.before.from.date"
}

// DuplicateError reports a name or short name already used by a live academic year.
type DuplicateError struct {
	Parameter string
	Value     string
}

func (e *DuplicateError) Error() string {
	if e.Parameter == "shortName" {
		return fmt.Sprintf("Academic Year with short name `%s` already exists", e.Value)
	}
	return fmt.Sprintf("Academic Year with name `%s` already exists", e.Value)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

func (e *DuplicateError) Code() string {
	if e.Parameter == "shortName" {
		return "error.msg.academic.year.duplicate.shortName"
	}
	return "error.msg.academic.year.duplicate.name"
}

type UnrecognizedCommandError struct {
	Command   string
	Supported []string
}

func (e *UnrecognizedCommandError) Error() string {
	return fmt.Sprintf("Unrecognized query param command: %q, supported values: %s",
		e.Command, strings.Join(e.Supported, ", "))
}

func (e *UnrecognizedCommandError) Unwrap() error { return ErrUnrecognizedCommand }

func (e *UnrecognizedCommandError) Code() string { return "error.msg.unknown.command.query.param" }
