package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// Machine-readable error kinds surfaced at the HTTP boundary.
const (
	KindValidation     = "validation_error"
	KindConflict       = "conflict"
	KindAuthorization  = "authorization_error"
	KindAlreadyDecided = "already_decided"
	KindImmutable      = "immutable"
	KindNotFound       = "not_found"
	KindInternal       = "internal"
)

// ValidationError reports bad input. Fields names every offending key.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}

// ConflictError reports an illegal state transition.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// AuthorizationError reports that the actor may not perform the operation.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

// AlreadyDecidedError is returned when a signatory that already approved or
// rejected acts again. It unwraps to a ConflictError.
type AlreadyDecidedError struct {
	SignatoryID string
	Status      SignatoryStatus
}

func (e *AlreadyDecidedError) Error() string {
	return fmt.Sprintf("signatory %s has already %s", e.SignatoryID, e.Status)
}

func (e *AlreadyDecidedError) Unwrap() error {
	return &ConflictError{Message: e.Error()}
}

// ImmutableError is returned for mutations attempted after the submission lock.
type ImmutableError struct {
	Status Status
}

func (e *ImmutableError) Error() string {
	return fmt.Sprintf("document is %s and can no longer be modified", e.Status)
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func conflict(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

func forbidden(format string, args ...any) error {
	return &AuthorizationError{Message: fmt.Sprintf(format, args...)}
}

func invalid(message string, fields ...string) error {
	return &ValidationError{Message: message, Fields: fields}
}

// NewConflictError is used by callers outside the state machine, e.g. after
// exhausting optimistic-concurrency retries.
func NewConflictError(message string) error {
	return &ConflictError{Message: message}
}

func NewValidationError(message string, fields ...string) error {
	return invalid(message, fields...)
}

func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// KindOf maps an error to its machine-readable kind.
func KindOf(err error) string {
	var (
		validation *ValidationError
		decided    *AlreadyDecidedError
		conflictE  *ConflictError
		authz      *AuthorizationError
		immutable  *ImmutableError
		notFound   *NotFoundError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &decided):
		return KindAlreadyDecided
	case errors.As(err, &immutable):
		return KindImmutable
	case errors.As(err, &conflictE):
		return KindConflict
	case errors.As(err, &authz):
		return KindAuthorization
	case errors.As(err, &notFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

// FieldsOf returns the offending fields of a ValidationError, if any.
func FieldsOf(err error) []string {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Fields
	}
	return nil
}
