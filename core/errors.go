package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// FieldMap returns the field errors keyed by field name.
func (err ValidationError) FieldMap() map[string]string {
	fldErrs := make(map[string]string, len(err.Fields))
	for _, fErr := range err.Fields {
		fldErrs[fErr.Field] = fErr.Error
	}
	return fldErrs
}

// ForbiddenError is returned when the actor lacks the capability needed for an operation.
type ForbiddenError struct {
	Capability string
}

func NewForbiddenError(capability string) error {
	return &ForbiddenError{Capability: capability}
}

func (err ForbiddenError) Error() string {
	return "permission denied: " + err.Capability
}

type NotFoundError struct {
	Resource string
	ID       interface{}
}

func NewNotFoundError(resource string, id interface{}) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func (err NotFoundError) Error() string {
	if err.ID == nil {
		return err.Resource + " not found"
	}
	return fmt.Sprintf("%s %v not found", err.Resource, err.ID)
}

// ConflictError reports a uniqueness or state-transition conflict.
type ConflictError struct {
	Message string
}

func NewConflictError(format string, args ...interface{}) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

func (err ConflictError) Error() string {
	return err.Message
}

// StorageError wraps a failing blob storage operation.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func NewStorageError(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: err}
}

func (err StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", err.Op, err.Path, err.Err)
}

func (err StorageError) Unwrap() error { return err.Err }

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsForbidden(err error) bool {
	_, ok := errors.Cause(err).(*ForbiddenError)
	return ok
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
