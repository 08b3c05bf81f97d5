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

// FetchError reports a failed read of a survey platform form.
type FetchError struct {
	Form   string // form role, eg. "main" or "advancedUT3"
	Status int    // upstream HTTP status; 0 on network errors
	Err    error
}

func NewFetchError(form string, status int, err error) error {
	return &FetchError{Form: form, Status: status, Err: err}
}

func (err FetchError) Error() string {
	if err.Status != 0 {
		return fmt.Sprintf("fetching %s form: upstream status %d", err.Form, err.Status)
	}
	if err.Err == nil {
		return fmt.Sprintf("fetching %s form", err.Form)
	}
	return fmt.Sprintf("fetching %s form: %v", err.Form, err.Err)
}

// Unwrap exposes the network error. A FetchError is always the errors.Cause root.
func (err FetchError) Unwrap() error { return err.Err }

// IsFetchError reports whether the root cause of err is a *FetchError.
func IsFetchError(err error) bool {
	_, ok := errors.Cause(err).(*FetchError)
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
