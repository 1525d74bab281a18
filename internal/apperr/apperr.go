// Package apperr defines the error taxonomy shared by the pipeline and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeNotFound        Code = "NOT_FOUND"
	CodeExternalService Code = "EXTERNAL_SERVICE_ERROR"
	CodeDatabase        Code = "DATABASE_ERROR"
	CodeFileProcessing  Code = "FILE_PROCESSING_ERROR"
	CodeInternal        Code = "INTERNAL_ERROR"
	CodeUnauthorized    Code = "UNAUTHORIZED"
)

var statusByCode = map[Code]int{
	CodeValidation:      http.StatusBadRequest,
	CodeNotFound:        http.StatusNotFound,
	CodeExternalService: http.StatusBadGateway,
	CodeDatabase:        http.StatusInternalServerError,
	CodeFileProcessing:  http.StatusUnprocessableEntity,
	CodeInternal:        http.StatusInternalServerError,
	CodeUnauthorized:    http.StatusUnauthorized,
}

type Error struct {
	Code    Code
	Message string
	Details any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Status returns the HTTP status for the error's code.
func (e *Error) Status() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func Validation(message string, details any) *Error {
	return &Error{Code: CodeValidation, Message: message, Details: details}
}

func NotFound(resource, id string) *Error {
	msg := resource + " not found"
	if id != "" {
		msg = fmt.Sprintf("%s with identifier '%s' not found", resource, id)
	}
	return &Error{Code: CodeNotFound, Message: msg}
}

func ExternalService(service string, cause error) *Error {
	msg := service + " error"
	if cause != nil {
		msg = fmt.Sprintf("%s error: %s", service, rootMessage(cause))
	}
	return &Error{Code: CodeExternalService, Message: msg, Cause: cause}
}

func Database(message string, cause error) *Error {
	return &Error{Code: CodeDatabase, Message: message, Cause: cause}
}

func FileProcessing(message string, cause error) *Error {
	return &Error{Code: CodeFileProcessing, Message: message, Cause: cause}
}

func Internal(message string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: message, Cause: cause}
}

func Unauthorized(message string) *Error {
	return &Error{Code: CodeUnauthorized, Message: message}
}

// From returns err as an *Error, mapping anything untyped to INTERNAL_ERROR.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal("internal server error", err)
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}

func rootMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
