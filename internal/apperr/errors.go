// Package apperr is the error taxonomy shared by services and the HTTP boundary.
// Services return *Error values for outcomes the client should see; anything
// else is treated as an internal failure.
package apperr

import (
	"errors"
	"net/http"
)

type Error struct {
	Status  int
	Message string
	Details map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, message)
}

// Validation is a 400 carrying field-level messages.
func Validation(details map[string]string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: "Validation failed", Details: details}
}

// As reports whether err wraps an *Error and returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusOf returns the HTTP status for err, 500 for anything untyped.
func StatusOf(err error) int {
	if e, ok := As(err); ok {
		return e.Status
	}
	return http.StatusInternalServerError
}
