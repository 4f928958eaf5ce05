package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced by the session subsystem.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeMalformedToken     = "MALFORMED_TOKEN"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeRequestRejected    = "REQUEST_REJECTED"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeCanceled           = "REQUEST_CANCELED"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code, so errors.Is(err, &DomainError{Code: ...}) works.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code != "" && other.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewInvalidCredentials(err error) error {
	return &DomainError{
		Code:       CodeInvalidCredentials,
		Message:    "invalid credentials",
		HTTPStatus: http.StatusUnauthorized,
		Err:        err,
	}
}

func NewMalformedToken(err error) error {
	return &DomainError{
		Code:       CodeMalformedToken,
		Message:    "malformed token",
		HTTPStatus: http.StatusUnauthorized,
		Err:        err,
	}
}

func NewServiceUnavailable(err error) error {
	return &DomainError{
		Code:       CodeServiceUnavailable,
		Message:    "identity service unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusForbidden, nil)
}

func NewUnauthenticated(message string) error {
	return NewDomainError(CodeUnauthenticated, message, http.StatusUnauthorized, nil)
}

func NewSessionExpired(err error) error {
	return &DomainError{
		Code:       CodeSessionExpired,
		Message:    "session expired",
		HTTPStatus: http.StatusUnauthorized,
		Err:        err,
	}
}

// NewRequestRejected wraps a client error returned by the remote for a forwarded request.
func NewRequestRejected(message string, status int, err error) error {
	if message == "" {
		message = "request rejected"
	}
	if status < 400 || status >= 500 {
		status = http.StatusBadRequest
	}
	return &DomainError{Code: CodeRequestRejected, Message: message, HTTPStatus: status, Err: err}
}

func NewCanceled(err error) error {
	return &DomainError{
		Code:       CodeCanceled,
		Message:    "request abandoned by caller",
		HTTPStatus: 499,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if de, ok := NewCanceled(err).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

// CodeOf returns the domain code carried by err, or an empty string.
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given domain code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}
