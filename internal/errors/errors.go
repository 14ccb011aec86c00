package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Authentication errors (AUTH-001 to AUTH-099)
	ErrCodeInvalidCredentials ErrorCode = "AUTH-001"
	ErrCodeRegistrationFailed ErrorCode = "AUTH-002"
	ErrCodeUnauthorized       ErrorCode = "AUTH-003"
	ErrCodeVerificationFailed ErrorCode = "AUTH-004"

	// Transport errors (NET-001 to NET-099)
	ErrCodeNetworkFailure ErrorCode = "NET-001"

	// Backend API errors (API-001 to API-099)
	ErrCodeValidationFailed ErrorCode = "API-001"
	ErrCodeRequestFailed    ErrorCode = "API-002"
	ErrCodeDecodeFailed     ErrorCode = "API-003"

	// Credential store errors (STORE-001 to STORE-099)
	ErrCodeStoreRead    ErrorCode = "STORE-001"
	ErrCodeStoreWrite   ErrorCode = "STORE-002"
	ErrCodeStoreBackend ErrorCode = "STORE-003"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"
	ErrCodeConfigRead    ErrorCode = "CONFIG-002"
)

// Error represents a classified failure with code, suggestions, and documentation
type Error struct {
	Code        ErrorCode
	Message     string
	Status      int
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	message := e.Message
	if message == "" && e.Status != 0 {
		message = fmt.Sprintf("request failed with status %d", e.Status)
	}
	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
// This lets callers write errors.Is(err, errors.New(ErrCodeUnauthorized, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new Error
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new Error wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithStatus records the HTTP status the backend answered with
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// WithSuggestion adds a suggestion to the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *Error) WithDocs(url string) *Error {
	e.DocsURL = url
	return e
}

// As finds the first *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Category returns the prefix of a code ("AUTH", "NET", ...)
func (c ErrorCode) Category() string {
	s := string(c)
	if i := strings.IndexByte(s, '-'); i > 0 {
		return s[:i]
	}
	return s
}

// Common error constructors for frequently used errors

// NewInvalidCredentialsError creates a login rejection error
func NewInvalidCredentialsError(cause error) *Error {
	return Wrap(ErrCodeInvalidCredentials, "invalid credentials", cause).
		WithSuggestion("Check your email address and password").
		WithSuggestion("Run 'reimburse auth forgot-password --email <email>' to reset your password")
}

// NewRegistrationFailedError creates a registration error carrying the backend message
func NewRegistrationFailedError(message string, cause error) *Error {
	if strings.TrimSpace(message) == "" {
		message = "registration failed"
	}
	return Wrap(ErrCodeRegistrationFailed, message, cause)
}

// NewUnauthorizedError creates an error for a missing, expired, or rejected credential
func NewUnauthorizedError(message string) *Error {
	if message == "" {
		message = "unauthorized"
	}
	return New(ErrCodeUnauthorized, message).
		WithStatus(401).
		WithSuggestion("Run 'reimburse auth login' to sign in again")
}

// NewVerificationFailedError creates an email verification error
func NewVerificationFailedError(cause error) *Error {
	return Wrap(ErrCodeVerificationFailed, "email verification failed", cause).
		WithSuggestion("The verification link may have expired; request a new one")
}

// NewNetworkError creates a transport-level failure
func NewNetworkError(operation string, cause error) *Error {
	return Wrap(ErrCodeNetworkFailure, fmt.Sprintf("%s: backend unreachable", operation), cause).
		WithSuggestion("Check the API URL with 'reimburse --api-url <url>' or REIMBURSE_API_URL").
		WithSuggestion("Verify your network connection")
}

// NewValidationError creates a passthrough of a backend 4xx validation message
func NewValidationError(message string, status int) *Error {
	return New(ErrCodeValidationFailed, message).WithStatus(status)
}

// NewRequestFailedError creates an error for any other unsuccessful backend response
func NewRequestFailedError(message string, status int) *Error {
	return New(ErrCodeRequestFailed, message).WithStatus(status)
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(details string) *Error {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Review ~/.reimburse/config.yaml and REIMBURSE_* environment variables")
}
