// Package apperror defines the application's error taxonomy.
//
// Every error a service returns to the HTTP layer is an *AppError wrapping one
// of the sentinel errors below. The handler package maps the sentinel to a
// status code and the Code field to the machine-readable "error" value of the
// response body.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")

	// OAuth handshake problems.
	ErrInvalidState = errors.New("invalid oauth state")
	ErrExpiredState = errors.New("expired oauth state")

	// ErrUpstream covers failed calls to the identity provider's APIs.
	ErrUpstream = errors.New("upstream failure")
)

// Machine-readable error codes. These appear verbatim in API responses.
const (
	CodeValidation         = "validation_error"
	CodeNotFound           = "not_found"
	CodeDuplicateEmail     = "duplicate_email"
	CodeGitHubLinked       = "github_already_linked"
	CodeCSRFMismatch       = "csrf_mismatch"
	CodeInvalidCredentials = "invalid_credentials"
	CodeUnauthenticated    = "unauthenticated"
	CodeInvalidToken       = "invalid_token"
	CodeAccountNotFound    = "account_not_found"
	CodeInvalidState       = "invalid_state"
	CodeExpiredState       = "expired_state"
	CodeOAuthExchange      = "oauth_exchange_failed"
	CodeUpstream           = "upstream_error"
)

type AppError struct {
	Err     error  // actual error
	Code    string // Machine-readable code, e.g. "invalid_credentials"
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    CodeValidation,
		Message: message,
		Field:   field,
	}
}

// DuplicateEmail reports an email address that already belongs to an account.
func DuplicateEmail(email string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Code:    CodeDuplicateEmail,
		Message: fmt.Sprintf("an account with email %s already exists", email),
		Field:   "email",
	}
}

// GitHubAlreadyLinked reports an attempt to attach a GitHub identity to an
// account when either side is already linked elsewhere.
func GitHubAlreadyLinked(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Code:    CodeGitHubLinked,
		Message: message,
	}
}

// CSRFMismatch is returned when the anti-forgery header does not echo the cookie.
func CSRFMismatch() *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Code:    CodeCSRFMismatch,
		Message: "anti-forgery token missing or invalid",
	}
}

// InvalidCredentials is deliberately identical for "no such email",
// "no password set" and "wrong password".
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Code:    CodeInvalidCredentials,
		Message: "invalid email or password",
	}
}

func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Code:    CodeUnauthenticated,
		Message: "valid authentication required",
	}
}

func InvalidToken() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Code:    CodeInvalidToken,
		Message: "session token is invalid or expired",
	}
}

func AccountNotFound() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Code:    CodeAccountNotFound,
		Message: "account for this session no longer exists",
	}
}

func InvalidState() *AppError {
	return &AppError{
		Err:     ErrInvalidState,
		Code:    CodeInvalidState,
		Message: "invalid OAuth state",
	}
}

func ExpiredState() *AppError {
	return &AppError{
		Err:     ErrExpiredState,
		Code:    CodeExpiredState,
		Message: "OAuth state has expired, please try again",
	}
}

// OAuthExchange wraps a failed token exchange or profile fetch.
// The cause is kept for logging; only Message reaches the client.
func OAuthExchange(cause error) *AppError {
	return &AppError{
		Err:     errors.Join(ErrUpstream, cause),
		Code:    CodeOAuthExchange,
		Message: "GitHub authentication failed",
	}
}

// Upstream wraps a failed read from the provider's REST API.
func Upstream(message string, cause error) *AppError {
	return &AppError{
		Err:     errors.Join(ErrUpstream, cause),
		Code:    CodeUpstream,
		Message: message,
	}
}
