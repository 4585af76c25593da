package service

import (
	"errors"
	"fmt"
)

// Expected, recoverable outcomes the calling flow must branch on. These are
// returned as values, never surfaced to the browser with detail.
var (
	ErrTokenNotFound     = errors.New("token not found")
	ErrTokenAlreadyUsed  = errors.New("token already used")
	ErrTokenExpired      = errors.New("token expired")
	ErrEmailAlreadyInUse = errors.New("email already in use")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail      = errors.New("invalid email format")
	ErrInvalidPassword   = errors.New("password does not meet requirements")
)

// CallbackCode is the closed set of opaque error codes an OAuth callback
// failure redirects with (?error=<code>). No other detail ever reaches the
// client.
type CallbackCode string

const (
	CodeProviderDenied   CallbackCode = "oauth_failed"
	CodeNoCode           CallbackCode = "no_code"
	CodeStateMismatch    CallbackCode = "state_mismatch"
	CodeEmailNotProvided CallbackCode = "email_not_provided"
	CodeCallbackFailed   CallbackCode = "oauth_callback_failed"
)

// CallbackError is a terminal failure of the callback state machine. Err
// holds the underlying cause for server-side logging; only Code is exposed.
type CallbackError struct {
	Code CallbackCode
	Err  error
}

func (e *CallbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth callback failed (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("oauth callback failed (%s)", e.Code)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

func callbackErr(code CallbackCode, err error) *CallbackError {
	return &CallbackError{Code: code, Err: err}
}
