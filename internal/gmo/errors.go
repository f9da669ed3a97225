package gmo

import (
	"errors"
	"fmt"
)

// AuthError means credentials are missing or rejected. Never retried.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return "authentication error: " + e.Message }

// RateLimitError is the exchange telling us to slow down. Retried with
// exponential backoff.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string { return "rate limit exceeded: " + e.Message }

// APIError covers HTTP-level failures and non-zero envelope statuses.
// HTTPStatus 0 means the request never completed (network/timeout).
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error [%s]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("api error (http %d): %s", e.HTTPStatus, e.Message)
}

// Transient reports whether the failure is worth retrying: network
// errors, timeouts, and server-side 5xx. Business 4xx and envelope
// rejections are final.
func (e *APIError) Transient() bool {
	return e.HTTPStatus == 0 || e.HTTPStatus >= 500
}

// OrderError wraps a failure during order placement or settlement.
type OrderError struct {
	Op  string
	Err error
}

func (e *OrderError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *OrderError) Unwrap() error { return e.Err }

// InsufficientFundsError is fatal for the order that triggered it but
// must not halt processing of other symbols.
type InsufficientFundsError struct {
	Symbol string
	Err    error
}

func (e *InsufficientFundsError) Error() string {
	return "insufficient funds for " + e.Symbol + ": " + e.Err.Error()
}
func (e *InsufficientFundsError) Unwrap() error { return e.Err }

// IsAuth reports whether err is (or wraps) an authentication failure.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsRateLimit reports whether err is (or wraps) a rate-limit rejection.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsInsufficientFunds reports whether err is a funds rejection.
func IsInsufficientFunds(err error) bool {
	var ife *InsufficientFundsError
	return errors.As(err, &ife)
}

// retryable reports whether the retry loop should try again.
func retryable(err error) bool {
	if IsAuth(err) {
		return false
	}
	if IsRateLimit(err) {
		return true
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Transient()
	}
	return false
}
