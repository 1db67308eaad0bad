// Package errors defines the error taxonomy used across modelforge.
//
// Every error carries a machine-readable Code plus a human-readable
// Message and an actionable Suggestion, so the CLI layer can render
// failures consistently without parsing free text.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error codes surfaced by the auth subsystem.
const (
	CodeProviderNotConfigured  = "PROVIDER_NOT_CONFIGURED"
	CodeDeviceFlowMisconfig    = "DEVICE_FLOW_MISCONFIGURED"
	CodeUnknownAuthStrategy    = "UNKNOWN_AUTH_STRATEGY"
	CodeExpiredToken           = "EXPIRED_TOKEN"
	CodeAccessDenied           = "ACCESS_DENIED"
	CodeOAuthPollError         = "OAUTH_POLL_ERROR"
	CodeEmptyAPIKey            = "EMPTY_API_KEY"
	CodeNetworkTimeout         = "NETWORK_TIMEOUT"
	CodeConnectionFailed       = "CONNECTION_FAILED"
	CodeRateLimited            = "RATE_LIMITED"
	CodeInvalidResponseFormat  = "INVALID_RESPONSE_FORMAT"
	CodeAuthenticationRequired = "AUTHENTICATION_REQUIRED"
)

// ConfigurationError indicates malformed or missing setup. It is never
// retried: the user has to fix their configuration first.
type ConfigurationError struct {
	Code       string
	Message    string
	Suggestion string
	Err        error
}

func (e *ConfigurationError) Error() string {
	return format("configuration error", e.Message, e.Suggestion, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// AuthenticationError indicates a credential was rejected or a flow was
// explicitly denied. Terminal for the current attempt; callers may start
// a fresh flow but must not blindly retry.
type AuthenticationError struct {
	Code       string
	Message    string
	Suggestion string
	Err        error
}

func (e *AuthenticationError) Error() string {
	return format("authentication error", e.Message, e.Suggestion, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// NetworkError is a transport-level failure (connection refused, DNS,
// unexpected protocol response). Potentially retryable by an outer
// retry wrapper, but not retried by the component that raised it.
type NetworkError struct {
	Code       string
	Message    string
	Suggestion string
	Err        error
}

func (e *NetworkError) Error() string {
	return format("network error", e.Message, e.Suggestion, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// NetworkTimeoutError is a timeout on a network operation. Always a
// candidate for retry with backoff.
type NetworkTimeoutError struct {
	Message    string
	Suggestion string
	Err        error
}

func (e *NetworkTimeoutError) Error() string {
	return format("network timeout", e.Message, e.Suggestion, e.Err)
}

func (e *NetworkTimeoutError) Unwrap() error { return e.Err }

// RateLimitError is an explicit 429/backoff signal. When the server
// supplied a Retry-After delay it is carried verbatim in RetryAfter and
// takes precedence over any computed backoff schedule.
type RateLimitError struct {
	Message    string
	Suggestion string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return format("rate limited", e.Message, e.Suggestion, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// JSONDecodeError indicates a response body that could not be parsed as
// the expected JSON shape. Source names the payload, e.g. "token response".
type JSONDecodeError struct {
	Source     string
	Message    string
	Suggestion string
	Err        error
}

func (e *JSONDecodeError) Error() string {
	msg := e.Message
	if e.Source != "" {
		msg = fmt.Sprintf("invalid JSON in %s: %s", e.Source, e.Message)
	}
	return format("decode error", msg, e.Suggestion, e.Err)
}

func (e *JSONDecodeError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient failure that an outer
// retry wrapper may reasonably attempt again.
func IsRetryable(err error) bool {
	var timeout *NetworkTimeoutError
	var rate *RateLimitError
	return errors.As(err, &timeout) || errors.As(err, &rate)
}

// RetryAfter extracts a server-provided retry delay from err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var rate *RateLimitError
	if errors.As(err, &rate) && rate.RetryAfter > 0 {
		return rate.RetryAfter, true
	}
	return 0, false
}

// Suggestion extracts the actionable suggestion attached to err, if any.
func Suggestion(err error) string {
	var cfg *ConfigurationError
	var auth *AuthenticationError
	var net *NetworkError
	var timeout *NetworkTimeoutError
	var rate *RateLimitError
	var decode *JSONDecodeError

	switch {
	case errors.As(err, &cfg):
		return cfg.Suggestion
	case errors.As(err, &auth):
		return auth.Suggestion
	case errors.As(err, &net):
		return net.Suggestion
	case errors.As(err, &timeout):
		return timeout.Suggestion
	case errors.As(err, &rate):
		return rate.Suggestion
	case errors.As(err, &decode):
		return decode.Suggestion
	}
	return ""
}

func format(kind, message, suggestion string, err error) string {
	msg := kind
	if message != "" {
		msg += ": " + message
	} else if err != nil {
		msg += ": " + err.Error()
	}
	if suggestion != "" {
		msg += "\n  Try: " + suggestion
	}
	return msg
}
