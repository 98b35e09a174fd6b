package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Kind classifies a failure crossing an external-call boundary.
type Kind string

const (
	KindTransport Kind = "transport" // timeout, connection
	KindAuth      Kind = "auth"      // bad or missing credential
	KindProvider  Kind = "provider"  // non-success response from a provider
	KindParse     Kind = "parse"     // malformed or partial model output
	KindConfig    Kind = "config"    // missing required setting, template or data
)

// HTTPStatusError is implemented by client API errors that carry the
// provider's HTTP status code.
type HTTPStatusError interface {
	error
	HTTPStatus() int
}

// ConfigError reports a missing or invalid configuration value, template, or
// input record.
type ConfigError struct {
	Missing []string
	Msg     string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) == 0 {
		return "config: " + e.Msg
	}
	msg := "config: missing required " + strings.Join(e.Missing, ", ")
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	return msg
}

// NewConfigError builds a ConfigError naming the missing keys.
func NewConfigError(msg string, missing ...string) *ConfigError {
	return &ConfigError{Missing: missing, Msg: msg}
}

// ParseError reports model output that could not be interpreted.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return "parse: " + e.Err.Error()
	}
	return "parse " + e.Field + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// TransientError wraps an error that is safe to retry (e.g., 429, 5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// Classify maps an error onto the failure taxonomy. Nil maps to "".
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var ce *ConfigError
	if errors.As(err, &ce) {
		return KindConfig
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return KindParse
	}

	var se HTTPStatusError
	if errors.As(err, &se) {
		switch se.HTTPStatus() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindAuth
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return KindTransport
		default:
			return KindProvider
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransport
	}
	if IsTransient(err) {
		return KindTransport
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{"401", "403", "unauthorized", "invalid api key", "invalid x-api-key", "authentication"} {
		if strings.Contains(msg, p) {
			return KindAuth
		}
	}
	return KindProvider
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient error patterns (network
// timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var se HTTPStatusError
	if errors.As(err, &se) && IsTransientHTTPStatus(se.HTTPStatus()) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"connection refused",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
