// Package resilience classifies failures of outbound calls and guards
// upstream services with a circuit breaker. Nothing here retries: a failed
// call is reported once and the caller decides what to try next.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
)

var (
	// ErrUpstreamUnavailable marks network failures, timeouts and non-2xx
	// responses from an upstream service.
	ErrUpstreamUnavailable = eris.New("upstream unavailable")

	// ErrMalformedResponse marks a response that was expected to be JSON but
	// carried markup or an unparseable body. It usually means the upstream
	// rejected our credentials and served an error page.
	ErrMalformedResponse = eris.New("malformed upstream response")
)

// Failure kinds reported by Kind.
const (
	KindTimeout     = "timeout"
	KindUnavailable = "upstream_unavailable"
	KindMalformed   = "malformed_response"
	KindCanceled    = "canceled"
	KindOther       = "other"
)

// UpstreamError wraps a failed upstream call with the service name and, when
// the server answered, its HTTP status code.
type UpstreamError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is reports every UpstreamError as ErrUpstreamUnavailable.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// NewUpstreamError wraps err as an upstream failure with an optional HTTP
// status code (0 when the request never got a response).
func NewUpstreamError(service string, statusCode int, err error) *UpstreamError {
	if err == nil {
		err = eris.Errorf("unexpected status %d", statusCode)
	}
	return &UpstreamError{Service: service, StatusCode: statusCode, Err: err}
}

// StatusCode returns the HTTP status carried by an UpstreamError in err's
// chain, or 0.
func StatusCode(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}

// IsTimeout returns true if err is a deadline expiry or a network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "i/o timeout") ||
		strings.Contains(strings.ToLower(err.Error()), "client.timeout exceeded")
}

// IsTransient returns true if the error looks like a network-level hiccup
// (timeouts, connection resets, DNS failures) or carries a transient HTTP
// status.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsTimeout(err) {
		return true
	}
	if IsTransientHTTPStatus(StatusCode(err)) {
		return true
	}

	// Connection reset / refused / DNS.
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"connection refused",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"server closed idle connection",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue.
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

// Kind returns a short label describing err, suitable for logs and metric
// labels. Malformed responses are checked first because they arrive with a
// 2xx status.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformed
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case IsTimeout(err):
		return KindTimeout
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUnavailable
	default:
		return KindOther
	}
}
