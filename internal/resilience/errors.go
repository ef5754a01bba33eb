package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// Failure names the class of a failed outbound request.
type Failure int

const (
	FailureNone       Failure = iota
	FailureTimeout            // deadline hit while dialing, handshaking or reading
	FailureConnection         // reset, refused, aborted or broken mid-stream
	FailureDNSTemp            // resolver unreachable or timed out
	FailureDNSNotFound        // host does not exist
	FailureCanceled           // caller gave up
	FailureOther
)

var failureNames = map[Failure]string{
	FailureNone:        "none",
	FailureTimeout:     "timeout",
	FailureConnection:  "connection",
	FailureDNSTemp:     "dns_temporary",
	FailureDNSNotFound: "dns_not_found",
	FailureCanceled:    "canceled",
	FailureOther:       "other",
}

func (f Failure) String() string {
	if s, ok := failureNames[f]; ok {
		return s
	}
	return "unknown"
}

// Transient reports whether a request that failed this way may succeed when
// sent again. A host that does not resolve stays unresolved.
func (f Failure) Transient() bool {
	switch f {
	case FailureTimeout, FailureConnection, FailureDNSTemp:
		return true
	default:
		return false
	}
}

// Messages some transports return without a typed cause in the chain.
var connectionPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"server closed idle connection",
	"transport connection broken",
	"unexpected eof",
}

var timeoutPatterns = []string{
	"tls handshake timeout",
	"i/o timeout",
	"timeout awaiting response headers",
}

// ClassifyFailure maps a transport error to a Failure.
func ClassifyFailure(err error) Failure {
	if err == nil {
		return FailureNone
	}

	// DNS errors implement net.Error, so they go first.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return FailureDNSNotFound
		}
		if dnsErr.IsTimeout || dnsErr.IsTemporary {
			return FailureDNSTemp
		}
		return FailureOther
	}

	if errors.Is(err, context.Canceled) {
		return FailureCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return FailureConnection
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such host"):
		return FailureDNSNotFound
	case strings.Contains(msg, "temporary failure in name resolution"):
		return FailureDNSTemp
	case containsAny(msg, timeoutPatterns):
		return FailureTimeout
	case containsAny(msg, connectionPatterns):
		return FailureConnection
	}
	return FailureOther
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// TransientError marks an error as safe to retry.
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

// NewTransientError wraps err as retryable. statusCode is 0 for transport
// failures.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient reports whether err carries a TransientError or classifies as
// a transient Failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return ClassifyFailure(err).Transient()
}

// IsTransientHTTPStatus reports whether a response status is worth retrying.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
