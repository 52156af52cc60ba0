package oba

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// ErrorKind classifies why a fetch failed.
type ErrorKind int

const (
	KindRequest ErrorKind = iota
	KindTimeout
	KindConnection
	KindStatus
	KindInvalidJSON
	KindMalformed
	KindRouteMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindStatus:
		return "status"
	case KindInvalidJSON:
		return "invalid_json"
	case KindMalformed:
		return "malformed"
	case KindRouteMismatch:
		return "route_mismatch"
	default:
		return "request"
	}
}

// FetchError wraps a failed upstream call.
type FetchError struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RetryDelay is how long to wait before retrying after a failure of kind.
func RetryDelay(kind ErrorKind) time.Duration {
	if kind == KindConnection {
		return 5 * time.Minute
	}
	return time.Minute
}

// KindOf extracts the kind of err, KindRequest when err is not a FetchError.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindRequest
}

func classifyTransport(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return KindConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindConnection
	}
	return KindRequest
}
