package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Kind classifies why a call to the inference service failed. All kinds
// surface to API clients as the same "upstream unavailable" class; the kind
// is kept for logs and metrics.
type Kind string

const (
	KindOffline         Kind = "offline"          // connection refused / host unreachable
	KindTimeout         Kind = "timeout"          // generation did not finish in time
	KindUpstream        Kind = "upstream_error"   // non-2xx response
	KindInvalidResponse Kind = "invalid_response" // 2xx with a malformed body
	KindCanceled        Kind = "canceled"         // caller went away
)

// Error is returned by Client.Generate for every failed call.
type Error struct {
	Kind    Kind
	Status  int    // upstream HTTP status for KindUpstream
	Message string // upstream message or a short description
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("inference %s (status %d): %s", e.Kind, e.Status, e.Message)
	case e.Message != "":
		return fmt.Sprintf("inference %s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("inference %s: %v", e.Kind, e.Err)
	default:
		return "inference " + string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the failure kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

// classifyTransport maps a transport-level error (no HTTP response) to an
// *Error.
func classifyTransport(err error) *Error {
	switch {
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindCanceled, Message: "request canceled", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: "generation timed out", Err: err}
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return &Error{Kind: KindOffline, Message: "inference service is offline", Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return &Error{Kind: KindOffline, Message: "inference service host not found", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "generation timed out", Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return &Error{Kind: KindOffline, Message: "inference service is offline", Err: err}
	}
	return &Error{Kind: KindUpstream, Message: "inference request failed", Err: err}
}
