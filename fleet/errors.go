package fleet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/ruteri/snippet-provisioning-backend/interfaces"
)

// ErrorKind classifies why a control plane call failed.
type ErrorKind string

const (
	// KindConnection covers transport failures: refused, reset, DNS, TLS.
	KindConnection ErrorKind = "connection"
	// KindTimeout is a call that exceeded the client timeout or the context deadline.
	KindTimeout ErrorKind = "timeout"
	// KindStatus is a non-200 HTTP answer.
	KindStatus ErrorKind = "status"
	// KindMalformed is a 200 answer whose body has an unexpected shape.
	KindMalformed ErrorKind = "malformed"
)

// RemoteCallError describes a failed call to the control plane.
//
// It matches interfaces.ErrAuthFailure for login failures and rejected tokens,
// interfaces.ErrRemoteCall for every other call, and additionally
// interfaces.ErrMalformedRemoteResponse when the body could not be understood.
type RemoteCallError struct {
	Op         string
	Kind       ErrorKind
	StatusCode int
	Body       []byte
	Err        error
}

func (e *RemoteCallError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("fleet %s: unexpected status %d: %s", e.Op, e.StatusCode, truncate(e.Body, 256))
	default:
		return fmt.Sprintf("fleet %s: %s: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *RemoteCallError) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Kind == KindMalformed {
		errs = append(errs, interfaces.ErrMalformedRemoteResponse)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *RemoteCallError) sentinel() error {
	if e.Op == opLogin || e.StatusCode == http.StatusUnauthorized {
		return interfaces.ErrAuthFailure
	}
	return interfaces.ErrRemoteCall
}

// KindOf returns the failure kind carried by err, or "" if err is not a RemoteCallError.
func KindOf(err error) ErrorKind {
	var rce *RemoteCallError
	if errors.As(err, &rce) {
		return rce.Kind
	}
	return ""
}

// transportError wraps an error returned by http.Client.Do.
func transportError(op string, err error) *RemoteCallError {
	kind := KindConnection
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &RemoteCallError{Op: op, Kind: kind, Err: err}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
