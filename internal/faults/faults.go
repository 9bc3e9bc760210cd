// Package faults defines the error taxonomy shared by the webhook intake,
// the snapshot cache, and the linking orchestrator.
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrSignatureInvalid is returned by the webhook intake when the
	// HMAC signature is missing or does not match the request body.
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// ErrCacheNotInitialized is returned by snapshot reads before the
	// first successful refresh has completed.
	ErrCacheNotInitialized = errors.New("issue cache not initialized")

	// ErrNotFound is returned by point lookups of ids absent from the
	// current snapshot.
	ErrNotFound = errors.New("not found")
)

// RemoteError wraps a failure from one of the external systems. A 4xx
// response from the remote is a rejection (the request was understood and
// refused); anything else - network errors, timeouts, 5xx - means the
// remote was unavailable and the prior local state stays authoritative.
type RemoteError struct {
	// System names the remote, "jira" or "github".
	System string

	// StatusCode is the HTTP status when one was received, 0 otherwise.
	StatusCode int

	// Detail carries the remote's own error text when available.
	Detail string

	// Err is the underlying error.
	Err error
}

func (e *RemoteError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.System, e.Detail, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.System, e.Err)
	}
	return fmt.Sprintf("%s: remote call failed (status %d)", e.System, e.StatusCode)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Rejected reports whether the remote understood and refused the request.
func (e *RemoteError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Unavailable reports whether the remote could not be reached or failed
// internally.
func (e *RemoteError) Unavailable() bool {
	return !e.Rejected()
}

// Remote builds a RemoteError for the named system. statusCode may be 0
// when no HTTP response was received.
func Remote(system string, statusCode int, detail string, err error) *RemoteError {
	return &RemoteError{System: system, StatusCode: statusCode, Detail: detail, Err: err}
}

// AsRemote unwraps err into a RemoteError if one is in the chain.
func AsRemote(err error) (*RemoteError, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
