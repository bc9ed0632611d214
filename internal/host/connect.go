// Package host establishes SSH connections and categorizes connection
// failures, so callers can tell an unreachable host from a host that is
// up but rejected our keys.
package host

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/davisilvarafacho/ssh-register-new-key/pkg/sshutil"
)

// FailReason categorizes why a connection attempt failed.
type FailReason int

const (
	FailUnknown FailReason = iota
	FailTimeout
	FailRefused
	FailUnreachable
	FailAuth
	FailHostKey
)

// String returns a human-readable description of the failure reason.
func (r FailReason) String() string {
	switch r {
	case FailTimeout:
		return "connection timed out"
	case FailRefused:
		return "connection refused"
	case FailUnreachable:
		return "host unreachable"
	case FailAuth:
		return "authentication failed"
	case FailHostKey:
		return "host key verification failed"
	default:
		return "unknown error"
	}
}

// ConnectError reports a failed connection attempt with a categorized reason.
type ConnectError struct {
	Dest   string
	Reason FailReason
	Cause  error
}

func (e *ConnectError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connect %s failed: %s (%v)", e.Dest, e.Reason, e.Cause)
	}
	return fmt.Sprintf("connect %s failed: %s", e.Dest, e.Reason)
}

func (e *ConnectError) Unwrap() error {
	return e.Cause
}

// Connect dials dest (user@host, host, or an ssh_config alias) and performs
// the SSH handshake. On failure it returns a *ConnectError so callers can
// inspect the failure category.
func Connect(dest string, timeout time.Duration) (*sshutil.Client, error) {
	client, err := sshutil.Dial(dest, timeout)
	if err != nil {
		return nil, categorize(dest, err)
	}
	return client, nil
}

// IsAuthFailure reports whether err is a connection failure caused by
// authentication. Key-based auth failing against a host that is otherwise
// up usually means the key is not installed yet, which is the normal state
// before registration.
func IsAuthFailure(err error) bool {
	var connErr *ConnectError
	return errors.As(err, &connErr) && connErr.Reason == FailAuth
}

// IsHostKeyFailure reports whether err is a host key verification failure.
// These are never retried through another channel.
func IsHostKeyFailure(err error) bool {
	var connErr *ConnectError
	return errors.As(err, &connErr) && connErr.Reason == FailHostKey
}

// categorize converts a dial or handshake error into a ConnectError with
// a categorized failure reason.
func categorize(dest string, err error) *ConnectError {
	connErr := &ConnectError{
		Dest:   dest,
		Reason: FailUnknown,
		Cause:  err,
	}

	if err == nil {
		return nil
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "i/o timeout") {
		connErr.Reason = FailTimeout
		return connErr
	}

	if strings.Contains(errStr, "connection refused") {
		connErr.Reason = FailRefused
		return connErr
	}

	if strings.Contains(errStr, "no route to host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "host is down") {
		connErr.Reason = FailUnreachable
		return connErr
	}

	// Host key errors also mention "handshake failed", so check them
	// before the auth bucket.
	if strings.Contains(errStr, "host key") || strings.Contains(errStr, "knownhosts") {
		connErr.Reason = FailHostKey
		return connErr
	}

	if strings.Contains(errStr, "unable to authenticate") ||
		strings.Contains(errStr, "no supported methods") ||
		strings.Contains(errStr, "permission denied") ||
		strings.Contains(errStr, "authentication failed") ||
		strings.Contains(errStr, "handshake failed") {
		connErr.Reason = FailAuth
		return connErr
	}

	return connErr
}
