package dcb

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Service and DCB methods. Callers should
// prefer errors.Is over string matching.
var (
	// ErrProtocolNotFound is returned by Connect when the named protocol
	// module cannot be loaded (spec §4.3 step 2).
	ErrProtocolNotFound = errors.New("dcb: protocol module not found")

	// ErrSessionRemoved is returned by Connect when the session was
	// already torn down before the DCB could be linked to it (spec §4.3
	// step 3).
	ErrSessionRemoved = errors.New("dcb: session already removed")

	// ErrConnectFailed is returned by Connect when the protocol's connect
	// callback fails to establish the socket (spec §4.3 step 4).
	ErrConnectFailed = errors.New("dcb: connect failed")

	// ErrClosed is returned by Read and DrainWriteq (and by netpoller's
	// Add) when the DCB has no file descriptor: none was assigned yet, or
	// the reclaimer has already closed it. Write reports the same
	// condition by returning false.
	ErrClosed = errors.New("dcb: descriptor closed")

	// ErrWouldBlock names the "no progress, not an error" condition (spec
	// §7 Transient I/O). No function in this module returns it: Read and
	// Write report a would-block condition as a (n, nil) / ok result.
	ErrWouldBlock = errors.New("dcb: operation would block")
)

// IllegalTransitionError describes a state transition that is not present
// in the table in spec §4.1. SetState reports such a rejection through its
// boolean result (and DCB.SetState logs it) rather than by returning this
// type; no function in this package constructs it. A rejected transition
// never corrupts state: the state machine simply leaves State unchanged.
type IllegalTransitionError struct {
	From, To State
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("dcb: illegal state transition %s -> %s", e.From, e.To)
}

// FatalIOError wraps an unrecoverable read/write/FIONREAD failure (spec
// §7 Fatal I/O). The wrapped Cause is the underlying syscall error.
type FatalIOError struct {
	Op    string // "read", "write", or "fionread"
	FD    int
	Cause error
}

func (e *FatalIOError) Error() string {
	return fmt.Sprintf("dcb: fatal %s error on fd %d: %v", e.Op, e.FD, e.Cause)
}

func (e *FatalIOError) Unwrap() error {
	return e.Cause
}

// WrapError wraps an error with a message and cause chain, preserving
// errors.Is/As against cause.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
