// Package calypsoerr defines the typed error taxonomy raised by
// command parsing and by the transaction manager (spec.md ##7).
package calypsoerr

import (
	"fmt"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
)

// CommandError is raised when a command's response maps to a non-success
// StatusKind, or when Lr (expected response length) does not match.
type CommandError struct {
	Command string
	SW      apdu.StatusWord
	Kind    apdu.StatusKind
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s failed: %s (SW=%s)", e.Command, e.Message, e.SW)
}

// NewCommandError builds a CommandError from a resolved status property.
func NewCommandError(command string, sw apdu.StatusWord, p apdu.StatusProperty) *CommandError {
	return &CommandError{Command: command, SW: sw, Kind: p.Kind, Message: p.Message}
}

// UnexpectedResponseLengthError is raised when a command declares an
// expected response length (Lr) and the actual dataOut length differs,
// even though the status word itself was a success.
type UnexpectedResponseLengthError struct {
	Command  string
	Expected int
	Actual   int
}

func (e *UnexpectedResponseLengthError) Error() string {
	return fmt.Sprintf("%s: unexpected response length: got %d, want %d", e.Command, e.Actual, e.Expected)
}

// IllegalArgumentError is raised by a command constructor before any
// byte ever reaches the card (precondition failure).
type IllegalArgumentError struct {
	Command string
	Reason  string
}

func (e *IllegalArgumentError) Error() string {
	return fmt.Sprintf("%s: illegal argument: %s", e.Command, e.Reason)
}

// Session-level exceptions raised by the transaction manager
// (spec.md ##7 "Session-level categories").

// InconsistentDataError signals a mismatch between request and
// response counts on a card exchange.
type InconsistentDataError struct {
	Requests  int
	Responses int
}

func (e *InconsistentDataError) Error() string {
	return fmt.Sprintf("inconsistent data: %d requests, %d responses", e.Requests, e.Responses)
}

// UnexpectedCommandStatusError wraps a CommandError that failed while
// processing a secure session, carrying the accumulated trace.
type UnexpectedCommandStatusError struct {
	Cause *CommandError
	Trace apdu.Trace
}

func (e *UnexpectedCommandStatusError) Error() string {
	return fmt.Sprintf("unexpected command status during session: %v", e.Cause)
}

func (e *UnexpectedCommandStatusError) Unwrap() error { return e.Cause }

// CardSignatureNotVerifiableError signals the SAM could not check the
// card's closing signature due to an I/O problem.
type CardSignatureNotVerifiableError struct {
	Cause error
}

func (e *CardSignatureNotVerifiableError) Error() string {
	return fmt.Sprintf("card signature not verifiable: %v", e.Cause)
}

func (e *CardSignatureNotVerifiableError) Unwrap() error { return e.Cause }

// UnauthorizedKeyError signals the key presented by the card was not
// accepted by the security settings.
type UnauthorizedKeyError struct {
	Kif, Kvc byte
}

func (e *UnauthorizedKeyError) Error() string {
	return fmt.Sprintf("unauthorized key: KIF=%02X KVC=%02X", e.Kif, e.Kvc)
}

// SessionBufferOverflowError signals the modifications-buffer budget
// was exceeded while multiple-session splitting is disabled.
type SessionBufferOverflowError struct {
	Requested, Available int
}

func (e *SessionBufferOverflowError) Error() string {
	return fmt.Sprintf("session buffer overflow: requested %d, available %d", e.Requested, e.Available)
}

// IllegalStateError signals a violated invariant that is not a command
// or session-transport failure (e.g. SV sequencing rules, spec.md ##4.F).
type IllegalStateError struct {
	Reason string
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("illegal state: %s", e.Reason)
}
