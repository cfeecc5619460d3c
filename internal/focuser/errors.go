package focuser

import (
	"errors"
	"fmt"

	"github.com/muurk/dreamfocus/internal/protocol"
	"github.com/muurk/dreamfocus/internal/transport"
)

// ErrorKind categorizes a failed round trip.
type ErrorKind int

const (
	// ErrKindTransport indicates an I/O failure or a short read/write on
	// the port. Surfaced, never auto-retried inside the core; the poll
	// loop retries naturally on its next tick.
	ErrKindTransport ErrorKind = iota
	// ErrKindTimeout indicates no complete response within the per-read
	// deadline.
	ErrKindTimeout
	// ErrKindChecksum indicates a corrupted response frame. Fatal for
	// that round trip; frame boundaries are not self-delimiting, so no
	// resynchronization is attempted.
	ErrKindChecksum
	// ErrKindDeviceRejected indicates the device explicitly signaled an
	// error sentinel, or echoed a different value than commanded on a
	// position-setting command.
	ErrKindDeviceRejected
	// ErrKindResponseMismatch indicates a response opcode that does not
	// match the request opcode. With no request IDs on the half-duplex
	// link, opcode equality is the only correlation check available.
	ErrKindResponseMismatch
	// ErrKindUnsupportedOpcode indicates a programmer error: the opcode
	// is outside the command set.
	ErrKindUnsupportedOpcode
)

// String returns a human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrKindTransport:
		return "transport error"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindChecksum:
		return "checksum error"
	case ErrKindDeviceRejected:
		return "device rejected"
	case ErrKindResponseMismatch:
		return "response mismatch"
	case ErrKindUnsupportedOpcode:
		return "unsupported opcode"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// DispatchError is the typed result of a failed round trip.
type DispatchError struct {
	Kind    ErrorKind
	Opcode  byte   // request opcode
	Message string // context for the failure
	Err     error  // underlying error, if any
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	op := protocol.OpcodeName(e.Opcode)
	if e.Err != nil {
		return fmt.Sprintf("%s on %s: %s (caused by: %v)", e.Kind, op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s on %s: %s", e.Kind, op, e.Message)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// classifyDispatchError wraps a failure from the write/read path with the
// right kind: timeouts get their own category, everything else from the
// port is a transport failure, and a codec checksum failure keeps its
// identity.
func classifyDispatchError(opcode byte, message string, err error) *DispatchError {
	kind := ErrKindTransport

	var csErr *protocol.ChecksumError
	switch {
	case errors.Is(err, transport.ErrReadTimeout):
		kind = ErrKindTimeout
	case errors.As(err, &csErr):
		kind = ErrKindChecksum
	}

	return &DispatchError{Kind: kind, Opcode: opcode, Message: message, Err: err}
}

func kindOf(err error) (ErrorKind, bool) {
	var dErr *DispatchError
	if errors.As(err, &dErr) {
		return dErr.Kind, true
	}
	return 0, false
}

// IsTransport checks if an error is a transport-level failure.
func IsTransport(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrKindTransport
}

// IsTimeout checks if an error is a response deadline expiry.
func IsTimeout(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrKindTimeout
}

// IsChecksum checks if an error is a corrupted response frame.
func IsChecksum(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrKindChecksum
}

// IsDeviceRejected checks if the device explicitly rejected the command.
func IsDeviceRejected(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrKindDeviceRejected
}

// IsResponseMismatch checks if an error is an opcode correlation failure.
func IsResponseMismatch(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrKindResponseMismatch
}

// IsUnsupportedOpcode checks if an error is a programmer error on the
// opcode set.
func IsUnsupportedOpcode(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrKindUnsupportedOpcode
}

// IsRetryable reports whether retrying the same command later could
// succeed. Programmer errors and explicit device rejections are not
// retryable; link-level failures are.
func IsRetryable(err error) bool {
	k, ok := kindOf(err)
	if !ok {
		return false
	}
	switch k {
	case ErrKindTransport, ErrKindTimeout, ErrKindChecksum:
		return true
	default:
		return false
	}
}
