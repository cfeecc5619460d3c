package focuser

import (
	"time"

	"github.com/muurk/dreamfocus/internal/logging"
	"github.com/muurk/dreamfocus/internal/protocol"
	"github.com/muurk/dreamfocus/internal/transport"
)

// DefaultTimeout is the per-read response deadline when none is
// configured. The device answers within milliseconds when healthy; the
// generous deadline covers a busy motor controller.
const DefaultTimeout = 5 * time.Second

// Dispatcher performs one synchronous command round trip at a time. It
// owns the framing policy: build the request, discard stale input, write,
// read exactly one frame, validate, and correlate by opcode.
//
// A Dispatcher is not safe for concurrent use; the session serializes all
// calls through its mutex, which also serializes the poll loop against
// externally triggered operations.
type Dispatcher struct {
	port    transport.Port
	timeout time.Duration
}

// NewDispatcher creates a dispatcher over the given port. A zero timeout
// selects DefaultTimeout.
func NewDispatcher(port transport.Port, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{port: port, timeout: timeout}
}

// Dispatch sends one command and returns the validated, correlated
// response frame. Failures are typed *DispatchError values per the kinds
// in errors.go; the caller decides whether to retry.
func (d *Dispatcher) Dispatch(opcode byte, payload uint32) (protocol.Frame, error) {
	start := time.Now()
	resp, err := d.roundTrip(opcode, payload)
	logging.LogRoundTrip(protocol.OpcodeName(opcode), time.Since(start), err)
	return resp, err
}

func (d *Dispatcher) roundTrip(opcode byte, payload uint32) (protocol.Frame, error) {
	req, err := protocol.Encode(opcode, payload)
	if err != nil {
		return protocol.Frame{}, &DispatchError{
			Kind:    ErrKindUnsupportedOpcode,
			Opcode:  opcode,
			Message: "cannot encode request",
			Err:     err,
		}
	}

	// Discard anything queued before this request. A desynced response
	// from an earlier timed-out round trip would otherwise be read as
	// this command's answer.
	if err := d.port.FlushInput(); err != nil {
		return protocol.Frame{}, classifyDispatchError(opcode, "failed to flush stale input", err)
	}

	raw := req.Bytes()
	logging.LogFrame("send", protocol.OpcodeName(opcode), raw)
	if _, err := d.port.Write(raw); err != nil {
		return protocol.Frame{}, classifyDispatchError(opcode, "failed to write request frame", err)
	}

	respRaw, err := d.port.ReadExact(protocol.FrameSize, d.timeout)
	if err != nil {
		return protocol.Frame{}, classifyDispatchError(opcode, "failed to read response frame", err)
	}
	logging.LogFrame("recv", protocol.OpcodeName(respRaw[1]), respRaw)

	resp, err := protocol.Decode(respRaw)
	if err != nil {
		return protocol.Frame{}, classifyDispatchError(opcode, "invalid response frame", err)
	}

	// Payload fields are undefined when the device signals an error
	// sentinel; reject before any field interpretation.
	if resp.IsErrorOpcode() {
		reason := "device reported unrecognized command"
		if resp.Opcode == protocol.OpErrBadChecksum {
			reason = "device reported bad checksum"
		}
		return protocol.Frame{}, &DispatchError{
			Kind:    ErrKindDeviceRejected,
			Opcode:  opcode,
			Message: reason,
		}
	}

	if resp.Opcode != opcode {
		return protocol.Frame{}, &DispatchError{
			Kind:   ErrKindResponseMismatch,
			Opcode: opcode,
			Message: "response opcode " + protocol.OpcodeName(resp.Opcode) +
				" does not match request",
		}
	}

	return resp, nil
}
