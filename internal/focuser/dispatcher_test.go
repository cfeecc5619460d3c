package focuser

import (
	"errors"
	"testing"
	"time"

	"github.com/muurk/dreamfocus/internal/protocol"
	"github.com/muurk/dreamfocus/internal/transport"
)

// fakePort is a scripted Port: each write consumes the next queued
// response. An empty queue behaves like a silent line (read timeout).
type fakePort struct {
	writes   [][]byte
	queue    [][]byte
	flushes  int
	writeErr error
	closed   bool
}

func (f *fakePort) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		err := f.writeErr
		f.writeErr = nil
		return 0, err
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakePort) ReadExact(n int, timeout time.Duration) ([]byte, error) {
	if len(f.queue) == 0 {
		return nil, transport.ErrReadTimeout
	}
	resp := f.queue[0]
	f.queue = f.queue[1:]
	if len(resp) < n {
		return nil, transport.ErrReadTimeout
	}
	return resp[:n], nil
}

func (f *fakePort) FlushInput() error {
	f.flushes++
	return nil
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

// respond queues a well-formed response frame.
func (f *fakePort) respond(opcode, a, b, c, d byte) {
	fr := protocol.Frame{Marker: protocol.Marker, Opcode: opcode, A: a, B: b, C: c, D: d}
	fr.Checksum = protocol.CalculateChecksum(fr)
	f.queue = append(f.queue, fr.Bytes())
}

// respondRaw queues arbitrary bytes, valid or not.
func (f *fakePort) respondRaw(raw []byte) {
	f.queue = append(f.queue, raw)
}

func TestDispatchSuccess(t *testing.T) {
	port := &fakePort{}
	port.respond(protocol.OpReadPosition, 0x00, 0x00, 0x07, 0xD0)

	d := NewDispatcher(port, time.Second)
	resp, err := d.Dispatch(protocol.OpReadPosition, 0)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if resp.Int32() != 2000 {
		t.Errorf("position = %d, want 2000", resp.Int32())
	}

	// The request on the wire must be a valid encoded frame.
	if len(port.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(port.writes))
	}
	sent, err := protocol.Decode(port.writes[0])
	if err != nil {
		t.Fatalf("request frame invalid: %v", err)
	}
	if sent.Opcode != protocol.OpReadPosition {
		t.Errorf("request opcode = %s, want read-position", protocol.OpcodeName(sent.Opcode))
	}

	// Stale input must have been flushed before the write.
	if port.flushes != 1 {
		t.Errorf("flushes = %d, want 1", port.flushes)
	}
}

func TestDispatchUnsupportedOpcode(t *testing.T) {
	port := &fakePort{}
	d := NewDispatcher(port, time.Second)

	_, err := d.Dispatch('X', 0)
	if !IsUnsupportedOpcode(err) {
		t.Fatalf("error = %v, want unsupported opcode", err)
	}
	if len(port.writes) != 0 {
		t.Error("nothing must be written for an unencodable opcode")
	}
}

func TestDispatchTimeout(t *testing.T) {
	port := &fakePort{} // empty queue: the device never answers
	d := NewDispatcher(port, time.Second)

	_, err := d.Dispatch(protocol.OpIsMoving, 0)
	if !IsTimeout(err) {
		t.Fatalf("error = %v, want timeout", err)
	}
	if !IsRetryable(err) {
		t.Error("timeouts must be retryable")
	}
}

func TestDispatchTransportError(t *testing.T) {
	port := &fakePort{writeErr: errors.New("device unplugged")}
	d := NewDispatcher(port, time.Second)

	_, err := d.Dispatch(protocol.OpIsMoving, 0)
	if !IsTransport(err) {
		t.Fatalf("error = %v, want transport error", err)
	}
}

func TestDispatchChecksumError(t *testing.T) {
	port := &fakePort{}
	fr := protocol.Frame{Marker: protocol.Marker, Opcode: protocol.OpIsMoving, D: 1}
	fr.Checksum = protocol.CalculateChecksum(fr) ^ 0xFF
	port.respondRaw(fr.Bytes())

	d := NewDispatcher(port, time.Second)
	_, err := d.Dispatch(protocol.OpIsMoving, 0)
	if !IsChecksum(err) {
		t.Fatalf("error = %v, want checksum error", err)
	}
}

func TestDispatchDeviceErrorSentinels(t *testing.T) {
	tests := []struct {
		name     string
		sentinel byte
	}{
		{"unrecognized command", protocol.OpErrUnrecognized},
		{"bad checksum report", protocol.OpErrBadChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := &fakePort{}
			// Payload bytes are undefined for sentinels; fill with junk
			// to prove they are never interpreted.
			port.respond(tt.sentinel, 0xDE, 0xAD, 0xBE, 0xEF)

			d := NewDispatcher(port, time.Second)
			_, err := d.Dispatch(protocol.OpReadPosition, 0)
			if !IsDeviceRejected(err) {
				t.Fatalf("error = %v, want device rejected", err)
			}
			if IsRetryable(err) {
				t.Error("device rejections must not be retryable")
			}
		})
	}
}

// A checksum-valid response with the wrong opcode must still be refused:
// it is the answer to some other request.
func TestDispatchResponseMismatch(t *testing.T) {
	port := &fakePort{}
	port.respond(protocol.OpReadTemperature, 0, 10, 2, 88)

	d := NewDispatcher(port, time.Second)
	_, err := d.Dispatch(protocol.OpReadPosition, 0)
	if !IsResponseMismatch(err) {
		t.Fatalf("error = %v, want response mismatch", err)
	}
}

func TestErrorKindPredicates(t *testing.T) {
	kinds := []struct {
		kind  ErrorKind
		check func(error) bool
	}{
		{ErrKindTransport, IsTransport},
		{ErrKindTimeout, IsTimeout},
		{ErrKindChecksum, IsChecksum},
		{ErrKindDeviceRejected, IsDeviceRejected},
		{ErrKindResponseMismatch, IsResponseMismatch},
		{ErrKindUnsupportedOpcode, IsUnsupportedOpcode},
	}

	for _, k := range kinds {
		t.Run(k.kind.String(), func(t *testing.T) {
			err := &DispatchError{Kind: k.kind, Opcode: protocol.OpIsMoving, Message: "test"}
			if !k.check(err) {
				t.Errorf("predicate for %s did not match its own kind", k.kind)
			}
			for _, other := range kinds {
				if other.kind != k.kind && other.check(err) {
					t.Errorf("predicate for %s matched %s", other.kind, k.kind)
				}
			}
		})
	}

	if IsTransport(errors.New("plain")) {
		t.Error("plain errors must not match any kind")
	}
}
