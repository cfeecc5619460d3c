package transport

import (
	"errors"
	"time"
)

// ErrReadTimeout is returned by ReadExact when the full read does not
// complete within its deadline. Callers classify it with errors.Is.
var ErrReadTimeout = errors.New("transport: read timeout")

// Port is the byte-duplex channel the protocol core runs over. It is the
// only thing the dispatcher knows about the underlying link, which keeps
// the protocol and state-machine code identical for real serial hardware
// and the simulated device.
//
// A Port is not safe for concurrent use; the session serializes access.
type Port interface {
	// Write writes len(p) bytes to the channel, blocking until the bytes
	// are handed to the link. A short write is an error.
	Write(p []byte) (int, error)

	// ReadExact reads exactly n bytes within the given deadline. On
	// timeout it returns ErrReadTimeout (possibly wrapped); any bytes
	// already consumed are discarded, since a partial frame is useless.
	ReadExact(n int, timeout time.Duration) ([]byte, error)

	// FlushInput discards any unread input queued on the channel.
	FlushInput() error

	// Close releases the channel.
	Close() error
}
