package transport

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

const (
	// DefaultDevice is the serial device the focuser usually enumerates as.
	DefaultDevice = "/dev/ttyACM0"

	// DefaultBaud is the focuser's fixed line rate (8N1).
	DefaultBaud = 9600

	// pollWindow is the per-syscall read timeout. ReadExact loops in
	// windows of this size until its own deadline expires, so the
	// overall timeout resolution is one window.
	pollWindow = 50 * time.Millisecond
)

// SerialPort drives the focuser over a real serial device.
type SerialPort struct {
	port *serial.Port
	name string
}

// OpenSerial opens the serial device at 8N1 with the given baud rate.
func OpenSerial(device string, baud int) (*SerialPort, error) {
	if device == "" {
		device = DefaultDevice
	}
	if baud <= 0 {
		baud = DefaultBaud
	}

	cfg := &serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: pollWindow,
	}

	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}

	return &SerialPort{port: port, name: device}, nil
}

// Name returns the device path this port was opened on.
func (s *SerialPort) Name() string {
	return s.name
}

// Write writes all of p to the serial device.
func (s *SerialPort) Write(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("serial write on %s: %w", s.name, err)
	}
	if n != len(p) {
		return n, fmt.Errorf("serial short write on %s: %d of %d bytes", s.name, n, len(p))
	}
	return n, nil
}

// ReadExact reads exactly n bytes, accumulating across short reads, until
// the deadline expires. The underlying port read returns every pollWindow
// with whatever bytes arrived; io.EOF from an empty window is not a
// terminal condition on a serial line.
func (s *SerialPort) ReadExact(n int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, n)
	deadline := time.Now().Add(timeout)
	read := 0

	for read < n {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %d of %d bytes after %s on %s",
				ErrReadTimeout, read, n, timeout, s.name)
		}

		k, err := s.port.Read(buf[read:])
		read += k
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("serial read on %s: %w", s.name, err)
		}
	}

	return buf, nil
}

// FlushInput discards bytes queued on the device. The tarm driver flushes
// both directions, which matches the original driver's tcflush(TCIOFLUSH)
// before each request.
func (s *SerialPort) FlushInput() error {
	if err := s.port.Flush(); err != nil {
		return fmt.Errorf("serial flush on %s: %w", s.name, err)
	}
	return nil
}

// Close closes the serial device.
func (s *SerialPort) Close() error {
	return s.port.Close()
}
