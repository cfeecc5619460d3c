package transport

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/muurk/dreamfocus/internal/protocol"
)

var errClosed = errors.New("transport: port closed")

// Simulation seed values, matching the original driver's simulation mode.
const (
	simSeedPosition    = 2000
	simSeedTemperature = 20.0 // degrees C
	simSeedHumidity    = 1.0  // percent

	// simStepTicks is how far the simulated motor travels between two
	// consecutive handled frames while a move is in progress.
	simStepTicks = 512
)

// SimulatedPort is a model focuser behind the Port interface. Every
// request frame written to it is answered from an in-memory device model,
// so the dispatcher, session, and poll loop run unchanged against it.
type SimulatedPort struct {
	mu sync.Mutex

	position int32
	target   int32
	moving   bool
	absolute bool
	tempC    float64
	humidity float64
	parked   bool
	closed   bool

	// pending holds response bytes not yet consumed by ReadExact.
	pending []byte
}

// NewSimulatedPort creates a simulated focuser with the standard seeds:
// position 2000, 20 degrees C, 1% humidity, relative mode, idle.
func NewSimulatedPort() *SimulatedPort {
	return &SimulatedPort{
		position: simSeedPosition,
		target:   simSeedPosition,
		tempC:    simSeedTemperature,
		humidity: simSeedHumidity,
	}
}

// SetEnvironment overrides the simulated temperature (degrees C) and
// humidity (percent).
func (s *SimulatedPort) SetEnvironment(tempC, humidity float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tempC = tempC
	s.humidity = humidity
}

// Position returns the simulated motor position.
func (s *SimulatedPort) Position() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Write accepts one request frame and queues the device's response.
func (s *SimulatedPort) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errClosed
	}

	frame, err := protocol.Decode(p)
	if err != nil {
		s.respondSentinel(protocol.OpErrBadChecksum)
		return len(p), nil
	}

	s.advance()
	s.handle(frame)
	return len(p), nil
}

// ReadExact returns queued response bytes. An empty queue means the
// "device" has nothing to say, which surfaces as a read timeout just like
// a silent serial line.
func (s *SimulatedPort) ReadExact(n int, timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errClosed
	}
	if len(s.pending) < n {
		return nil, ErrReadTimeout
	}

	out := s.pending[:n]
	s.pending = append([]byte(nil), s.pending[n:]...)
	return out, nil
}

// FlushInput discards any queued response bytes.
func (s *SimulatedPort) FlushInput() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	return nil
}

// Close shuts the simulated device down.
func (s *SimulatedPort) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// advance steps the motor model toward its target. Called once per
// handled frame, so motion progresses as the host keeps polling.
func (s *SimulatedPort) advance() {
	if !s.moving {
		return
	}

	delta := s.target - s.position
	switch {
	case delta > simStepTicks:
		s.position += simStepTicks
	case delta < -simStepTicks:
		s.position -= simStepTicks
	default:
		s.position = s.target
		s.moving = false
	}
}

func (s *SimulatedPort) handle(req protocol.Frame) {
	switch req.Opcode {
	case protocol.OpMoveAbsolute:
		s.target = req.Int32()
		s.moving = s.target != s.position
		s.parked = false
		s.respond(req.Opcode, uint32(s.target))

	case protocol.OpSync:
		s.position = req.Int32()
		s.target = s.position
		s.moving = false
		s.absolute = true
		s.respond(req.Opcode, uint32(s.position))

	case protocol.OpStop:
		s.target = s.position
		s.moving = false
		s.respond(req.Opcode, 0)

	case protocol.OpReadPosition:
		s.respond(req.Opcode, uint32(s.position))

	case protocol.OpIsMoving:
		var d uint32
		if s.moving {
			d = 1
		}
		s.respond(req.Opcode, d)

	case protocol.OpIsCalibrated:
		var d uint32
		if s.absolute {
			d = 1
		}
		s.respond(req.Opcode, d)

	case protocol.OpReadTemperature:
		var buf [4]byte
		binary.BigEndian.PutUint16(buf[0:2], uint16(int16(s.humidity*10)))
		binary.BigEndian.PutUint16(buf[2:4], uint16(int16(s.tempC*10)))
		s.respond(req.Opcode, binary.BigEndian.Uint32(buf[:]))

	case protocol.OpMoveSpeed:
		speed := req.D &^ protocol.DirectionBit
		if speed > 0 {
			if req.D&protocol.DirectionBit != 0 {
				s.target = s.position + 10*simStepTicks
			} else {
				s.target = s.position - 10*simStepTicks
			}
			s.moving = true
		}
		s.respondFrame(req.Opcode, 0, 0, 0, req.D)

	case protocol.OpPark:
		s.target = 0
		s.moving = s.position != 0
		s.parked = true
		s.respond(req.Opcode, 0)

	case protocol.OpVersion:
		s.respondFrame(req.Opcode, 0, 0, 1, 0)

	default:
		s.respondSentinel(protocol.OpErrUnrecognized)
	}
}

// respond queues a response frame whose a..d carry value big-endian.
// Responses are built by hand rather than through Encode: the device
// echoes the request opcode with response payload semantics Encode does
// not model.
func (s *SimulatedPort) respond(opcode byte, value uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], value)
	s.respondFrame(opcode, buf[0], buf[1], buf[2], buf[3])
}

func (s *SimulatedPort) respondFrame(opcode, a, b, c, d byte) {
	f := protocol.Frame{Marker: protocol.Marker, Opcode: opcode, A: a, B: b, C: c, D: d}
	f.Checksum = protocol.CalculateChecksum(f)
	s.pending = append(s.pending, f.Bytes()...)
}

func (s *SimulatedPort) respondSentinel(sentinel byte) {
	s.respondFrame(sentinel, 0, 0, 0, 0)
}
