package protocol

import (
	"encoding/binary"
	"fmt"
)

// Frame layout constants
const (
	// FrameSize is the fixed size of every request and response frame
	FrameSize = 8

	// Marker is the first byte of every frame
	Marker = 'M'
)

// Command opcodes (single ASCII characters, kept from the device firmware)
const (
	OpMoveAbsolute    = 'M' // move to absolute position, payload = target (i32 BE)
	OpSync            = 'Z' // calibrate/sync to position, payload = target (i32 BE)
	OpStop            = 'H' // stop / abort, no payload
	OpReadPosition    = 'P' // read position, response a..d = position (i32 BE)
	OpIsMoving        = 'I' // is moving, response d bit0 = moving flag
	OpReadTemperature = 'T' // read temperature/humidity, response a,b / c,d = i16 BE * 10
	OpIsCalibrated    = 'W' // is calibrated, response d bit0 = absolute mode flag
	OpMoveSpeed       = 'R' // move with speed, d = speed (0-127) | direction bit7
	OpPark            = 'G' // park, no payload
	OpVersion         = 'V' // firmware version, response c.d = major.minor
)

// Device error sentinels. The device reuses the opcode byte position to
// signal an error; payload fields are undefined in that case.
const (
	OpErrUnrecognized = '!' // device did not recognize the command
	OpErrBadChecksum  = '?' // device received a corrupted frame
)

// SpeedMax is the largest speed value encodable in a move-with-speed frame.
const SpeedMax = 127

// DirectionBit is the direction flag in the move-with-speed d byte
// (set = outward/up, clear = inward/down).
const DirectionBit = 0x80

// Frame is one 8-byte protocol unit:
//
//	[0]  'M'       marker
//	[1]  opcode    command/response discriminator
//	[2]  a         payload MSB (position-bearing commands)
//	[3]  b
//	[4]  c
//	[5]  d         payload LSB, or speed|direction for move-with-speed
//	[6]  0x00      reserved
//	[7]  checksum  low 8 bits of the sum of bytes 0-6
type Frame struct {
	Marker   byte
	Opcode   byte
	A        byte
	B        byte
	C        byte
	D        byte
	Reserved byte
	Checksum byte
}

// CalculateChecksum returns the low 8 bits of the sum of all frame fields
// preceding the checksum.
func CalculateChecksum(f Frame) byte {
	return byte(uint16(f.Marker) + uint16(f.Opcode) + uint16(f.A) + uint16(f.B) +
		uint16(f.C) + uint16(f.D) + uint16(f.Reserved))
}

// Encode builds a request frame for the given opcode. The payload mapping
// depends on the opcode:
//
//   - move-to / calibrate-to: a..d = big-endian bytes of payload
//   - move-with-speed: d = low byte of payload (bit 7 direction, bits 0-6 speed)
//   - all other known opcodes carry no payload and a..d are zero
//
// Unknown opcodes fail with UnsupportedOpcodeError.
func Encode(opcode byte, payload uint32) (Frame, error) {
	f := Frame{
		Marker: Marker,
		Opcode: opcode,
	}

	switch opcode {
	case OpMoveAbsolute, OpSync:
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], payload)
		f.A, f.B, f.C, f.D = buf[0], buf[1], buf[2], buf[3]

	case OpMoveSpeed:
		f.D = byte(payload)

	case OpStop, OpReadPosition, OpIsMoving, OpReadTemperature,
		OpIsCalibrated, OpPark, OpVersion:
		// No payload.

	default:
		return Frame{}, &UnsupportedOpcodeError{Opcode: opcode}
	}

	f.Checksum = CalculateChecksum(f)
	return f, nil
}

// Decode reconstructs a frame from raw bytes and validates the checksum
// invariant. It does not interpret opcode semantics; a decoded frame may
// still carry a device error sentinel in its opcode field.
func Decode(data []byte) (Frame, error) {
	if len(data) != FrameSize {
		return Frame{}, fmt.Errorf("frame must be exactly %d bytes, got %d", FrameSize, len(data))
	}

	f := Frame{
		Marker:   data[0],
		Opcode:   data[1],
		A:        data[2],
		B:        data[3],
		C:        data[4],
		D:        data[5],
		Reserved: data[6],
		Checksum: data[7],
	}

	if expected := CalculateChecksum(f); f.Checksum != expected {
		return Frame{}, &ChecksumError{Expected: expected, Actual: f.Checksum}
	}

	return f, nil
}

// Bytes returns the frame's wire representation.
func (f Frame) Bytes() []byte {
	return []byte{f.Marker, f.Opcode, f.A, f.B, f.C, f.D, f.Reserved, f.Checksum}
}

// Int32 reconstructs the big-endian signed 32-bit payload from a..d.
func (f Frame) Int32() int32 {
	return int32(uint32(f.A)<<24 | uint32(f.B)<<16 | uint32(f.C)<<8 | uint32(f.D))
}

// HighInt16 reconstructs the big-endian signed 16-bit value from a,b.
func (f Frame) HighInt16() int16 {
	return int16(uint16(f.A)<<8 | uint16(f.B))
}

// LowInt16 reconstructs the big-endian signed 16-bit value from c,d.
func (f Frame) LowInt16() int16 {
	return int16(uint16(f.C)<<8 | uint16(f.D))
}

// IsErrorOpcode reports whether the opcode is one of the device error
// sentinels.
func (f Frame) IsErrorOpcode() bool {
	return f.Opcode == OpErrUnrecognized || f.Opcode == OpErrBadChecksum
}

// String returns a debug representation of the frame.
func (f Frame) String() string {
	return fmt.Sprintf("Frame{op=%s, a=%d, b=%d, c=%d, d=%d ($%02x), z=%d}",
		OpcodeName(f.Opcode), f.A, f.B, f.C, f.D, f.D, f.Checksum)
}

// OpcodeName returns a human-readable name for an opcode.
func OpcodeName(opcode byte) string {
	switch opcode {
	case OpMoveAbsolute:
		return "move-to"
	case OpSync:
		return "calibrate-to"
	case OpStop:
		return "stop"
	case OpReadPosition:
		return "read-position"
	case OpIsMoving:
		return "is-moving"
	case OpReadTemperature:
		return "read-temperature"
	case OpIsCalibrated:
		return "is-calibrated"
	case OpMoveSpeed:
		return "move-with-speed"
	case OpPark:
		return "park"
	case OpVersion:
		return "read-version"
	case OpErrUnrecognized:
		return "err-unrecognized"
	case OpErrBadChecksum:
		return "err-bad-checksum"
	default:
		return fmt.Sprintf("unknown(0x%02x)", opcode)
	}
}
