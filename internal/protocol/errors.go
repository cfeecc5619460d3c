package protocol

import "fmt"

// ChecksumError indicates a frame whose trailing checksum does not match
// the sum of the preceding bytes. A corrupted frame is fatal for its round
// trip: frame boundaries are not self-delimiting, so no resynchronization
// is attempted within a single read.
type ChecksumError struct {
	Expected byte
	Actual   byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: got 0x%02x, expected 0x%02x", e.Actual, e.Expected)
}

// UnsupportedOpcodeError indicates an attempt to encode an opcode outside
// the command set. This is a programmer error, not a device condition.
type UnsupportedOpcodeError struct {
	Opcode byte
}

func (e *UnsupportedOpcodeError) Error() string {
	return fmt.Sprintf("unsupported opcode: 0x%02x (%q)", e.Opcode, rune(e.Opcode))
}
