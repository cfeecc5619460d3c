// Package protocol implements the DreamFocuser binary serial protocol.
//
// This package handles encoding, decoding, and validation of the fixed
// 8-byte frames exchanged with the focuser over its serial link.
//
// # Frame Format
//
// Every request and response is exactly 8 bytes:
//   - Marker byte: 'M'
//   - Opcode: single ASCII character identifying the command
//   - Payload: 4 bytes (a, b, c, d)
//   - Reserved: 0x00
//   - Checksum: low 8 bits of the sum of the preceding 7 bytes
//
// The trailing checksum lets both sides detect transport corruption in
// O(1) without a length field or delimiter, at the cost of no framing
// recovery if the byte stream desyncs.
//
// # Commands
//
// Position-bearing commands (move-to 'M', calibrate-to 'Z') carry a
// big-endian signed 32-bit tick position in a..d. Query commands
// (read-position 'P', is-moving 'I', read-temperature 'T', is-calibrated
// 'W', read-version 'V') and actions (stop 'H', park 'G') carry no request
// payload. Move-with-speed 'R' packs speed (0-127) and a direction bit
// into the d byte.
//
// The device signals errors by placing a sentinel in the response opcode
// position: '!' for an unrecognized command, '?' for a bad checksum.
// Payload bytes are undefined when a sentinel is present.
//
// # Usage
//
//	frame, err := protocol.Encode(protocol.OpMoveAbsolute, uint32(target))
//	if err != nil {
//	    return err
//	}
//	port.Write(frame.Bytes())
//
//	raw, err := port.ReadExact(protocol.FrameSize, timeout)
//	resp, err := protocol.Decode(raw)
//
// Interpretation of response opcodes (correlation, error sentinels) is the
// dispatcher's job; this package only guarantees structural validity.
//
// All functions are stateless and safe for concurrent use.
package protocol
