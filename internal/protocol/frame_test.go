package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		opcode  byte
		payload uint32
		wantErr bool
		verify  func(t *testing.T, f Frame)
	}{
		{
			name:    "move-to carries big-endian target",
			opcode:  OpMoveAbsolute,
			payload: 2000, // 0x000007D0
			verify: func(t *testing.T, f Frame) {
				if f.A != 0x00 || f.B != 0x00 || f.C != 0x07 || f.D != 0xD0 {
					t.Errorf("payload bytes = %02x %02x %02x %02x, want 00 00 07 d0", f.A, f.B, f.C, f.D)
				}
			},
		},
		{
			name:    "calibrate-to carries big-endian target",
			opcode:  OpSync,
			payload: 0x01020304,
			verify: func(t *testing.T, f Frame) {
				if f.A != 0x01 || f.B != 0x02 || f.C != 0x03 || f.D != 0x04 {
					t.Errorf("payload bytes = %02x %02x %02x %02x, want 01 02 03 04", f.A, f.B, f.C, f.D)
				}
			},
		},
		{
			name:    "negative target encodes as two's complement",
			opcode:  OpMoveAbsolute,
			payload: uint32(0xFFFFFF9C), // -100
			verify: func(t *testing.T, f Frame) {
				if f.Int32() != -100 {
					t.Errorf("Int32() = %d, want -100", f.Int32())
				}
			},
		},
		{
			name:    "read-position has zero payload",
			opcode:  OpReadPosition,
			payload: 12345, // ignored for zero-payload opcodes
			verify: func(t *testing.T, f Frame) {
				if f.A != 0 || f.B != 0 || f.C != 0 || f.D != 0 {
					t.Errorf("payload bytes = %02x %02x %02x %02x, want all zero", f.A, f.B, f.C, f.D)
				}
			},
		},
		{
			name:    "move-with-speed packs low byte into d",
			opcode:  OpMoveSpeed,
			payload: uint32(DirectionBit | 50),
			verify: func(t *testing.T, f Frame) {
				if f.A != 0 || f.B != 0 || f.C != 0 {
					t.Error("a, b, c must be zero for move-with-speed")
				}
				if f.D != 0xB2 {
					t.Errorf("d = 0x%02x, want 0xb2", f.D)
				}
			},
		},
		{
			name:    "unknown opcode is rejected",
			opcode:  'X',
			wantErr: true,
		},
		{
			name:    "error sentinel is not encodable",
			opcode:  OpErrUnrecognized,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Encode(tt.opcode, tt.payload)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var opErr *UnsupportedOpcodeError
				if !errors.As(err, &opErr) {
					t.Fatalf("error = %v, want UnsupportedOpcodeError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if f.Marker != Marker {
				t.Errorf("marker = 0x%02x, want 'M'", f.Marker)
			}
			if f.Reserved != 0 {
				t.Errorf("reserved = 0x%02x, want 0", f.Reserved)
			}
			if f.Checksum != CalculateChecksum(f) {
				t.Errorf("checksum = 0x%02x, want 0x%02x", f.Checksum, CalculateChecksum(f))
			}
			if tt.verify != nil {
				tt.verify(t, f)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	opcodes := []byte{
		OpMoveAbsolute, OpSync, OpStop, OpReadPosition, OpIsMoving,
		OpReadTemperature, OpIsCalibrated, OpMoveSpeed, OpPark, OpVersion,
	}

	for _, op := range opcodes {
		t.Run(OpcodeName(op), func(t *testing.T) {
			f, err := Encode(op, 0x000007D0)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			raw := f.Bytes()
			if len(raw) != FrameSize {
				t.Fatalf("Bytes() length = %d, want %d", len(raw), FrameSize)
			}

			decoded, err := Decode(raw)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if decoded != f {
				t.Errorf("round trip mismatch: %v != %v", decoded, f)
			}
			if !bytes.Equal(decoded.Bytes(), raw) {
				t.Errorf("byte round trip mismatch: %x != %x", decoded.Bytes(), raw)
			}
		})
	}
}

// Flipping any single byte other than the checksum must produce a checksum
// failure: that is the entire corruption-detection contract of the frame.
func TestDecodeDetectsSingleByteCorruption(t *testing.T) {
	f, err := Encode(OpMoveAbsolute, 2000)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	valid := f.Bytes()

	for i := 0; i < FrameSize-1; i++ {
		corrupted := make([]byte, FrameSize)
		copy(corrupted, valid)
		corrupted[i] ^= 0x01

		_, err := Decode(corrupted)
		if err == nil {
			t.Errorf("byte %d: corruption not detected", i)
			continue
		}
		var csErr *ChecksumError
		if !errors.As(err, &csErr) {
			t.Errorf("byte %d: error = %v, want ChecksumError", i, err)
		}
	}
}

func TestDecodeChecksumErrorFields(t *testing.T) {
	f, _ := Encode(OpReadPosition, 0)
	raw := f.Bytes()
	raw[7] ^= 0xFF

	_, err := Decode(raw)
	var csErr *ChecksumError
	if !errors.As(err, &csErr) {
		t.Fatalf("error = %v, want ChecksumError", err)
	}
	if csErr.Expected != f.Checksum {
		t.Errorf("Expected = 0x%02x, want 0x%02x", csErr.Expected, f.Checksum)
	}
	if csErr.Actual != raw[7] {
		t.Errorf("Actual = 0x%02x, want 0x%02x", csErr.Actual, raw[7])
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	for _, n := range []int{0, 7, 9} {
		if _, err := Decode(make([]byte, n)); err == nil {
			t.Errorf("length %d: expected error, got nil", n)
		}
	}
}

// A frame with an error sentinel in the opcode position is structurally
// valid when its checksum matches; rejecting it is the dispatcher's job.
func TestDecodeAcceptsErrorSentinel(t *testing.T) {
	f := Frame{Marker: Marker, Opcode: OpErrBadChecksum}
	f.Checksum = CalculateChecksum(f)

	decoded, err := Decode(f.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !decoded.IsErrorOpcode() {
		t.Error("IsErrorOpcode() = false, want true")
	}
}

func TestFieldReconstruction(t *testing.T) {
	tests := []struct {
		name       string
		a, b, c, d byte
		wantInt32  int32
		wantHigh   int16
		wantLow    int16
	}{
		{
			name: "position 2000",
			a:    0x00, b: 0x00, c: 0x07, d: 0xD0,
			wantInt32: 2000,
			wantHigh:  0,
			wantLow:   2000,
		},
		{
			name: "temperature response fixture",
			a:    0, b: 10, c: 2, d: 88,
			wantInt32: 0x000A0258,
			wantHigh:  10,  // humidity*10
			wantLow:   600, // temperature*10 in tenths of a degree C
		},
		{
			name: "negative position",
			a:    0xFF, b: 0xFF, c: 0xFF, d: 0x9C,
			wantInt32: -100,
			wantHigh:  -1,
			wantLow:   -100,
		},
		{
			name: "negative temperature",
			a:    0x00, b: 0x00, c: 0xFF, d: 0x38, // -200 = -20.0 degrees
			wantInt32: 0x0000FF38,
			wantHigh:  0,
			wantLow:   -200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Frame{Marker: Marker, Opcode: OpReadPosition, A: tt.a, B: tt.b, C: tt.c, D: tt.d}
			if got := f.Int32(); got != tt.wantInt32 {
				t.Errorf("Int32() = %d, want %d", got, tt.wantInt32)
			}
			if got := f.HighInt16(); got != tt.wantHigh {
				t.Errorf("HighInt16() = %d, want %d", got, tt.wantHigh)
			}
			if got := f.LowInt16(); got != tt.wantLow {
				t.Errorf("LowInt16() = %d, want %d", got, tt.wantLow)
			}
		})
	}
}

func TestCalculateChecksum(t *testing.T) {
	// 'M' + 'M' + 0 + 0 + 7 + 208 + 0 = 369, low byte 0x71
	f := Frame{Marker: 'M', Opcode: 'M', C: 0x07, D: 0xD0}
	if got := CalculateChecksum(f); got != 0x71 {
		t.Errorf("CalculateChecksum() = 0x%02x, want 0x71", got)
	}

	// Sum overflow wraps mod 256.
	f = Frame{Marker: 0xFF, Opcode: 0xFF, A: 0xFF, B: 0xFF, C: 0xFF, D: 0xFF, Reserved: 0xFF}
	if got := CalculateChecksum(f); got != 0xF9 {
		t.Errorf("CalculateChecksum() overflow = 0x%02x, want 0xf9", got)
	}
}
