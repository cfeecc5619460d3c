package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/muurk/dreamfocus/internal/protocol"
)

func roundTrip(t *testing.T, port *SimulatedPort, opcode byte, payload uint32) protocol.Frame {
	t.Helper()

	req, err := protocol.Encode(opcode, payload)
	if err != nil {
		t.Fatalf("Encode(%s) error = %v", protocol.OpcodeName(opcode), err)
	}
	if _, err := port.Write(req.Bytes()); err != nil {
		t.Fatalf("Write error = %v", err)
	}
	raw, err := port.ReadExact(protocol.FrameSize, time.Second)
	if err != nil {
		t.Fatalf("ReadExact error = %v", err)
	}
	resp, err := protocol.Decode(raw)
	if err != nil {
		t.Fatalf("Decode error = %v", err)
	}
	return resp
}

func TestSimulatedPortSeeds(t *testing.T) {
	port := NewSimulatedPort()

	resp := roundTrip(t, port, protocol.OpReadPosition, 0)
	if resp.Int32() != 2000 {
		t.Errorf("seed position = %d, want 2000", resp.Int32())
	}

	resp = roundTrip(t, port, protocol.OpReadTemperature, 0)
	if resp.HighInt16() != 10 {
		t.Errorf("humidity*10 = %d, want 10", resp.HighInt16())
	}
	if resp.LowInt16() != 200 {
		t.Errorf("temperature*10 = %d, want 200", resp.LowInt16())
	}

	resp = roundTrip(t, port, protocol.OpIsMoving, 0)
	if resp.D != 0 {
		t.Error("seed device must be idle")
	}
}

func TestSimulatedPortMoveProgresses(t *testing.T) {
	port := NewSimulatedPort()

	resp := roundTrip(t, port, protocol.OpMoveAbsolute, 4000)
	if resp.Int32() != 4000 {
		t.Fatalf("move echo = %d, want 4000", resp.Int32())
	}

	// Poll until the move settles; the model advances a bounded step per
	// handled frame, so this terminates quickly.
	var last int32
	for i := 0; i < 20; i++ {
		resp = roundTrip(t, port, protocol.OpIsMoving, 0)
		if resp.D == 0 {
			break
		}
		pos := roundTrip(t, port, protocol.OpReadPosition, 0).Int32()
		if pos < last {
			t.Fatalf("position moved backwards: %d -> %d", last, pos)
		}
		last = pos
	}

	if resp.D != 0 {
		t.Fatal("move never settled")
	}
	if pos := roundTrip(t, port, protocol.OpReadPosition, 0).Int32(); pos != 4000 {
		t.Errorf("settled position = %d, want 4000", pos)
	}
}

func TestSimulatedPortSyncSetsAbsolute(t *testing.T) {
	port := NewSimulatedPort()

	if resp := roundTrip(t, port, protocol.OpIsCalibrated, 0); resp.D != 0 {
		t.Fatal("device must start in relative mode")
	}

	resp := roundTrip(t, port, protocol.OpSync, 10000)
	if resp.Int32() != 10000 {
		t.Fatalf("sync echo = %d, want 10000", resp.Int32())
	}

	if resp := roundTrip(t, port, protocol.OpIsCalibrated, 0); resp.D != 1 {
		t.Error("sync must switch the device to absolute mode")
	}
	if pos := roundTrip(t, port, protocol.OpReadPosition, 0).Int32(); pos != 10000 {
		t.Errorf("position after sync = %d, want 10000", pos)
	}
}

func TestSimulatedPortStopHalts(t *testing.T) {
	port := NewSimulatedPort()

	roundTrip(t, port, protocol.OpMoveAbsolute, 100000)
	roundTrip(t, port, protocol.OpStop, 0)

	if resp := roundTrip(t, port, protocol.OpIsMoving, 0); resp.D != 0 {
		t.Error("device must be idle after stop")
	}
}

func TestSimulatedPortRejectsCorruptFrame(t *testing.T) {
	port := NewSimulatedPort()

	req, _ := protocol.Encode(protocol.OpReadPosition, 0)
	raw := req.Bytes()
	raw[4] ^= 0x10 // corrupt a payload byte

	if _, err := port.Write(raw); err != nil {
		t.Fatalf("Write error = %v", err)
	}
	respRaw, err := port.ReadExact(protocol.FrameSize, time.Second)
	if err != nil {
		t.Fatalf("ReadExact error = %v", err)
	}
	resp, err := protocol.Decode(respRaw)
	if err != nil {
		t.Fatalf("Decode error = %v", err)
	}
	if resp.Opcode != protocol.OpErrBadChecksum {
		t.Errorf("opcode = %s, want err-bad-checksum", protocol.OpcodeName(resp.Opcode))
	}
}

func TestSimulatedPortEmptyQueueTimesOut(t *testing.T) {
	port := NewSimulatedPort()

	_, err := port.ReadExact(protocol.FrameSize, 10*time.Millisecond)
	if !errors.Is(err, ErrReadTimeout) {
		t.Errorf("error = %v, want ErrReadTimeout", err)
	}
}

func TestSimulatedPortFlushDiscardsPending(t *testing.T) {
	port := NewSimulatedPort()

	req, _ := protocol.Encode(protocol.OpReadPosition, 0)
	port.Write(req.Bytes())

	if err := port.FlushInput(); err != nil {
		t.Fatalf("FlushInput error = %v", err)
	}
	if _, err := port.ReadExact(protocol.FrameSize, 10*time.Millisecond); !errors.Is(err, ErrReadTimeout) {
		t.Errorf("error after flush = %v, want ErrReadTimeout", err)
	}
}
