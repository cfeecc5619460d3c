package focuser

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/dreamfocus/internal/logging"
	"github.com/muurk/dreamfocus/internal/protocol"
	"github.com/muurk/dreamfocus/internal/transport"
)

// Observer receives a state snapshot after every completed poll tick and
// after every completed user-initiated operation. Observers run outside
// the session lock and must not call back into the session synchronously
// from the callback if they want to avoid self-serialization stalls.
type Observer func(Snapshot)

// Session owns one connected focuser: the transport port, the dispatcher,
// and the device state derived from round trips. All operations are
// serialized by an internal mutex, so an externally triggered command
// never interleaves with a poll tick on the port.
type Session struct {
	mu         sync.Mutex
	port       transport.Port
	dispatcher *Dispatcher
	state      deviceState
	version    string

	// Per-tick health flags. Reset at the start of each poll tick.
	degraded    bool
	envDegraded bool
	posDegraded bool

	// busy is set when a move has been commanded or the device was last
	// seen moving; it keeps the poll loop refreshing the position until
	// the motion settles.
	busy    bool
	settled bool

	observers []Observer
	closed    bool
}

// Connect establishes a session over an already-open port. It performs
// the initial status handshake (the same is-moving and is-calibrated
// queries the poll loop runs) and fails if the device does not answer;
// a best-effort firmware version query follows. The port is left open on
// failure; ownership transfers to the session only on success.
func Connect(port transport.Port, timeout time.Duration) (*Session, error) {
	s := &Session{
		port:       port,
		dispatcher: NewDispatcher(port, timeout),
		settled:    true,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshMoving(); err != nil {
		return nil, fmt.Errorf("focuser handshake failed: %w", err)
	}
	if err := s.refreshCalibration(); err != nil {
		return nil, fmt.Errorf("focuser handshake failed: %w", err)
	}

	// Version is informational; a firmware that predates the V command
	// still works.
	if resp, err := s.dispatcher.Dispatch(protocol.OpVersion, 0); err == nil {
		s.version = fmt.Sprintf("%d.%d", resp.C, resp.D)
	} else {
		logging.Warn("Firmware version query failed", zap.Error(err))
	}

	logging.Info("Focuser connected",
		zap.Bool("moving", s.state.isMoving),
		zap.Bool("absolute", s.state.isAbsolute),
		zap.String("firmware", s.version),
	)

	return s, nil
}

// Close stops any motion and releases the port. The stop command is
// always attempted, whatever state the session is in: aborting is an
// idempotent safety action, and a prior failure (a failed park included)
// must not short-circuit it.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if _, err := s.dispatcher.Dispatch(protocol.OpStop, 0); err != nil {
		logging.Warn("Stop on disconnect failed", zap.Error(err))
	}

	return s.port.Close()
}

// OnUpdate registers an observer for state snapshots.
func (s *Session) OnUpdate(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Snapshot returns a copy of the current device state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// FirmwareVersion returns the "major.minor" firmware string read at
// connect, or empty if the query failed.
func (s *Session) FirmwareVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// RefreshMoving queries the motion flag and updates the state.
func (s *Session) RefreshMoving() error {
	return s.runOp(func() error { return s.refreshMoving() })
}

// RefreshCalibration queries the calibration mode and updates the state.
func (s *Session) RefreshCalibration() error {
	return s.runOp(func() error { return s.refreshCalibration() })
}

// RefreshTemperature queries the environment sensor and updates the
// state.
func (s *Session) RefreshTemperature() error {
	return s.runOp(func() error { return s.refreshTemperature() })
}

// RefreshPosition queries the absolute position and updates the state.
func (s *Session) RefreshPosition() error {
	return s.runOp(func() error { return s.refreshPosition() })
}

// MoveAbsolute commands a move to the given tick position. The device
// echoes the commanded target; any other echo is a rejection.
func (s *Session) MoveAbsolute(target int32) error {
	return s.runOp(func() error { return s.moveAbsolute(target) })
}

// MoveRelative moves by delta ticks in the given direction. The position
// base is re-read from the device first, so the computed target never
// depends on a stale cached position; a failed refresh fails the move.
// Returns the absolute target that was commanded.
func (s *Session) MoveRelative(delta uint32, dir Direction) (int32, error) {
	var target int32
	err := s.runOp(func() error {
		if err := s.refreshPosition(); err != nil {
			return fmt.Errorf("cannot establish current position: %w", err)
		}
		sign := int32(1)
		if dir == Inward {
			sign = -1
		}
		target = s.state.position + sign*int32(delta)
		return s.moveAbsolute(target)
	})
	return target, err
}

// SyncTo recalibrates the device so its current physical position reads
// as the given tick value. Same echo contract as MoveAbsolute.
func (s *Session) SyncTo(target int32) error {
	return s.runOp(func() error {
		resp, err := s.dispatcher.Dispatch(protocol.OpSync, uint32(target))
		if err != nil {
			return err
		}
		if echoed := resp.Int32(); echoed != target {
			return &DispatchError{
				Kind:    ErrKindDeviceRejected,
				Opcode:  protocol.OpSync,
				Message: fmt.Sprintf("echoed %d instead of commanded %d", echoed, target),
			}
		}
		logging.Info("Synced to position", zap.Int32("target", target))
		// The position scale just changed under us; let the next tick
		// pick up the device's view of it.
		s.busy = true
		s.settled = false
		return nil
	})
}

// MoveWithSpeed starts a continuous move at the given speed (0-127). The
// device echoes the speed/direction byte; a different echo is a
// rejection. Motion continues until Abort or a position move supersedes
// it.
func (s *Session) MoveWithSpeed(speed uint8, dir Direction) error {
	if speed > protocol.SpeedMax {
		return &DispatchError{
			Kind:    ErrKindUnsupportedOpcode,
			Opcode:  protocol.OpMoveSpeed,
			Message: fmt.Sprintf("speed %d out of range 0-%d", speed, protocol.SpeedMax),
		}
	}

	d := speed
	if dir == Outward {
		d |= protocol.DirectionBit
	}

	return s.runOp(func() error {
		resp, err := s.dispatcher.Dispatch(protocol.OpMoveSpeed, uint32(d))
		if err != nil {
			return err
		}
		if resp.D != d {
			return &DispatchError{
				Kind:    ErrKindDeviceRejected,
				Opcode:  protocol.OpMoveSpeed,
				Message: fmt.Sprintf("echoed speed byte 0x%02x instead of 0x%02x", resp.D, d),
			}
		}
		if speed > 0 {
			s.busy = true
			s.settled = false
		}
		return nil
	})
}

// Park commands the focuser to its park position. On success the park
// state becomes Parked; on failure it becomes ParkFailed and the error is
// reported, not retried.
func (s *Session) Park() error {
	return s.runOp(func() error {
		if _, err := s.dispatcher.Dispatch(protocol.OpPark, 0); err != nil {
			s.state.parked = ParkFailed
			return err
		}
		s.state.parked = Parked
		s.busy = true
		s.settled = false
		logging.Info("Focuser parked")
		return nil
	})
}

// Abort stops any motion in progress. Safe to call at any time.
func (s *Session) Abort() error {
	return s.runOp(func() error {
		if _, err := s.dispatcher.Dispatch(protocol.OpStop, 0); err != nil {
			return err
		}
		logging.Info("Focuser motion aborted")
		return nil
	})
}

// PollOnce runs one poll tick: motion status, calibration, environment,
// and (while not idle) position. A status failure marks the tick degraded
// and skips the remaining queries so stale data is never presented as
// fresh; an environment failure degrades only the environment reading.
// Exactly one snapshot is emitted per tick.
func (s *Session) PollOnce() Snapshot {
	s.mu.Lock()

	prevPosition := s.state.position
	s.degraded = false

	if err := s.refreshMoving(); err != nil {
		logging.Warn("Status poll failed", zap.Error(err))
		s.degraded = true
		return s.finishTick()
	}

	if err := s.refreshCalibration(); err != nil {
		logging.Warn("Calibration poll failed", zap.Error(err))
		s.degraded = true
		return s.finishTick()
	}

	// A failed environment sensor must not block position tracking.
	if err := s.refreshTemperature(); err != nil {
		logging.Warn("Environment poll failed", zap.Error(err))
		s.envDegraded = true
	} else {
		s.envDegraded = false
	}

	if s.busy || s.state.isMoving {
		if err := s.refreshPosition(); err != nil {
			logging.Warn("Position poll failed", zap.Error(err))
			s.posDegraded = true
		} else {
			s.posDegraded = false
			if !s.state.isMoving && s.state.position == prevPosition {
				// Motion has settled: the motor reports idle and the
				// position stopped changing between ticks.
				s.busy = false
				s.settled = true
			} else {
				s.settled = false
			}
		}
	}

	return s.finishTick()
}

// finishTick snapshots under the lock, releases it, and notifies
// observers exactly once.
func (s *Session) finishTick() Snapshot {
	snap := s.snapshotLocked()
	observers := s.observers
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
	return snap
}

// runOp serializes a user-initiated operation against the poll loop and
// emits a snapshot when it succeeds.
func (s *Session) runOp(op func() error) error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session closed")
	}

	if err := op(); err != nil {
		s.mu.Unlock()
		return err
	}

	snap := s.snapshotLocked()
	observers := s.observers
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
	return nil
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Position:          s.state.position,
		Moving:            s.state.isMoving,
		Absolute:          s.state.isAbsolute,
		TemperatureKelvin: s.state.temperature,
		HumidityPercent:   s.state.humidity,
		Park:              s.state.parked,
		FirmwareVersion:   s.version,
		Degraded:          s.degraded,
		EnvDegraded:       s.envDegraded,
		PositionDegraded:  s.posDegraded,
		Settled:           s.settled,
		At:                time.Now(),
	}
}

// The unexported refresh/move helpers below require the session lock and
// mutate state only after a fully validated round trip.

func (s *Session) refreshMoving() error {
	resp, err := s.dispatcher.Dispatch(protocol.OpIsMoving, 0)
	if err != nil {
		return err
	}
	s.state.isMoving = resp.D&0x01 == 1
	if s.state.isMoving {
		s.busy = true
		s.settled = false
	}
	return nil
}

func (s *Session) refreshCalibration() error {
	resp, err := s.dispatcher.Dispatch(protocol.OpIsCalibrated, 0)
	if err != nil {
		return err
	}
	s.state.isAbsolute = resp.D&0x01 == 1
	return nil
}

func (s *Session) refreshTemperature() error {
	resp, err := s.dispatcher.Dispatch(protocol.OpReadTemperature, 0)
	if err != nil {
		return err
	}
	s.state.temperature = float64(resp.LowInt16())/10.0 + 273.15
	s.state.humidity = float64(resp.HighInt16()) / 10.0
	return nil
}

func (s *Session) refreshPosition() error {
	resp, err := s.dispatcher.Dispatch(protocol.OpReadPosition, 0)
	if err != nil {
		return err
	}
	s.state.position = resp.Int32()
	return nil
}

func (s *Session) moveAbsolute(target int32) error {
	resp, err := s.dispatcher.Dispatch(protocol.OpMoveAbsolute, uint32(target))
	if err != nil {
		return err
	}

	// The device echoes the commanded target, not the instantaneous
	// position. Anything else means the command was not accepted.
	if echoed := resp.Int32(); echoed != target {
		return &DispatchError{
			Kind:    ErrKindDeviceRejected,
			Opcode:  protocol.OpMoveAbsolute,
			Message: fmt.Sprintf("echoed %d instead of commanded %d", echoed, target),
		}
	}

	logging.Info("Moving to position", zap.Int32("target", target))
	s.busy = true
	s.settled = false
	s.state.parked = Unparked
	return nil
}
