package focuser

import (
	"fmt"
	"time"
)

// ParkState tracks the outcome of the most recent park operation. It is
// only ever updated by an explicit park, never by the poll loop.
type ParkState int

const (
	Unparked ParkState = iota
	Parked
	ParkFailed
)

// String returns a human-readable park state.
func (p ParkState) String() string {
	switch p {
	case Unparked:
		return "unparked"
	case Parked:
		return "parked"
	case ParkFailed:
		return "park failed"
	default:
		return fmt.Sprintf("ParkState(%d)", p)
	}
}

// Direction selects the sign of a relative move. Inward moves toward the
// telescope (decreasing ticks), outward away from it.
type Direction int

const (
	Inward Direction = iota
	Outward
)

// String returns a human-readable direction.
func (d Direction) String() string {
	if d == Inward {
		return "inward"
	}
	return "outward"
}

// deviceState is the session's private view of the focuser, mutated only
// after a successful, validated round trip.
type deviceState struct {
	position    int32
	isMoving    bool
	isAbsolute  bool
	temperature float64 // Kelvin
	humidity    float64 // percent
	parked      ParkState
}

// Snapshot is the externally observable device state: a copy taken under
// the session lock, so readers never share mutable state with the
// dispatch path.
type Snapshot struct {
	// Position is the last known absolute tick position.
	Position int32
	// Moving reports whether the motor was running at the last refresh.
	Moving bool
	// Absolute reports the calibration mode (synced to an absolute
	// scale) at the last refresh.
	Absolute bool
	// TemperatureKelvin and HumidityPercent are the last environment
	// readings.
	TemperatureKelvin float64
	HumidityPercent   float64
	// Park is the outcome of the most recent park operation.
	Park ParkState
	// FirmwareVersion is the "major.minor" string read at connect, or
	// empty if the query failed.
	FirmwareVersion string

	// Degraded is set when the status queries of the last poll tick
	// failed; the remaining fields then hold the prior values rather
	// than fresh ones.
	Degraded bool
	// EnvDegraded is set when only the environment reading failed in
	// the last tick; position and motion status are still fresh.
	EnvDegraded bool
	// PositionDegraded is set when the position refresh of the last
	// tick failed.
	PositionDegraded bool
	// Settled reports that a commanded move has finished: the device is
	// idle and the position has stopped changing between ticks.
	Settled bool

	// At is when the snapshot was taken.
	At time.Time
}

// TemperatureCelsius converts the snapshot temperature for display.
func (s Snapshot) TemperatureCelsius() float64 {
	return s.TemperatureKelvin - 273.15
}
