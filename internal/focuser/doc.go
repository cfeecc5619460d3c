// Package focuser implements the DreamFocuser command dispatcher, device
// state machine, and poll loop.
//
// # Dispatch
//
// Every command is one synchronous round trip: encode an 8-byte frame,
// discard stale input, write, read exactly one response frame within a
// deadline, validate the checksum, reject device error sentinels, and
// correlate by opcode. The link is half-duplex with no request IDs, so
// the opcode echo is the only correlation available and is enforced on
// every dispatch. There is no pipelining and no automatic retry; failures
// are returned as typed *DispatchError values and the caller (usually the
// poll loop's next tick) decides what to do.
//
// # State
//
// A Session owns the port and the derived device state: position, motion
// flag, calibration mode, environment readings, and park outcome. State
// is mutated only after a fully validated round trip, never partially.
// External readers get value snapshots; observers receive one snapshot
// per completed poll tick or user-initiated operation.
//
// # Polling
//
// The Poller refreshes motion status, calibration, environment, and
// (while a move is pending) position every interval. Failures degrade the
// affected part of the snapshot instead of propagating stale data: a
// status failure degrades the whole tick, an environment failure degrades
// only the environment reading. Move settlement is detected by the motor
// reporting idle while the position stops changing between ticks.
package focuser
