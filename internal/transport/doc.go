// Package transport provides the byte-duplex channel the focuser protocol
// runs over.
//
// The protocol core only needs three things from the link: write N bytes,
// read exactly N bytes within a deadline, and discard stale input. The
// Port interface captures that contract; SerialPort implements it over a
// real serial device and SimulatedPort implements it over an in-memory
// focuser model. Because simulation lives behind the same interface, the
// dispatcher and state machine contain no simulation branches.
package transport
