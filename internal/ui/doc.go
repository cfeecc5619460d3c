// Package ui implements the terminal monitor for a connected focuser.
//
// The monitor is a Bubble Tea program fed by the session's poll loop:
// each snapshot the session emits becomes a model update, so the
// display always reflects the most recent completed poll tick. Stale
// readings are marked rather than hidden when a tick degrades.
//
// The only command surface the monitor exposes is the abort key; all
// other focuser commands go through the CLI.
package ui
