// Package config manages the dreamfocus configuration file.
//
// The registry lives at the platform config dir (e.g.
// ~/.config/dreamfocus/config.yaml) and stores host-side settings only:
// the serial connection parameters, the soft travel limits, and the status
// feed settings. Device state is never persisted; the focuser is the sole
// source of truth for position and calibration.
//
// Loading is lazy and cached; saving is atomic (temp file + rename).
package config
