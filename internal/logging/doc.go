// Package logging provides structured logging for the dreamfocus tools.
//
// Logging is silent by default so CLI output stays clean. Set the
// DREAMFOCUS_LOG_LEVEL environment variable (debug, info, warn, error) to
// enable zap console output, including per-frame hex dumps at debug level.
package logging
