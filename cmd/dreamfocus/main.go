// Dreamfocus is a control utility for DreamFocuser telescope focusers.
//
// It speaks the focuser's 8-byte serial protocol over a USB serial
// port, and provides one-shot commands (move, sync, park, status), a
// live terminal monitor, and a websocket status feed for remote
// clients.
//
// Usage:
//
//	dreamfocus [command] [flags]
//
// See 'dreamfocus --help' for available commands. All device commands
// accept --simulate to run against a simulated focuser instead of
// hardware.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/dreamfocus/internal/logging"
	"github.com/muurk/dreamfocus/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dreamfocus",
	Short: "DreamFocuser Control Utility",
	Long: `A standalone utility for controlling DreamFocuser telescope focusers.

Provides position moves, calibration, parking, environment readout, a
live terminal monitor, and a websocket status feed. The focuser is
driven over its USB serial port; pass --simulate to work against a
simulated device instead.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeFromEnv()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dreamfocus %s (commit: %s)\n", version.Version, version.Commit)
	},
}
