package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/dreamfocus/internal/config"
	"github.com/muurk/dreamfocus/internal/focuser"
	"github.com/muurk/dreamfocus/internal/server"
	"github.com/muurk/dreamfocus/internal/transport"
	"github.com/muurk/dreamfocus/internal/ui"
)

// Device command flags
var (
	devicePath   string
	deviceBaud   int
	simulate     bool
	readTimeout  int
	outputFormat string
	waitSettle   bool
	speedOutward bool
	feedHost     string
	feedPort     int
	noAnnounce   bool
)

func init() {
	// Common flags for device commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&devicePath, "device", "", "Serial device path (default from config)")
	rootCmd.PersistentFlags().IntVar(&deviceBaud, "baud", 0, "Serial line rate (default from config)")
	rootCmd.PersistentFlags().BoolVar(&simulate, "simulate", false, "Use a simulated focuser instead of hardware")
	rootCmd.PersistentFlags().IntVar(&readTimeout, "timeout", 0, "Response timeout in seconds (default from config)")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(positionCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(inCmd)
	rootCmd.AddCommand(outCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(speedCmd)
	rootCmd.AddCommand(parkCmd)
	rootCmd.AddCommand(abortCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// openSession loads the config registry, applies flag overrides, opens
// the transport, and connects. The returned cleanup stops motion is an
// explicit user concern; Close only releases the port after a stop
// attempt on its own.
func openSession() (*focuser.Session, *config.Registry, error) {
	registry, err := config.LoadRegistry()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	device := registry.Connection.Device
	if devicePath != "" {
		device = devicePath
	}
	baud := registry.Connection.Baud
	if deviceBaud > 0 {
		baud = deviceBaud
	}
	timeout := time.Duration(registry.Connection.ReadTimeoutSec) * time.Second
	if readTimeout > 0 {
		timeout = time.Duration(readTimeout) * time.Second
	}

	var port transport.Port
	if simulate || registry.Connection.Simulate {
		port = transport.NewSimulatedPort()
	} else {
		serial, err := transport.OpenSerial(device, baud)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s: %w", device, err)
		}
		port = serial
	}

	session, err := focuser.Connect(port, timeout)
	if err != nil {
		_ = port.Close()
		return nil, nil, err
	}
	return session, registry, nil
}

func pollInterval(registry *config.Registry) time.Duration {
	return time.Duration(registry.Connection.PollIntervalMs) * time.Millisecond
}

// waitForSettle drives the poll loop inline until the motion settles.
func waitForSettle(session *focuser.Session, interval time.Duration) focuser.Snapshot {
	for {
		snap := session.PollOnce()
		if snap.Settled && !snap.Moving {
			return snap
		}
		time.Sleep(interval)
	}
}

func parseTicks(arg string) (int32, error) {
	v, err := strconv.ParseInt(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid tick count %q: %w", arg, err)
	}
	return int32(v), nil
}

// statusCmd reads and prints the full device status
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show focuser status",
	Long: `Read and display the focuser's full status: position, motion,
calibration mode, temperature, humidity, and firmware version.`,
	Example: `  # Human-readable status
  dreamfocus status

  # JSON output for scripting
  dreamfocus status --format json

  # Status of the simulated focuser
  dreamfocus status --simulate`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	session, _, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	if err := session.RefreshPosition(); err != nil {
		return fmt.Errorf("failed to read position: %w", err)
	}
	if err := session.RefreshTemperature(); err != nil {
		fmt.Println("Warning: environment sensor unavailable")
	}
	snap := session.Snapshot()

	if outputFormat == "json" {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Position:     %d\n", snap.Position)
	if snap.Moving {
		fmt.Println("Motion:       moving")
	} else {
		fmt.Println("Motion:       idle")
	}
	if snap.Absolute {
		fmt.Println("Mode:         absolute")
	} else {
		fmt.Println("Mode:         relative (uncalibrated)")
	}
	if snap.EnvDegraded {
		fmt.Println("Temperature:  unavailable")
		fmt.Println("Humidity:     unavailable")
	} else {
		fmt.Printf("Temperature:  %.1f °C\n", snap.TemperatureCelsius())
		fmt.Printf("Humidity:     %.1f %%\n", snap.HumidityPercent)
	}
	if snap.FirmwareVersion != "" {
		fmt.Printf("Firmware:     %s\n", snap.FirmwareVersion)
	}
	return nil
}

// positionCmd prints just the current position
var positionCmd = &cobra.Command{
	Use:   "position",
	Short: "Print the current position in ticks",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()

		if err := session.RefreshPosition(); err != nil {
			return fmt.Errorf("failed to read position: %w", err)
		}
		fmt.Println(session.Snapshot().Position)
		return nil
	},
}

// moveCmd commands an absolute move
var moveCmd = &cobra.Command{
	Use:   "move <position>",
	Short: "Move to an absolute position",
	Long: `Command the focuser to move to an absolute tick position.

The target must respect the configured position limit. With --wait the
command polls until the motion settles and prints the final position.`,
	Example: `  # Move to tick 15000
  dreamfocus move 15000

  # Move and wait for the motion to finish
  dreamfocus move 15000 --wait`,
	Args: cobra.ExactArgs(1),
	RunE: runMove,
}

func init() {
	moveCmd.Flags().BoolVar(&waitSettle, "wait", false, "Wait for the motion to settle")
	inCmd.Flags().BoolVar(&waitSettle, "wait", false, "Wait for the motion to settle")
	outCmd.Flags().BoolVar(&waitSettle, "wait", false, "Wait for the motion to settle")
}

func runMove(cmd *cobra.Command, args []string) error {
	target, err := parseTicks(args[0])
	if err != nil {
		return err
	}

	session, registry, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	if !registry.Limits.WithinAbsolute(target) {
		return fmt.Errorf("target %d exceeds position limit %d", target, registry.Limits.MaxPosition)
	}

	if err := session.MoveAbsolute(target); err != nil {
		return fmt.Errorf("move failed: %w", err)
	}

	if waitSettle {
		snap := waitForSettle(session, pollInterval(registry))
		fmt.Printf("Settled at %d\n", snap.Position)
		return nil
	}
	fmt.Printf("Moving to %d\n", target)
	return nil
}

// inCmd and outCmd command relative moves
var inCmd = &cobra.Command{
	Use:   "in <ticks>",
	Short: "Move inward by a number of ticks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRelative(args[0], focuser.Inward)
	},
}

var outCmd = &cobra.Command{
	Use:   "out <ticks>",
	Short: "Move outward by a number of ticks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRelative(args[0], focuser.Outward)
	},
}

func runRelative(arg string, dir focuser.Direction) error {
	delta, err := parseTicks(arg)
	if err != nil {
		return err
	}
	if delta < 0 {
		return fmt.Errorf("tick count must be positive (use 'in' or 'out' for direction)")
	}

	session, registry, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	if !registry.Limits.WithinTravel(delta) {
		return fmt.Errorf("delta %d exceeds travel limit %d", delta, registry.Limits.MaxTravel)
	}

	target, err := session.MoveRelative(uint32(delta), dir)
	if err != nil {
		return fmt.Errorf("move failed: %w", err)
	}
	if !registry.Limits.WithinAbsolute(target) {
		// The command was already accepted; stop it rather than let it
		// run past the configured limit.
		_ = session.Abort()
		return fmt.Errorf("target %d exceeds position limit %d, motion aborted", target, registry.Limits.MaxPosition)
	}

	if waitSettle {
		snap := waitForSettle(session, pollInterval(registry))
		fmt.Printf("Settled at %d\n", snap.Position)
		return nil
	}
	fmt.Printf("Moving to %d\n", target)
	return nil
}

// syncCmd recalibrates the position scale
var syncCmd = &cobra.Command{
	Use:   "sync <position>",
	Short: "Calibrate the current position to a tick value",
	Long: `Recalibrate the focuser so its current physical position reads as the
given tick value. This switches the device into absolute mode.`,
	Example: `  # Define the current position as tick 10000
  dreamfocus sync 10000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseTicks(args[0])
		if err != nil {
			return err
		}

		session, _, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()

		if err := session.SyncTo(target); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		fmt.Printf("Position calibrated to %d\n", target)
		return nil
	},
}

// speedCmd starts a continuous move
var speedCmd = &cobra.Command{
	Use:   "speed <0-127>",
	Short: "Move continuously at a given speed",
	Long: `Start a continuous move at the given speed. Speed 0 stops the motion;
direction defaults to inward, pass --out to move outward.

The motion runs until 'dreamfocus abort' or a position move supersedes it.`,
	Example: `  # Slow continuous inward move
  dreamfocus speed 20

  # Fast outward move
  dreamfocus speed 100 --out

  # Stop (same as abort)
  dreamfocus speed 0`,
	Args: cobra.ExactArgs(1),
	RunE: runSpeed,
}

func init() {
	speedCmd.Flags().BoolVar(&speedOutward, "out", false, "Move outward instead of inward")
}

func runSpeed(cmd *cobra.Command, args []string) error {
	v, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil || v > 127 {
		return fmt.Errorf("speed must be 0-127, got %q", args[0])
	}

	session, _, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	dir := focuser.Inward
	if speedOutward {
		dir = focuser.Outward
	}

	if err := session.MoveWithSpeed(uint8(v), dir); err != nil {
		return fmt.Errorf("speed move failed: %w", err)
	}
	if v == 0 {
		fmt.Println("Motion stopped")
	} else {
		fmt.Printf("Moving at speed %d\n", v)
	}
	return nil
}

// parkCmd moves the focuser to its park position
var parkCmd = &cobra.Command{
	Use:   "park",
	Short: "Move the focuser to its park position",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, registry, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()

		if err := session.Park(); err != nil {
			return fmt.Errorf("park failed: %w", err)
		}
		if waitSettle {
			waitForSettle(session, pollInterval(registry))
		}
		fmt.Println("Focuser parked")
		return nil
	},
}

func init() {
	parkCmd.Flags().BoolVar(&waitSettle, "wait", false, "Wait for the motion to settle")
}

// abortCmd stops any motion
var abortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Stop any motion in progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()

		if err := session.Abort(); err != nil {
			return fmt.Errorf("abort failed: %w", err)
		}
		fmt.Println("Motion stopped")
		return nil
	},
}

// monitorCmd runs the live terminal monitor
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live terminal status monitor",
	Long: `Run a live terminal monitor showing position, motion, and environment
readings, refreshed at the configured poll interval. Press 'a' to abort
motion and 'q' to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, registry, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		poller := focuser.NewPoller(session, pollInterval(registry))
		go poller.Run(ctx)

		return ui.RunMonitor(session, registry.Limits.MaxPosition)
	},
}

// serveCmd runs the websocket status feed
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the websocket status feed",
	Long: `Connect to the focuser, run the poll loop, and serve status snapshots
to websocket subscribers on /ws (latest snapshot also on GET /status).

When announcement is enabled the feed is advertised on the local network
as a "_dreamfocus._tcp" mDNS service.`,
	Example: `  # Serve on the configured port
  dreamfocus serve

  # Custom port, no mDNS announcement
  dreamfocus serve --feed-port 9000 --no-announce

  # Feed backed by the simulated focuser
  dreamfocus serve --simulate`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&feedHost, "feed-host", "", "Feed bind address (empty = all interfaces)")
	serveCmd.Flags().IntVar(&feedPort, "feed-port", 0, "Feed TCP port (default from config)")
	serveCmd.Flags().BoolVar(&noAnnounce, "no-announce", false, "Disable mDNS announcement")
}

func runServe(cmd *cobra.Command, args []string) error {
	session, registry, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	host := registry.Feed.Host
	if feedHost != "" {
		host = feedHost
	}
	port := registry.Feed.Port
	if feedPort > 0 {
		port = feedPort
	}
	announce := registry.Feed.Announce && !noAnnounce

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poller := focuser.NewPoller(session, pollInterval(registry))
	go poller.Run(ctx)

	feed := server.New(&server.Config{
		Host:     host,
		Port:     port,
		Announce: announce,
	}, session)

	return feed.Start(ctx)
}

// configCmd shows the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Display the configuration file path and the effective settings,
including defaults for anything the file does not set. Run 'dreamfocus
config save' to write the effective settings back to disk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}

		fmt.Printf("Config file:    %s\n\n", path)
		fmt.Printf("Device:         %s\n", registry.Connection.Device)
		fmt.Printf("Baud:           %d\n", registry.Connection.Baud)
		fmt.Printf("Read timeout:   %ds\n", registry.Connection.ReadTimeoutSec)
		fmt.Printf("Poll interval:  %dms\n", registry.Connection.PollIntervalMs)
		fmt.Printf("Simulate:       %t\n", registry.Connection.Simulate)
		fmt.Printf("Max position:   %d\n", registry.Limits.MaxPosition)
		fmt.Printf("Max travel:     %d\n", registry.Limits.MaxTravel)
		fmt.Printf("Feed port:      %d\n", registry.Feed.Port)
		fmt.Printf("Feed announce:  %t\n", registry.Feed.Announce)
		return nil
	},
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the effective configuration to disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := registry.Save(); err != nil {
			return fmt.Errorf("failed to save configuration: %w", err)
		}
		path, _ := config.GetConfigPath()
		fmt.Printf("Configuration written to %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSaveCmd)
}
