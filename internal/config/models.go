package config

// Default values for a fresh configuration. The connection defaults match
// the focuser hardware (enumerates as a 9600 baud ACM device); the limit
// defaults match the driver's historical property defaults.
const (
	DefaultDevice         = "/dev/ttyACM0"
	DefaultBaud           = 9600
	DefaultReadTimeoutSec = 5
	DefaultPollIntervalMs = 500
	DefaultMaxPosition    = 300000
	DefaultMaxTravel      = 300000
	DefaultFeedPort       = 8735
)

// Registry represents the entire user configuration file.
type Registry struct {
	Version    int         `yaml:"version"`
	Connection *Connection `yaml:"connection,omitempty"`
	Limits     *Limits     `yaml:"limits,omitempty"`
	Feed       *Feed       `yaml:"feed,omitempty"`
}

// Connection holds the serial link and polling parameters.
type Connection struct {
	Device         string `yaml:"device"`           // Serial device path
	Baud           int    `yaml:"baud"`             // Line rate (hardware is fixed at 9600)
	ReadTimeoutSec int    `yaml:"read_timeout_sec"` // Per-read response deadline
	PollIntervalMs int    `yaml:"poll_interval_ms"` // Status poll interval
	Simulate       bool   `yaml:"simulate"`         // Use the simulated device instead of hardware
}

// Limits holds the soft travel limits enforced on the host side. The
// device itself accepts any 32-bit target; these bounds protect the
// mechanics and persist across sessions, unlike device state.
type Limits struct {
	MaxPosition int32 `yaml:"max_position"` // Largest absolute target magnitude (ticks)
	MaxTravel   int32 `yaml:"max_travel"`   // Largest single relative move (ticks)
}

// Feed holds the websocket status feed settings for `dreamfocus serve`.
type Feed struct {
	Host     string `yaml:"host"`     // Bind address (empty = all interfaces)
	Port     int    `yaml:"port"`     // TCP port for the feed
	Announce bool   `yaml:"announce"` // Advertise the feed via mDNS
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Connection: &Connection{
			Device:         DefaultDevice,
			Baud:           DefaultBaud,
			ReadTimeoutSec: DefaultReadTimeoutSec,
			PollIntervalMs: DefaultPollIntervalMs,
		},
		Limits: &Limits{
			MaxPosition: DefaultMaxPosition,
			MaxTravel:   DefaultMaxTravel,
		},
		Feed: &Feed{
			Port:     DefaultFeedPort,
			Announce: true,
		},
	}
}

// WithinAbsolute reports whether an absolute target respects the
// configured position limit.
func (l *Limits) WithinAbsolute(target int32) bool {
	return target >= -l.MaxPosition && target <= l.MaxPosition
}

// WithinTravel reports whether a relative delta respects the configured
// travel limit.
func (l *Limits) WithinTravel(delta int32) bool {
	if delta < 0 {
		delta = -delta
	}
	return delta <= l.MaxTravel
}
